package control

import "github.com/kstaniek/spa-control/internal/varint"

// Builder assembles a sequence of command frames into a Buffer: each
// frame is a tag byte, a varint payload length, and the payload bytes
// themselves (control.c: spa_control_builder_add_cmd's switch over
// per-command serializers, here one typed method per tag instead of a
// variadic dispatcher).
//
// Commands with variable-length sub-objects (POD regions, arrays of
// format descriptors, buffer records) do not inline them directly
// after a fixed prefix. Instead each such command writes a fixed-size
// header first, with one uint32 "offset" field per optional
// sub-object giving its byte position relative to the payload base (0
// meaning absent), then appends the sub-object bytes after the
// header and patches the offset field in once the position is known.
// This is what lets a receiver relocate the whole payload into a
// different buffer (e.g. after a transport read into fresh memory)
// without walking and rewriting every pointer: every reference is a
// self-relative byte count, not an absolute address. See spec.md §9's
// design note and the per-command layouts below.
type Builder struct {
	buf       *Buffer
	finalized bool
}

// NewBuilder returns a Builder appending frames to buf.
func NewBuilder(buf *Buffer) *Builder {
	return &Builder{buf: buf}
}

// AddFd records fd in the buffer's FdTable (owned controls whether
// Buffer.Clear closes it) and returns the index commands should
// reference it by.
func (b *Builder) AddFd(fd int, owned bool) int {
	return b.buf.Fds.Add(fd, owned)
}

func (b *Builder) addFrame(tag Tag, payload []byte) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.buf.ensureByteCapacity(1 + varint.MaxLen + len(payload))
	b.buf.Data = append(b.buf.Data, byte(tag))
	b.buf.Data = varint.Append(b.buf.Data, uint64(len(payload)))
	b.buf.Data = append(b.buf.Data, payload...)
	return nil
}

// Finalize marks the builder closed and returns the accumulated
// frame bytes. Further frame-appending calls return
// ErrBuilderFinalized; AddFd still records FDs in the Buffer's table.
func (b *Builder) Finalize() []byte {
	b.finalized = true
	return b.buf.Data
}

const nodeUpdateHeaderSize = 16

// NodeUpdate appends a NODE_UPDATE frame. props is an already-built
// POD OBJECT region (from a *pod.Builder), required iff changeMask
// includes NodeUpdateProps. Header layout (16 bytes): changeMask,
// maxInputPorts, maxOutputPorts, propsOffset.
func (b *Builder) NodeUpdate(changeMask, maxInputPorts, maxOutputPorts uint32, props []byte) error {
	if changeMask&NodeUpdateProps != 0 && len(props) == 0 {
		return ErrMalformed
	}
	payload := make([]byte, nodeUpdateHeaderSize, nodeUpdateHeaderSize+len(props))
	putU32At(payload, 0, changeMask)
	putU32At(payload, 4, maxInputPorts)
	putU32At(payload, 8, maxOutputPorts)
	if changeMask&NodeUpdateProps != 0 {
		payload = append(payload, props...)
		putU32At(payload, 12, nodeUpdateHeaderSize)
	}
	return b.addFrame(TagNodeUpdate, payload)
}

const portUpdateHeaderSize = 32

// PortUpdate appends a PORT_UPDATE frame. possibleFormats, format,
// props and info are already-built POD regions; possibleFormats holds
// zero or more OBJECT-shaped format descriptors. Header layout (32
// bytes): portID, direction, changeMask, possibleFormatsOffset,
// nPossibleFormats, formatOffset, propsOffset, infoOffset. When
// present, possibleFormatsOffset points to an array of nPossibleFormats
// uint32 offsets (each relative to the payload base), one per format
// descriptor, immediately followed by the descriptors themselves.
func (b *Builder) PortUpdate(portID uint32, dir Direction, changeMask uint32, possibleFormats [][]byte, format, props, info []byte) error {
	payload := make([]byte, portUpdateHeaderSize, portUpdateHeaderSize+len(format)+len(props)+len(info))
	putU32At(payload, 0, portID)
	putU32At(payload, 4, uint32(dir))
	putU32At(payload, 8, changeMask)

	if changeMask&PortUpdatePossibleFormats != 0 {
		n := len(possibleFormats)
		offsetsStart := len(payload)
		payload = append(payload, make([]byte, n*4)...)
		for i, f := range possibleFormats {
			putU32At(payload, offsetsStart+i*4, uint32(len(payload)))
			payload = append(payload, f...)
		}
		putU32At(payload, 12, uint32(offsetsStart))
		putU32At(payload, 16, uint32(n))
	}
	if changeMask&PortUpdateFormat != 0 {
		if len(format) == 0 {
			return ErrMalformed
		}
		putU32At(payload, 20, uint32(len(payload)))
		payload = append(payload, format...)
	}
	if changeMask&PortUpdateProps != 0 {
		if len(props) == 0 {
			return ErrMalformed
		}
		putU32At(payload, 24, uint32(len(payload)))
		payload = append(payload, props...)
	}
	if changeMask&PortUpdateInfo != 0 {
		if len(info) == 0 {
			return ErrMalformed
		}
		putU32At(payload, 28, uint32(len(payload)))
		payload = append(payload, info...)
	}
	return b.addFrame(TagPortUpdate, payload)
}

// PortStatusChange appends an empty PORT_STATUS_CHANGE frame. The
// original protocol never implemented this command's payload either
// (control.c's builder_add_cmd stubs it with a log line); callers that
// need richer status should use NodeEvent instead.
func (b *Builder) PortStatusChange() error {
	return b.addFrame(TagPortStatusChange, nil)
}

// NodeStateChange appends a NODE_STATE_CHANGE frame.
func (b *Builder) NodeStateChange(oldState, newState NodeState) error {
	payload := make([]byte, 0, 8)
	payload = appendU32(payload, uint32(oldState))
	payload = appendU32(payload, uint32(newState))
	return b.addFrame(TagNodeStateChange, payload)
}

// AddPort appends an ADD_PORT frame.
func (b *Builder) AddPort(portID uint32, dir Direction) error {
	payload := make([]byte, 0, 8)
	payload = appendU32(payload, portID)
	payload = appendDirection(payload, dir)
	return b.addFrame(TagAddPort, payload)
}

// RemovePort appends a REMOVE_PORT frame.
func (b *Builder) RemovePort(portID uint32, dir Direction) error {
	payload := make([]byte, 0, 8)
	payload = appendU32(payload, portID)
	payload = appendDirection(payload, dir)
	return b.addFrame(TagRemovePort, payload)
}

const setFormatHeaderSize = 12

// SetFormat appends a SET_FORMAT frame. format is an already-built POD
// OBJECT region and is required. Header layout (12 bytes): portID,
// direction, formatOffset (always setFormatHeaderSize when present).
func (b *Builder) SetFormat(portID uint32, dir Direction, format []byte) error {
	if len(format) == 0 {
		return ErrMalformed
	}
	payload := make([]byte, setFormatHeaderSize, setFormatHeaderSize+len(format))
	putU32At(payload, 0, portID)
	putU32At(payload, 4, uint32(dir))
	putU32At(payload, 8, setFormatHeaderSize)
	payload = append(payload, format...)
	return b.addFrame(TagSetFormat, payload)
}

// SetProperty appends an empty SET_PROPERTY frame; see PortStatusChange.
func (b *Builder) SetProperty() error {
	return b.addFrame(TagSetProperty, nil)
}

// AddMem appends an ADD_MEM frame. fdIndex must come from a prior
// AddFd call on the same builder's Buffer.
func (b *Builder) AddMem(portID uint32, dir Direction, memID, memType uint32, fdIndex int, flags uint32) error {
	if fdIndex < 0 || fdIndex >= b.buf.Fds.Len() {
		return ErrNoFd
	}
	payload := make([]byte, 0, 24)
	payload = appendU32(payload, portID)
	payload = appendDirection(payload, dir)
	payload = appendU32(payload, memID)
	payload = appendU32(payload, memType)
	payload = appendU32(payload, uint32(fdIndex))
	payload = appendU32(payload, flags)
	return b.addFrame(TagAddMem, payload)
}

// RemoveMem appends a REMOVE_MEM frame.
func (b *Builder) RemoveMem(portID uint32, dir Direction, memID uint32) error {
	payload := make([]byte, 0, 12)
	payload = appendU32(payload, portID)
	payload = appendDirection(payload, dir)
	payload = appendU32(payload, memID)
	return b.addFrame(TagRemoveMem, payload)
}

const useBuffersHeaderSize = 16
const bufferSpecSize = 12

// UseBuffers appends a USE_BUFFERS frame. Header layout (16 bytes):
// portID, direction, nBuffers, buffersOffset (useBuffersHeaderSize
// when buffers is non-empty, 0 otherwise — matching scenario S3's
// "header with buffers = sizeof(header)"). The buffer records follow
// back to back, each a {memID, offset, size} triple.
func (b *Builder) UseBuffers(portID uint32, dir Direction, buffers []BufferSpec) error {
	payload := make([]byte, useBuffersHeaderSize, useBuffersHeaderSize+len(buffers)*bufferSpecSize)
	putU32At(payload, 0, portID)
	putU32At(payload, 4, uint32(dir))
	putU32At(payload, 8, uint32(len(buffers)))
	if len(buffers) > 0 {
		putU32At(payload, 12, useBuffersHeaderSize)
		for _, buf := range buffers {
			payload = appendU32(payload, buf.MemID)
			payload = appendU32(payload, buf.Offset)
			payload = appendU32(payload, buf.Size)
		}
	}
	return b.addFrame(TagUseBuffers, payload)
}

// ProcessBuffer appends a PROCESS_BUFFER frame.
func (b *Builder) ProcessBuffer(portID uint32) error {
	payload := appendU32(nil, portID)
	return b.addFrame(TagProcessBuffer, payload)
}

const eventHeaderSize = 8

// NodeEvent appends a NODE_EVENT frame. data is an opaque byte string;
// header layout (8 bytes): eventType, dataOffset (eventHeaderSize when
// data is non-empty, 0 otherwise). The tail from dataOffset to the end
// of the payload is the data itself.
func (b *Builder) NodeEvent(eventType uint32, data []byte) error {
	payload := make([]byte, eventHeaderSize, eventHeaderSize+len(data))
	putU32At(payload, 0, eventType)
	if len(data) > 0 {
		putU32At(payload, 4, eventHeaderSize)
		payload = append(payload, data...)
	}
	return b.addFrame(TagNodeEvent, payload)
}

// NodeCommand appends a NODE_COMMAND frame; same layout as NodeEvent.
func (b *Builder) NodeCommand(commandType uint32, data []byte) error {
	payload := make([]byte, eventHeaderSize, eventHeaderSize+len(data))
	putU32At(payload, 0, commandType)
	if len(data) > 0 {
		putU32At(payload, 4, eventHeaderSize)
		payload = append(payload, data...)
	}
	return b.addFrame(TagNodeCommand, payload)
}
