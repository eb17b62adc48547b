package control

import (
	"github.com/kstaniek/spa-control/internal/pod"
	"github.com/kstaniek/spa-control/internal/varint"
)

// Iterator walks a command frame stream produced by Builder,
// mirroring control.c's stack_iter (spa_control_iter_init/next/end).
type Iterator struct {
	data []byte
	off  int
	err  error

	curTag     Tag
	curPayload []byte
}

// NewIterator returns an Iterator over data (typically Buffer.Data or
// a slice received from a transport read).
func NewIterator(data []byte) *Iterator {
	return &Iterator{data: data}
}

// Next advances to the next frame. It returns false at end of stream
// or on a malformed frame; callers should check Err after a false
// return to distinguish the two.
func (it *Iterator) Next() bool {
	if it.off >= len(it.data) {
		return false
	}
	rest := it.data[it.off:]
	if len(rest) < 1 {
		return false
	}
	tag := Tag(rest[0])
	length, n, err := varint.DecodeChecked(rest[1:])
	if err != nil {
		it.err = err
		return false
	}
	start := 1 + n
	end := start + int(length)
	if end > len(rest) {
		it.err = ErrShortFrame
		return false
	}
	it.curTag = tag
	it.curPayload = rest[start:end]
	it.off += end
	return true
}

// Err reports the error, if any, that stopped the last Next call.
func (it *Iterator) Err() error { return it.err }

// Tag returns the current frame's tag.
func (it *Iterator) Tag() Tag { return it.curTag }

// Payload returns the current frame's raw payload bytes.
func (it *Iterator) Payload() []byte { return it.curPayload }

// Parse decodes the current frame's payload into its typed command
// value, dispatching on Tag(). PortStatusChange and SetProperty frames
// decode to nil (see Tag.Implemented).
func (it *Iterator) Parse() (interface{}, error) {
	return parseCommand(it.curTag, it.curPayload)
}

func parseCommand(tag Tag, payload []byte) (interface{}, error) {
	switch tag {
	case TagNodeUpdate:
		return parseNodeUpdate(payload)
	case TagPortUpdate:
		return parsePortUpdate(payload)
	case TagPortStatusChange:
		return nil, nil
	case TagNodeStateChange:
		return parseNodeStateChange(payload)
	case TagAddPort:
		return parsePortRef(payload, func(portID uint32, dir Direction) interface{} {
			return AddPort{PortID: portID, Direction: dir}
		})
	case TagRemovePort:
		return parsePortRef(payload, func(portID uint32, dir Direction) interface{} {
			return RemovePort{PortID: portID, Direction: dir}
		})
	case TagSetFormat:
		return parseSetFormat(payload)
	case TagSetProperty:
		return nil, nil
	case TagAddMem:
		return parseAddMem(payload)
	case TagRemoveMem:
		return parseRemoveMem(payload)
	case TagUseBuffers:
		return parseUseBuffers(payload)
	case TagProcessBuffer:
		if len(payload) < 4 {
			return nil, ErrMalformed
		}
		return ProcessBuffer{PortID: getU32(payload)}, nil
	case TagNodeEvent:
		return parseNodeEvent(payload)
	case TagNodeCommand:
		return parseNodeCommand(payload)
	default:
		return nil, ErrUnknownTag
	}
}

func need(b []byte, n int) error {
	if len(b) < n {
		return ErrMalformed
	}
	return nil
}

// sliceFrom validates offset against payload's bounds (spec.md's
// offset-containment property: every non-zero offset must satisfy
// 0 <= offset < len(payload)) and returns the tail starting there.
func sliceFrom(payload []byte, offset uint32) ([]byte, error) {
	if offset == 0 || offset >= uint32(len(payload)) {
		return nil, ErrMalformed
	}
	return payload[offset:], nil
}

func parseNodeUpdate(p []byte) (NodeUpdate, error) {
	if err := need(p, nodeUpdateHeaderSize); err != nil {
		return NodeUpdate{}, err
	}
	u := NodeUpdate{
		ChangeMask:     getU32(p[0:4]),
		MaxInputPorts:  getU32(p[4:8]),
		MaxOutputPorts: getU32(p[8:12]),
	}
	if u.ChangeMask&NodeUpdateProps != 0 {
		tail, err := sliceFrom(p, getU32(p[12:16]))
		if err != nil {
			return NodeUpdate{}, err
		}
		v, _, err := pod.Decode(tail)
		if err != nil {
			return NodeUpdate{}, err
		}
		u.Props = &v
	}
	return u, nil
}

func parsePortUpdate(p []byte) (PortUpdate, error) {
	if err := need(p, portUpdateHeaderSize); err != nil {
		return PortUpdate{}, err
	}
	u := PortUpdate{
		PortID:     getU32(p[0:4]),
		Direction:  Direction(getU32(p[4:8])),
		ChangeMask: getU32(p[8:12]),
	}
	if u.ChangeMask&PortUpdatePossibleFormats != 0 {
		n := int(getU32(p[16:20]))
		u.PossibleFormats = make([]pod.Value, 0, n)
		var offsets []byte
		if n > 0 {
			var err error
			offsets, err = sliceFrom(p, getU32(p[12:16]))
			if err != nil {
				return PortUpdate{}, err
			}
			if err := need(offsets, n*4); err != nil {
				return PortUpdate{}, err
			}
		}
		for i := 0; i < n; i++ {
			blobOff := getU32(offsets[i*4 : i*4+4])
			blob, err := sliceFrom(p, blobOff)
			if err != nil {
				return PortUpdate{}, err
			}
			v, _, err := pod.Decode(blob)
			if err != nil {
				return PortUpdate{}, err
			}
			u.PossibleFormats = append(u.PossibleFormats, v)
		}
	}
	if u.ChangeMask&PortUpdateFormat != 0 {
		tail, err := sliceFrom(p, getU32(p[20:24]))
		if err != nil {
			return PortUpdate{}, err
		}
		v, _, err := pod.Decode(tail)
		if err != nil {
			return PortUpdate{}, err
		}
		u.Format = &v
	}
	if u.ChangeMask&PortUpdateProps != 0 {
		tail, err := sliceFrom(p, getU32(p[24:28]))
		if err != nil {
			return PortUpdate{}, err
		}
		v, _, err := pod.Decode(tail)
		if err != nil {
			return PortUpdate{}, err
		}
		u.Props = &v
	}
	if u.ChangeMask&PortUpdateInfo != 0 {
		tail, err := sliceFrom(p, getU32(p[28:32]))
		if err != nil {
			return PortUpdate{}, err
		}
		v, _, err := pod.Decode(tail)
		if err != nil {
			return PortUpdate{}, err
		}
		u.Info = &v
	}
	return u, nil
}

func parseNodeStateChange(p []byte) (NodeStateChange, error) {
	if err := need(p, 8); err != nil {
		return NodeStateChange{}, err
	}
	return NodeStateChange{
		OldState: NodeState(getU32(p[0:4])),
		NewState: NodeState(getU32(p[4:8])),
	}, nil
}

func parsePortRef(p []byte, build func(uint32, Direction) interface{}) (interface{}, error) {
	if err := need(p, 8); err != nil {
		return nil, err
	}
	return build(getU32(p[0:4]), Direction(getU32(p[4:8]))), nil
}

func parseSetFormat(p []byte) (SetFormat, error) {
	if err := need(p, setFormatHeaderSize); err != nil {
		return SetFormat{}, err
	}
	tail, err := sliceFrom(p, getU32(p[8:12]))
	if err != nil {
		return SetFormat{}, err
	}
	v, _, err := pod.Decode(tail)
	if err != nil {
		return SetFormat{}, err
	}
	return SetFormat{
		PortID:    getU32(p[0:4]),
		Direction: Direction(getU32(p[4:8])),
		Format:    v,
	}, nil
}

func parseAddMem(p []byte) (AddMem, error) {
	if err := need(p, 24); err != nil {
		return AddMem{}, err
	}
	return AddMem{
		PortID:    getU32(p[0:4]),
		Direction: Direction(getU32(p[4:8])),
		MemID:     getU32(p[8:12]),
		MemType:   getU32(p[12:16]),
		FdIndex:   int(getU32(p[16:20])),
		Flags:     getU32(p[20:24]),
	}, nil
}

func parseRemoveMem(p []byte) (RemoveMem, error) {
	if err := need(p, 12); err != nil {
		return RemoveMem{}, err
	}
	return RemoveMem{
		PortID:    getU32(p[0:4]),
		Direction: Direction(getU32(p[4:8])),
		MemID:     getU32(p[8:12]),
	}, nil
}

func parseUseBuffers(p []byte) (UseBuffers, error) {
	if err := need(p, useBuffersHeaderSize); err != nil {
		return UseBuffers{}, err
	}
	u := UseBuffers{
		PortID:    getU32(p[0:4]),
		Direction: Direction(getU32(p[4:8])),
	}
	n := int(getU32(p[8:12]))
	off := getU32(p[12:16])
	if n == 0 {
		return u, nil
	}
	rest, err := sliceFrom(p, off)
	if err != nil {
		return UseBuffers{}, err
	}
	if err := need(rest, n*bufferSpecSize); err != nil {
		return UseBuffers{}, err
	}
	u.Buffers = make([]BufferSpec, 0, n)
	for i := 0; i < n; i++ {
		r := rest[i*bufferSpecSize:]
		u.Buffers = append(u.Buffers, BufferSpec{
			MemID:  getU32(r[0:4]),
			Offset: getU32(r[4:8]),
			Size:   getU32(r[8:12]),
		})
	}
	return u, nil
}

func parseNodeEvent(p []byte) (NodeEvent, error) {
	if err := need(p, eventHeaderSize); err != nil {
		return NodeEvent{}, err
	}
	ev := NodeEvent{EventType: getU32(p[0:4])}
	if off := getU32(p[4:8]); off != 0 {
		tail, err := sliceFrom(p, off)
		if err != nil {
			return NodeEvent{}, err
		}
		ev.Data = tail
	}
	return ev, nil
}

func parseNodeCommand(p []byte) (NodeCommand, error) {
	if err := need(p, eventHeaderSize); err != nil {
		return NodeCommand{}, err
	}
	cmd := NodeCommand{CommandType: getU32(p[0:4])}
	if off := getU32(p[4:8]); off != 0 {
		tail, err := sliceFrom(p, off)
		if err != nil {
			return NodeCommand{}, err
		}
		cmd.Data = tail
	}
	return cmd, nil
}
