package control

import "github.com/kstaniek/spa-control/internal/pod"

// Direction distinguishes input from output ports, shared by every
// command that references a port.
type Direction uint32

const (
	DirectionInput Direction = iota
	DirectionOutput
)

// NodeState enumerates a node's lifecycle state, as carried by
// NodeStateChange.
type NodeState uint32

const (
	NodeStateCreated NodeState = iota
	NodeStateConfigure
	NodeStateReady
	NodeStateStreaming
	NodeStateError
)

// Node update change-mask bits: which of NodeUpdate's optional fields
// are present.
const (
	NodeUpdateMaxInputPorts uint32 = 1 << iota
	NodeUpdateMaxOutputPorts
	NodeUpdateProps
)

// NodeUpdate announces a node's port limits and properties. On the
// wire, Props is relocatable: the frame header carries a byte offset
// from the payload base to the POD region (0 = absent) rather than an
// inline tail, per spec.md's offset-layout contract for variable
// sub-objects (see Builder.NodeUpdate).
type NodeUpdate struct {
	ChangeMask     uint32
	MaxInputPorts  uint32
	MaxOutputPorts uint32
	Props          *pod.Value // OBJECT value, present iff ChangeMask&NodeUpdateProps != 0
}

// Port update change-mask bits.
const (
	PortUpdatePossibleFormats uint32 = 1 << iota
	PortUpdateFormat
	PortUpdateProps
	PortUpdateInfo
)

// PortUpdate announces a port's negotiable state. PossibleFormats,
// Format, Props and Info each sit behind their own offset field in the
// wire header (see Builder.PortUpdate); any combination may be absent.
type PortUpdate struct {
	PortID          uint32
	Direction       Direction
	ChangeMask      uint32
	PossibleFormats []pod.Value // each an OBJECT-shaped format descriptor
	Format          *pod.Value
	Props           *pod.Value
	Info            *pod.Value // property-bag of port-info fields (spec.md §3)
}

// NodeStateChange reports a node lifecycle transition.
type NodeStateChange struct {
	OldState NodeState
	NewState NodeState
}

// AddPort announces a new port on the node.
type AddPort struct {
	PortID    uint32
	Direction Direction
}

// RemovePort announces a port's removal.
type RemovePort struct {
	PortID    uint32
	Direction Direction
}

// SetFormat negotiates a port's active format. Format is required, so
// its offset field is always non-zero on the wire.
type SetFormat struct {
	PortID    uint32
	Direction Direction
	Format    pod.Value // OBJECT value
}

// AddMem attaches a shared memory region to a port, identified by an
// index into the buffer's FdTable rather than a raw fd (the fd itself
// travels out of band over SCM_RIGHTS).
type AddMem struct {
	PortID    uint32
	Direction Direction
	MemID     uint32
	MemType   uint32
	FdIndex   int
	Flags     uint32
}

// RemoveMem detaches a previously added memory region.
type RemoveMem struct {
	PortID    uint32
	Direction Direction
	MemID     uint32
}

// BufferSpec is one memory-reference record in a UseBuffers command:
// the MemID of a region already attached via AddMem, plus the
// offset/size slice of it this buffer occupies (spec.md §3/S3).
type BufferSpec struct {
	MemID  uint32
	Offset uint32
	Size   uint32
}

// UseBuffers assigns the set of buffers a port will cycle through. The
// buffer records sit at the wire offset given by the header's
// buffersOffset field (sizeof(header) when present, 0 when Buffers is
// empty), matching scenario S3.
type UseBuffers struct {
	PortID    uint32
	Direction Direction
	Buffers   []BufferSpec
}

// ProcessBuffer signals that a port's next queued buffer is ready.
type ProcessBuffer struct {
	PortID uint32
}

// NodeEvent carries an out-of-band event with an opaque byte payload
// (e.g. a format-changed notification). Data is not assumed to be POD;
// callers that need structured data encode/decode it themselves.
type NodeEvent struct {
	EventType uint32
	Data      []byte
}

// NodeCommand carries a control request directed at a node (e.g.
// pause/start) with an opaque byte payload.
type NodeCommand struct {
	CommandType uint32
	Data        []byte
}
