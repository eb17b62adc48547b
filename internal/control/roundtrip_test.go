package control

import (
	"os"
	"syscall"
	"testing"

	"github.com/kstaniek/spa-control/internal/pod"
)

func buildFormat(t *testing.T) []byte {
	t.Helper()
	b := pod.NewBuilder()
	b.PushObject(1, 1)
	b.PushProp(1, pod.PropRangeNone)
	b.Rectangle(pod.Rectangle{Width: 1920, Height: 1080})
	if err := b.Pop(); err != nil {
		t.Fatalf("pop prop: %v", err)
	}
	b.PushProp(2, pod.PropRangeNone)
	b.Fraction(pod.Fraction{Num: 30, Denom: 1})
	if err := b.Pop(); err != nil {
		t.Fatalf("pop prop: %v", err)
	}
	if err := b.Pop(); err != nil {
		t.Fatalf("pop object: %v", err)
	}
	return b.Bytes()
}

// TestNodeStateChangeTagByte checks the wire tag byte for
// NODE_STATE_CHANGE is 0x04, matching the fixed command ordering.
func TestNodeStateChangeTagByte(t *testing.T) {
	var buf Buffer
	b := NewBuilder(&buf)
	if err := b.NodeStateChange(NodeStateConfigure, NodeStateReady); err != nil {
		t.Fatalf("NodeStateChange: %v", err)
	}
	data := b.Finalize()
	if len(data) == 0 || data[0] != 0x04 {
		t.Fatalf("tag byte = %#x, want 0x04", data[0])
	}

	it := NewIterator(data)
	if !it.Next() {
		t.Fatalf("Next: %v", it.Err())
	}
	if it.Tag() != TagNodeStateChange {
		t.Fatalf("tag = %v, want NodeStateChange", it.Tag())
	}
	val, err := it.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sc, ok := val.(NodeStateChange)
	if !ok {
		t.Fatalf("Parse returned %T", val)
	}
	if sc.OldState != NodeStateConfigure || sc.NewState != NodeStateReady {
		t.Fatalf("got %+v", sc)
	}
	if it.Next() {
		t.Fatalf("unexpected second frame")
	}
}

func TestSetFormatRoundTrip(t *testing.T) {
	format := buildFormat(t)
	var buf Buffer
	b := NewBuilder(&buf)
	if err := b.SetFormat(3, DirectionOutput, format); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}
	data := b.Finalize()

	it := NewIterator(data)
	if !it.Next() {
		t.Fatalf("Next: %v", it.Err())
	}
	val, err := it.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sf, ok := val.(SetFormat)
	if !ok {
		t.Fatalf("Parse returned %T", val)
	}
	if sf.PortID != 3 || sf.Direction != DirectionOutput {
		t.Fatalf("got %+v", sf)
	}
	props, err := sf.Format.Props()
	if err != nil {
		t.Fatalf("Props: %v", err)
	}
	if len(props) != 2 {
		t.Fatalf("len(props) = %d, want 2", len(props))
	}
	size, err := props[0].Main.RectangleValue()
	if err != nil || size != (pod.Rectangle{Width: 1920, Height: 1080}) {
		t.Fatalf("size = %v, %v", size, err)
	}
}

// TestAddMemReferencesFdTable checks AddMem's fd index is validated
// against the builder's Buffer.Fds and round-trips through parsing.
func TestAddMemReferencesFdTable(t *testing.T) {
	var buf Buffer
	b := NewBuilder(&buf)
	idx := b.AddFd(42, true)
	if err := b.AddMem(1, DirectionInput, 7, 1, idx, 0); err != nil {
		t.Fatalf("AddMem: %v", err)
	}
	if err := b.AddMem(1, DirectionInput, 8, 1, 99, 0); err != ErrNoFd {
		t.Fatalf("err = %v, want ErrNoFd", err)
	}
	data := b.Finalize()

	it := NewIterator(data)
	if !it.Next() {
		t.Fatalf("Next: %v", it.Err())
	}
	val, err := it.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	am, ok := val.(AddMem)
	if !ok {
		t.Fatalf("Parse returned %T", val)
	}
	if am.FdIndex != idx {
		t.Fatalf("FdIndex = %d, want %d", am.FdIndex, idx)
	}
	fd, err := buf.Fds.Get(am.FdIndex, false)
	if err != nil || fd != 42 {
		t.Fatalf("Get(%d) = %d, %v", am.FdIndex, fd, err)
	}
}

// TestFdTableTakeCloseTransfersOwnership exercises scenario S2: after
// get_fd(0, take_close=true) the fd is borrowed, so Clear must not
// close it.
func TestFdTableTakeCloseTransfersOwnership(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	var tbl FdTable
	idx := tbl.Add(int(w.Fd()), true)

	fd, err := tbl.Get(idx, true)
	if err != nil || fd != int(w.Fd()) {
		t.Fatalf("Get(%d, true) = %d, %v", idx, fd, err)
	}

	tbl.Clear()

	if err := syscall.Close(fd); err != nil {
		t.Fatalf("fd %d was closed by Clear despite take_close=true: %v", fd, err)
	}
}

// TestUseBuffersOffsetLayout exercises scenario S3: two buffer records
// whose offset field equals sizeof(header).
func TestUseBuffersOffsetLayout(t *testing.T) {
	var buf Buffer
	b := NewBuilder(&buf)
	specs := []BufferSpec{
		{MemID: 1, Offset: 0, Size: 4096},
		{MemID: 1, Offset: 4096, Size: 4096},
	}
	if err := b.UseBuffers(2, DirectionOutput, specs); err != nil {
		t.Fatalf("UseBuffers: %v", err)
	}
	data := b.Finalize()

	it := NewIterator(data)
	if !it.Next() {
		t.Fatalf("Next: %v", it.Err())
	}
	payload := it.Payload()
	if got := getU32(payload[12:16]); got != useBuffersHeaderSize {
		t.Fatalf("buffersOffset = %d, want %d", got, useBuffersHeaderSize)
	}
	val, err := it.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ub, ok := val.(UseBuffers)
	if !ok {
		t.Fatalf("Parse returned %T", val)
	}
	if len(ub.Buffers) != 2 || ub.Buffers[1].Offset != 4096 {
		t.Fatalf("got %+v", ub.Buffers)
	}
}

// TestMultipleFramesInOneBuffer checks several commands of different
// tags concatenate and iterate in order.
func TestMultipleFramesInOneBuffer(t *testing.T) {
	var buf Buffer
	b := NewBuilder(&buf)
	if err := b.AddPort(1, DirectionInput); err != nil {
		t.Fatalf("AddPort: %v", err)
	}
	if err := b.ProcessBuffer(1); err != nil {
		t.Fatalf("ProcessBuffer: %v", err)
	}
	if err := b.RemovePort(1, DirectionInput); err != nil {
		t.Fatalf("RemovePort: %v", err)
	}
	data := b.Finalize()

	wantTags := []Tag{TagAddPort, TagProcessBuffer, TagRemovePort}
	it := NewIterator(data)
	for _, want := range wantTags {
		if !it.Next() {
			t.Fatalf("Next: %v", it.Err())
		}
		if it.Tag() != want {
			t.Fatalf("tag = %v, want %v", it.Tag(), want)
		}
		if _, err := it.Parse(); err != nil {
			t.Fatalf("Parse(%v): %v", want, err)
		}
	}
	if it.Next() {
		t.Fatalf("unexpected extra frame")
	}
}

// TestUnimplementedCommandsRoundTripEmpty checks PORT_STATUS_CHANGE and
// SET_PROPERTY encode as zero-length payloads and parse to nil without
// an error, matching the original protocol's unfinished status.
func TestUnimplementedCommandsRoundTripEmpty(t *testing.T) {
	var buf Buffer
	b := NewBuilder(&buf)
	if err := b.PortStatusChange(); err != nil {
		t.Fatalf("PortStatusChange: %v", err)
	}
	if err := b.SetProperty(); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	data := b.Finalize()

	it := NewIterator(data)
	for _, want := range []Tag{TagPortStatusChange, TagSetProperty} {
		if !it.Next() {
			t.Fatalf("Next: %v", it.Err())
		}
		if it.Tag() != want {
			t.Fatalf("tag = %v, want %v", it.Tag(), want)
		}
		if len(it.Payload()) != 0 {
			t.Fatalf("payload = %v, want empty", it.Payload())
		}
		val, err := it.Parse()
		if err != nil || val != nil {
			t.Fatalf("Parse = %v, %v; want nil, nil", val, err)
		}
		if want.Implemented() {
			t.Fatalf("%v reported Implemented, want false", want)
		}
	}
}

// TestShortFrameRejected checks a truncated varint length is reported
// rather than silently under-reading.
func TestShortFrameRejected(t *testing.T) {
	it := NewIterator([]byte{byte(TagNodeStateChange), 0x80})
	if it.Next() {
		t.Fatalf("Next unexpectedly succeeded")
	}
	if it.Err() == nil {
		t.Fatalf("Err() = nil, want an error")
	}
}
