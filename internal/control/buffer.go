package control

// Buffer is a command stream's backing store: a growable byte region
// holding framed tag+length+payload records, plus the FdTable for FDs
// those payloads reference by index. A Buffer is reused across
// Builder.Finalize/Clear cycles to avoid reallocating on every
// command batch, mirroring control.c's SpaStackControl.
type Buffer struct {
	Data []byte
	Fds  FdTable
}

// ensureByteCapacity makes room for n more bytes after len(Data),
// leaving Data alone if its capacity already suffices; otherwise it
// uses control.c's builder_ensure_size growth rule: grow to
// current_size + max(needed, 1024), not a fixed increment, so small
// buffers jump to a working size quickly and large ones grow in big
// strides rather than one byte at a time.
func (b *Buffer) ensureByteCapacity(n int) {
	need := len(b.Data) + n
	if cap(b.Data) >= need {
		return
	}
	grow := n
	if grow < 1024 {
		grow = 1024
	}
	newCap := len(b.Data) + grow
	if newCap < need {
		newCap = need
	}
	grown := make([]byte, len(b.Data), newCap)
	copy(grown, b.Data)
	b.Data = grown
}

// Clear empties the byte region and releases any FDs the table owns,
// matching control.c's spa_control_clear (close owned FDs, reset
// offsets, keep the underlying allocation for reuse).
func (b *Buffer) Clear() {
	b.Data = b.Data[:0]
	b.Fds.Clear()
}

// Reset empties the byte region without touching FD ownership, for
// reuse after the FDs were already handed off (e.g. a transport write
// that consumed them into an SCM_RIGHTS message).
func (b *Buffer) Reset() {
	b.Data = b.Data[:0]
	b.Fds.Reset()
}
