package control

import "syscall"

// FdTable holds the file descriptors a command buffer references,
// alongside the bytes that carry SCM_RIGHTS-transported FDs out of
// band. Ownership is encoded in the stored value's sign: a positive
// entry is owned by the table (Clear closes it); a negative entry is
// borrowed (the caller keeps responsibility for closing it).
//
// Grounded on control.c's spa_control_builder_add_fd /
// spa_control_get_fd / spa_control_clear, which use the same
// sign-flip convention directly on an int array instead of a struct
// slice.
type FdTable struct {
	entries []int
}

// Add records fd, deduplicating by magnitude: if fd (or its negation)
// is already present, Add returns the existing index instead of
// appending. owned controls whether Clear closes this entry.
func (t *FdTable) Add(fd int, owned bool) int {
	for i, e := range t.entries {
		if e == fd || e == -fd {
			return i
		}
	}
	v := fd
	if !owned {
		v = -fd
	}
	t.entries = append(t.entries, v)
	return len(t.entries) - 1
}

// Len reports the number of distinct FDs recorded.
func (t *FdTable) Len() int { return len(t.entries) }

// Get returns the raw fd at index and updates its ownership bit to
// match takeClose: true means the caller is taking over close
// responsibility (the entry becomes borrowed, so Clear will not close
// it); false means the table keeps ownership (the entry stays, or
// becomes, owned). This mirrors control.c's spa_control_get_fd, which
// flips the stored sign on every read rather than leaving it to a
// separate call — a caller that reads an fd out of a received buffer
// to hand to a long-lived object must take_close=true, or the table
// will close the fd out from under it on the next Clear.
func (t *FdTable) Get(index int, takeClose bool) (fd int, err error) {
	if index < 0 || index >= len(t.entries) {
		return 0, ErrNoFd
	}
	e := t.entries[index]
	if e < 0 {
		fd = -e
	} else {
		fd = e
	}
	if takeClose {
		t.entries[index] = -fd
	} else {
		t.entries[index] = fd
	}
	return fd, nil
}

// Raw returns the fd's absolute value regardless of ownership, without
// altering it, the form sent over SCM_RIGHTS (control.c strips the
// sign before writing to the ancillary message too).
func (t *FdTable) Raw(index int) (int, error) {
	if index < 0 || index >= len(t.entries) {
		return 0, ErrNoFd
	}
	e := t.entries[index]
	if e < 0 {
		return -e, nil
	}
	return e, nil
}

// All returns the absolute fd values in table order, for handing to a
// transport's sendmsg call.
func (t *FdTable) All() []int {
	out := make([]int, len(t.entries))
	for i, e := range t.entries {
		if e < 0 {
			out[i] = -e
		} else {
			out[i] = e
		}
	}
	return out
}

// Clear closes every owned (positive) entry and empties the table.
func (t *FdTable) Clear() {
	for _, e := range t.entries {
		if e > 0 {
			_ = syscall.Close(e)
		}
	}
	t.entries = t.entries[:0]
}

// Reset empties the table without closing anything, for reuse of a
// table whose FDs were handed off elsewhere (e.g. after a transport
// write consumed them into a received buffer on the peer side).
func (t *FdTable) Reset() {
	t.entries = t.entries[:0]
}
