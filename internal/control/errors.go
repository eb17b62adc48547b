package control

import "errors"

var (
	// ErrShortFrame is returned when a frame's declared length exceeds
	// the bytes available in the buffer (control.c: spa_control_read's
	// "len < 4" / truncated-recvmsg checks).
	ErrShortFrame = errors.New("control: short frame")
	// ErrMalformed is returned when a command's payload does not match
	// its tag's expected shape.
	ErrMalformed = errors.New("control: malformed payload")
	// ErrUnknownTag is returned by Iterator.Parse for a tag value outside
	// the known range.
	ErrUnknownTag = errors.New("control: unknown tag")
	// ErrNoFd is returned when a command references an FD table index
	// that is out of range.
	ErrNoFd = errors.New("control: fd index out of range")
	// ErrFdTableFull names an FD table that cannot take another entry.
	// FdTable grows without a limit, and no method returns it.
	ErrFdTableFull = errors.New("control: fd table full")
	// ErrBuilderFinalized is returned by the frame-appending Builder
	// methods when called after Finalize.
	ErrBuilderFinalized = errors.New("control: builder already finalized")
)
