//go:build linux

// Package transport implements the control channel's wire transport: a
// connected Unix-domain socket carrying a byte buffer in the message
// body and an FD array as SCM_RIGHTS ancillary data, one buffer per
// sendmsg/recvmsg pair (spec.md §4.7).
//
// Grounded on the teacher's internal/socketcan.Device, which opened a
// raw AF_CAN socket with golang.org/x/sys/unix and did manual
// Read/Write syscalls; the same unix.Socket/unix.Bind/unix.Sendmsg
// idiom carries over here, retargeted from AF_CAN SOCK_RAW CAN frames
// to AF_UNIX SOCK_SEQPACKET buffer+FD-array messages.
package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrShortRead is returned when fewer than 4 bytes are received,
// matching spec.md §4.7's minimum-frame-size check.
var ErrShortRead = errors.New("transport: short read")

// SockSeqpacket returns the socket type for a message-boundary-
// preserving control channel (spec.md §6: "connected AF_UNIX
// SOCK_SEQPACKET or SOCK_STREAM"). This is the default: seqpacket
// keeps one sendmsg's bytes and FDs together as a single recvmsg on
// the peer side with no reassembly.
func SockSeqpacket() int { return unix.SOCK_SEQPACKET }

// SockStream returns the socket type for a SOCK_STREAM control
// channel, for peers that need to interoperate with software that
// cannot open SOCK_SEQPACKET (e.g. some older Unix-socket clients).
// Message boundaries are then the caller's responsibility beyond what
// one sendmsg/recvmsg pair already buys.
func SockStream() int { return unix.SOCK_STREAM }

// Socket wraps a connected Unix-domain socket descriptor.
type Socket struct {
	fd int
}

// Dial connects to a Unix-domain socket at path using sockType (e.g.
// unix.SOCK_SEQPACKET or unix.SOCK_STREAM).
func Dial(path string, sockType int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, sockType, 0)
	if err != nil {
		return nil, err
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := retryEINTR(func() error { return unix.Connect(fd, addr) }); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// NewSocket wraps an already-connected descriptor, e.g. one returned
// by accept(2) on a listening socket.
func NewSocket(fd int) *Socket { return &Socket{fd: fd} }

// Fd returns the underlying descriptor, for use in select/poll loops
// or to hand to accept-loop bookkeeping.
func (s *Socket) Fd() int { return s.fd }

// Close closes the underlying descriptor.
func (s *Socket) Close() error { return unix.Close(s.fd) }

func retryEINTR(f func() error) error {
	for {
		if err := f(); err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		return nil
	}
}

// Write issues a single sendmsg carrying data in one iovec and fds (if
// any) as a single SCM_RIGHTS ancillary message, with sign bits
// already stripped by the caller (see control.FdTable.All). It retries
// on EINTR; any short write or other error is reported as-is.
func (s *Socket) Write(data []byte, fds []int) error {
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	return retryEINTR(func() error {
		n, err := unix.SendmsgN(s.fd, data, oob, nil, 0)
		if err != nil {
			return err
		}
		if n != len(data) {
			return errors.New("transport: short write")
		}
		return nil
	})
}

// Read issues a single recvmsg into a buffer of at most maxBytes,
// setting MSG_CMSG_CLOEXEC on any FDs received, and retries on EINTR.
// It returns the received payload bytes and any FDs carried in
// SCM_RIGHTS control messages, concatenated in the order received.
// It fails with ErrShortRead if fewer than 4 bytes come back, per
// spec.md §4.7.
func (s *Socket) Read(maxBytes int) (data []byte, fds []int, err error) {
	buf := make([]byte, maxBytes)
	oob := make([]byte, unix.CmsgSpace(64*4)) // room for up to 64 FDs
	var n, oobn int
	rerr := retryEINTR(func() error {
		var e error
		n, oobn, _, _, e = unix.Recvmsg(s.fd, buf, oob, unix.MSG_CMSG_CLOEXEC)
		return e
	})
	if rerr != nil {
		return nil, nil, rerr
	}
	if n < 4 {
		return nil, nil, ErrShortRead
	}
	if oobn > 0 {
		cmsgs, perr := unix.ParseSocketControlMessage(oob[:oobn])
		if perr != nil {
			return nil, nil, perr
		}
		for _, cmsg := range cmsgs {
			rights, rerr := unix.ParseUnixRights(&cmsg)
			if rerr != nil {
				return nil, nil, rerr
			}
			fds = append(fds, rights...)
		}
	}
	return buf[:n], fds, nil
}
