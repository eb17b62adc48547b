//go:build linux

package transport

import "golang.org/x/sys/unix"

// Listener is a bound, listening Unix-domain socket accepting
// SOCK_SEQPACKET or SOCK_STREAM connections, grounded on the same
// unix.Socket/unix.Bind idiom as Dial/socketcan.Device.Open.
type Listener struct {
	fd int
}

// Listen binds a Unix-domain socket at path and starts listening with
// the given backlog. An existing socket file at path is removed first
// (the teacher repo's TCP listener has no analogous step; Unix-domain
// sockets require it since bind fails on an existing path).
func Listen(path string, sockType, backlog int) (*Listener, error) {
	_ = unix.Unlink(path)
	fd, err := unix.Socket(unix.AF_UNIX, sockType, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &Listener{fd: fd}, nil
}

// Accept blocks until a client connects and returns a Socket wrapping
// the accepted connection, retrying on EINTR.
func (l *Listener) Accept() (*Socket, error) {
	var fd int
	err := retryEINTR(func() error {
		var e error
		fd, _, e = unix.Accept4(l.fd, unix.SOCK_CLOEXEC)
		return e
	})
	if err != nil {
		return nil, err
	}
	return NewSocket(fd), nil
}

// Close closes the listening socket.
func (l *Listener) Close() error { return unix.Close(l.fd) }

// Fd returns the underlying descriptor.
func (l *Listener) Fd() int { return l.fd }
