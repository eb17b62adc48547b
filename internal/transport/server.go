package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/spa-control/internal/asynctx"
	"github.com/kstaniek/spa-control/internal/control"
	"github.com/kstaniek/spa-control/internal/logging"
	"github.com/kstaniek/spa-control/internal/metrics"
	"github.com/kstaniek/spa-control/internal/registry"
)

// Peer bundles the accepted socket and bookkeeping for one connected
// client: a reader goroutine decodes frames off Sock and hands them to
// the Server's Dispatch callback, and an AsyncTx queues outbound
// writes back to the same Sock.
type Peer struct {
	ID   uint64
	Sock *Socket
	Tx   *asynctx.AsyncTx
	Sub  *registry.Subscriber
}

// Dispatch is invoked once per decoded frame received from a Peer.
type Dispatch func(peer *Peer, tag control.Tag, value interface{})

// Server accepts control-channel connections on a Unix-domain socket
// and runs a reader/writer goroutine pair per peer, adapted from the
// teacher's internal/server.Server (TCP accept loop + ServerOption
// functional options), retargeted from a CAN-over-TCP hub fan-out to
// this protocol's per-peer request/response + SCM_RIGHTS shape.
type Server struct {
	mu   sync.RWMutex
	path string

	Registry      *registry.Registry
	Dispatch      Dispatch
	SockType      int
	maxClients    int
	maxFrameBytes int
	txBuffer      int

	readyOnce sync.Once
	readyCh   chan struct{}
	lastErrMu sync.Mutex
	lastErr   error
	errCh     chan error

	listener   *Listener
	peersMu    sync.RWMutex
	peers      map[*Peer]struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
	nextConnID uint64

	totalAccepted     atomic.Uint64
	totalConnected    atomic.Uint64
	totalDisconnected atomic.Uint64
	totalRejected     atomic.Uint64
}

const (
	defaultMaxFrameBytes = 1 << 20
	defaultTxBuffer      = 256
	defaultBacklog       = 16
)

type ServerOption func(*Server)

// NewServer constructs a Server; Serve must be called to start accepting.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		SockType:      SockSeqpacket(),
		maxFrameBytes: defaultMaxFrameBytes,
		txBuffer:      defaultTxBuffer,
		readyCh:       make(chan struct{}),
		errCh:         make(chan error, 1),
		peers:         make(map[*Peer]struct{}),
		logger:        logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func WithPath(p string) ServerOption         { return func(s *Server) { s.path = p } }
func WithRegistry(r *registry.Registry) ServerOption {
	return func(s *Server) { s.Registry = r }
}
func WithDispatch(d Dispatch) ServerOption { return func(s *Server) { s.Dispatch = d } }
func WithSockType(t int) ServerOption      { return func(s *Server) { s.SockType = t } }

func WithMaxClients(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxClients = n
		}
	}
}

func WithMaxFrameBytes(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxFrameBytes = n
		}
	}
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func (s *Server) Ready() <-chan struct{} { return s.readyCh }
func (s *Server) Errors() <-chan error   { return s.errCh }

func (s *Server) setError(err error) {
	if err == nil {
		return
	}
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	select {
	case s.errCh <- err:
	default:
	}
	metrics.IncError(metrics.ErrTransportWrite)
}

func (s *Server) LastError() error {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr
}

// Count reports the number of currently connected peers.
func (s *Server) Count() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// Serve listens on the configured path and accepts peers until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := Listen(s.path, s.SockType, defaultBacklog)
	if err != nil {
		wrap := fmt.Errorf("transport listen: %w", err)
		s.setError(wrap)
		return wrap
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("unix_listen", "path", s.path)
	go func() { <-ctx.Done(); _ = ln.Close() }()
	for {
		if err := s.acceptOnce(ctx, ln); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Server) acceptOnce(ctx context.Context, ln *Listener) error {
	sock, err := ln.Accept()
	if err != nil {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		time.Sleep(200 * time.Millisecond)
		return nil
	}
	s.totalAccepted.Add(1)
	if s.maxClients > 0 && s.Count() >= s.maxClients {
		s.totalRejected.Add(1)
		s.logger.Warn("peer_reject_max", "max_clients", s.maxClients)
		_ = sock.Close()
		return nil
	}
	connID := atomic.AddUint64(&s.nextConnID, 1)
	connLogger := s.logger.With("conn_id", connID)

	peer := &Peer{ID: connID, Sock: sock}
	peer.Tx = asynctx.New(ctx, s.txBuffer, func(msg asynctx.Message) error {
		return sock.Write(msg.Data, msg.Fds)
	}, asynctx.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrTransportWrite)
			connLogger.Warn("peer_write_error", "error", err)
		},
	})
	if s.Registry != nil {
		peer.Sub = s.Registry.NewSubscriber()
		s.Registry.Add(peer.Sub)
	}

	s.peersMu.Lock()
	s.peers[peer] = struct{}{}
	s.peersMu.Unlock()
	s.totalConnected.Add(1)
	connLogger.Info("peer_connected")

	s.wg.Add(1)
	go s.readLoop(ctx, peer, connLogger)
	return nil
}

func (s *Server) readLoop(ctx context.Context, peer *Peer, logger *slog.Logger) {
	defer s.wg.Done()
	defer s.removePeer(peer, logger)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		data, fds, err := peer.Sock.Read(s.maxFrameBytes)
		if err != nil {
			metrics.IncError(metrics.ErrTransportRead)
			logger.Warn("peer_read_error", "error", err)
			return
		}
		metrics.AddTransportBytesRx(len(data))
		metrics.AddTransportFdsRx(len(fds))
		it := control.NewIterator(data)
		for it.Next() {
			val, perr := it.Parse()
			if perr != nil {
				metrics.IncMalformed()
				logger.Warn("frame_parse_error", "tag", it.Tag(), "error", perr)
				continue
			}
			metrics.IncCommandsParsed(it.Tag())
			if s.Registry != nil {
				s.Registry.Broadcast(registry.Command{Tag: uint32(it.Tag()), Value: val})
			}
			if s.Dispatch != nil {
				s.Dispatch(peer, it.Tag(), val)
			}
		}
		if it.Err() != nil {
			metrics.IncMalformed()
			logger.Warn("frame_stream_error", "error", it.Err())
			return
		}
	}
}

func (s *Server) removePeer(peer *Peer, logger *slog.Logger) {
	peer.Tx.Close()
	_ = peer.Sock.Close()
	if s.Registry != nil && peer.Sub != nil {
		s.Registry.Remove(peer.Sub)
	}
	s.peersMu.Lock()
	delete(s.peers, peer)
	s.peersMu.Unlock()
	s.totalDisconnected.Add(1)
	logger.Info("peer_disconnected")
}

// Shutdown closes the listener and every connected peer, waiting for
// their reader goroutines to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.peersMu.RLock()
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.peersMu.RUnlock()
	for _, p := range peers {
		_ = p.Sock.Close()
	}
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("transport shutdown timeout: %w", ctx.Err())
	case <-done:
		s.logger.Info("shutdown_summary",
			"accepted", s.totalAccepted.Load(),
			"connected", s.totalConnected.Load(),
			"disconnected", s.totalDisconnected.Load(),
			"rejected", s.totalRejected.Load(),
		)
		return nil
	}
}
