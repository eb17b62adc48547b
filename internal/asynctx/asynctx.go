// Package asynctx funnels outgoing command writes through a single
// goroutine so producers get non-blocking enqueue semantics: a full
// buffer triggers the configured OnDrop hook rather than blocking a
// caller behind a slow or wedged peer.
//
// Grounded on the teacher's internal/transport.AsyncTx, which did the
// same for raw CAN frames; the element type here moves from can.Frame
// to Message, a built command buffer plus the FDs it references, since
// a control-channel send is a byte payload and an out-of-band FD list
// rather than a single fixed-size frame.
package asynctx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Message is one write to the control channel transport: the built
// frame bytes (from control.Builder.Finalize) and the raw FDs that
// must travel alongside it via SCM_RIGHTS.
type Message struct {
	Data []byte
	Fds  []int
}

// Hooks customize AsyncTx behavior.
type Hooks struct {
	// OnError is called when send returns a non-nil error (message not sent).
	OnError func(error)
	// OnAfter is called only after a successful send.
	OnAfter func()
	// OnDrop is called when the buffer is full; its returned error is
	// returned from Send. If nil, the overflow is silent (best-effort
	// fire-and-forget).
	OnDrop func() error
}

// ErrClosed is returned by Send once Close has been called.
var ErrClosed = errors.New("asynctx: closed")

// AsyncTx is a reusable asynchronous sender that funnels writes
// through a single goroutine (fan-in) over send.
type AsyncTx struct {
	mu     sync.Mutex
	ch     chan Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	send   func(Message) error
	hooks  Hooks
	closed atomic.Bool
}

// New constructs an AsyncTx with a buffered channel of size buf,
// dispatching every enqueued Message to send on a dedicated goroutine.
func New(parent context.Context, buf int, send func(Message) error, hooks Hooks) *AsyncTx {
	ctx, cancel := context.WithCancel(parent)
	a := &AsyncTx{
		ch:     make(chan Message, buf),
		ctx:    ctx,
		cancel: cancel,
		send:   send,
		hooks:  hooks,
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *AsyncTx) loop() {
	defer a.wg.Done()
	for {
		select {
		case msg, ok := <-a.ch:
			if !ok {
				return
			}
			if err := a.send(msg); err != nil {
				if a.hooks.OnError != nil {
					a.hooks.OnError(err)
				}
				continue
			}
			if a.hooks.OnAfter != nil {
				a.hooks.OnAfter()
			}
		case <-a.ctx.Done():
			return
		}
	}
}

// Send queues msg for asynchronous transmission, or invokes OnDrop (if
// set) and returns its error when the buffer is full.
func (a *AsyncTx) Send(msg Message) error {
	if a.closed.Load() {
		return ErrClosed
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return ErrClosed
	}
	select {
	case a.ch <- msg:
		return nil
	default:
		if a.hooks.OnDrop != nil {
			return a.hooks.OnDrop()
		}
		return nil
	}
}

// Close stops the worker and waits for it to exit, including a send
// already in progress. Messages still queued when Close is called may
// be discarded without being sent.
func (a *AsyncTx) Close() {
	if a.closed.Swap(true) {
		return
	}
	a.cancel()
	a.mu.Lock()
	close(a.ch)
	a.mu.Unlock()
	a.wg.Wait()
}
