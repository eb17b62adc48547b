// Package registry fans a decoded command stream out to every
// subscriber connected to the control channel, tracking per-subscriber
// queue depth and applying a configurable backpressure policy when a
// subscriber falls behind.
//
// Grounded on the teacher's internal/hub.Hub: a Hub that broadcast CAN
// frames to TCP clients is the same shape as a registry that broadcasts
// decoded control commands to socket subscribers. Add/Remove/Broadcast
// and the drop/kick policy carry over unchanged; Client.Out's element
// type moves from can.Frame to Command.
package registry

import (
	"sync"

	"github.com/kstaniek/spa-control/internal/metrics"
)

// BackpressurePolicy controls what happens when a subscriber's queue
// is full at broadcast time.
type BackpressurePolicy int

const (
	// PolicyDrop discards the command for the lagging subscriber only;
	// every other subscriber still receives it.
	PolicyDrop BackpressurePolicy = iota
	// PolicyKick marks the lagging subscriber closed (its Closed
	// channel is closed); the subscriber stays registered until Remove.
	PolicyKick
)

// Command is a decoded frame handed to subscribers: Tag identifies the
// wire shape, Value is the typed struct Iterator.Parse returned for
// it (nil for PortStatusChange/SetProperty).
type Command struct {
	Tag   uint32
	Value interface{}
}

// Subscriber is one registered listener on the registry's broadcast.
type Subscriber struct {
	Out       chan Command
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close marks the subscriber closed; safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.Closed) })
}

// Registry holds the set of active subscribers and broadcasts commands
// to all of them under Policy.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}

	OutBufSize int
	Policy     BackpressurePolicy
}

// New returns an empty Registry with a default per-subscriber buffer.
func New() *Registry {
	return &Registry{
		subscribers: make(map[*Subscriber]struct{}),
		OutBufSize:  512,
		Policy:      PolicyDrop,
	}
}

// NewSubscriber allocates a Subscriber sized to the Registry's
// configured buffer, for callers to register via Add.
func (r *Registry) NewSubscriber() *Subscriber {
	return &Subscriber{
		Out:    make(chan Command, r.OutBufSize),
		Closed: make(chan struct{}),
	}
}

// Add registers s to receive future Broadcast calls.
func (r *Registry) Add(s *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[s] = struct{}{}
	metrics.SetRegistrySubscribers(len(r.subscribers))
}

// Remove unregisters s. It does not close s.Out; callers that own the
// Subscriber's lifecycle should call s.Close() themselves.
func (r *Registry) Remove(s *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, s)
	metrics.SetRegistrySubscribers(len(r.subscribers))
}

// Broadcast delivers cmd to every registered subscriber, applying
// Policy to any subscriber whose queue is full.
func (r *Registry) Broadcast(cmd Command) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var maxDepth, sumDepth, n int
	for s := range r.subscribers {
		select {
		case s.Out <- cmd:
		default:
			switch r.Policy {
			case PolicyKick:
				s.Close()
				metrics.IncRegistryKicked()
			default:
				metrics.IncRegistryDropped()
			}
		}
		depth := len(s.Out)
		if depth > maxDepth {
			maxDepth = depth
		}
		sumDepth += depth
		n++
	}
	metrics.SetRegistryFanout(n)
	if n > 0 {
		metrics.SetRegistryQueueDepth(maxDepth, sumDepth/n)
	}
}

// Snapshot returns the currently registered subscribers.
func (r *Registry) Snapshot() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscriber, 0, len(r.subscribers))
	for s := range r.subscribers {
		out = append(out, s)
	}
	return out
}

// Count reports the number of currently registered subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}
