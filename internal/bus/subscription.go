package bus

import (
	"sync"

	"github.com/rileyhilliard/ramwatch/internal/events"
)

// subscription is one registered handler. Serialized subscriptions own a
// mailbox; plain ones are dispatched on fresh goroutines.
type subscription struct {
	name       string
	handler    Handler
	serialized bool

	mu      sync.Mutex
	pending []events.Event
	running bool
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscription)

// WithName labels the subscription in logs, metrics and HandlerError.
func WithName(name string) SubscribeOption {
	return func(s *subscription) {
		if name != "" {
			s.name = name
		}
	}
}

// Serialized delivers events to the handler one at a time, in publish
// order, without blocking the router.
func Serialized() SubscribeOption {
	return func(s *subscription) { s.serialized = true }
}

// enqueue adds ev to s's mailbox and starts a drainer if none is running.
// Only the route loop calls this.
func (b *Bus) enqueue(s *subscription, ev events.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	b.inflight.Go(func() { b.drain(s) })
}

func (b *Bus) drain(s *subscription) {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		if b.ctx.Err() != nil {
			dropped := len(s.pending)
			s.pending = nil
			s.running = false
			s.mu.Unlock()
			b.log.Warn("dropped %d events queued for %s after shutdown", dropped, s.name)
			b.observer.Dropped(dropped)
			return
		}
		ev := s.pending[0]
		s.pending[0] = events.Event{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		b.invoke(s, ev)
	}
}
