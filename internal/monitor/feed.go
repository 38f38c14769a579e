package monitor

import (
	"context"
	"sync"

	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/responder"
)

// Name labels the monitor subscriptions.
const Name = "monitor"

// feedBuffer is how many escalations can queue before new ones are dropped.
const feedBuffer = 64

// Feed forwards escalation events from the bus to the dashboard.
type Feed struct {
	ch chan events.Event

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{ch: make(chan events.Event, feedBuffer)}
}

// Attach subscribes the feed to every escalation event.
func (f *Feed) Attach(s responder.Subscriber) {
	responder.Attach(s, Name, f.Handle, events.EscalationTypes...)
}

// Handle queues ev for the dashboard. It never blocks the bus; when the
// dashboard falls behind the event is counted and dropped.
func (f *Feed) Handle(_ context.Context, ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	select {
	case f.ch <- ev:
	default:
		f.dropped++
	}
	return nil
}

// Events is the channel the model reads from. It is closed by Close.
func (f *Feed) Events() <-chan events.Event {
	return f.ch
}

// Dropped reports how many events were discarded.
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops the feed. Later events are ignored.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
