package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Sentinel errors returned by Publish. Compare with errors.Is.
var (
	ErrInvalidEvent = errors.New(errors.ErrBus,
		"Refusing to publish an event with no type",
		"Build events with events.NewSample or events.NewEscalation.")
	ErrSaturated = errors.New(errors.ErrBus,
		"Event bus queue is full",
		"Raise bus.queue_size, or set it to 0 for an unbounded queue.")
	ErrStopped = errors.New(errors.ErrBus,
		"Event bus has been stopped",
		"")
)

// Handler reacts to one event. The context is cancelled once a Stop
// deadline passes.
type Handler func(ctx context.Context, ev events.Event) error

// HandlerError describes one failed delivery.
type HandlerError struct {
	Event   events.Event
	Handler string
	Err     error
	Panic   bool
}

func (e HandlerError) Error() string {
	kind := "failed"
	if e.Panic {
		kind = "panicked"
	}
	return fmt.Sprintf("handler %s %s on %s event: %v", e.Handler, kind, e.Event.Type(), e.Err)
}

func (e HandlerError) Unwrap() error { return e.Err }

// Bus routes events from publishers to subscribers.
type Bus struct {
	log       logger.Logger
	observer  Observer
	onError   func(HandlerError)
	queueSize int

	subMu sync.RWMutex
	subs  map[events.Type][]*subscription
	seq   int

	qMu     sync.Mutex
	queue   []events.Event
	started bool
	stopped bool

	notify   chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// ctx is handed to every handler; cancel fires when a Stop deadline passes.
	ctx    context.Context
	cancel context.CancelFunc

	inflight conc.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for delivery failures and shutdown notes.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) { b.log = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(b *Bus) { b.observer = o }
}

// WithErrorHandler receives every isolated handler failure.
func WithErrorHandler(fn func(HandlerError)) Option {
	return func(b *Bus) { b.onError = fn }
}

// WithQueueSize bounds the queue. Zero or negative means unbounded.
func WithQueueSize(n int) Option {
	return func(b *Bus) { b.queueSize = n }
}

// New creates a bus. Events published before Start are held in the queue.
func New(opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		log:      logger.Noop(),
		observer: nopObserver{},
		subs:     make(map[events.Type][]*subscription),
		notify:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for eventType. It never fails. Registering
// the same handler twice delivers every event to it twice.
func (b *Bus) Subscribe(eventType events.Type, handler Handler, opts ...SubscribeOption) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.seq++
	s := &subscription{
		name:    fmt.Sprintf("%s#%d", eventType, b.seq),
		handler: handler,
	}
	for _, opt := range opts {
		opt(s)
	}
	b.subs[eventType] = append(b.subs[eventType], s)
}

// Subscribers returns how many subscriptions exist for eventType.
func (b *Bus) Subscribers(eventType events.Type) int {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	return len(b.subs[eventType])
}

// Publish enqueues ev for asynchronous delivery and returns immediately.
func (b *Bus) Publish(ev events.Event) error {
	if ev.IsZero() {
		return ErrInvalidEvent
	}

	b.qMu.Lock()
	if b.stopped {
		b.qMu.Unlock()
		return ErrStopped
	}
	if b.queueSize > 0 && len(b.queue) >= b.queueSize {
		b.qMu.Unlock()
		b.observer.Saturated(ev.Type())
		return ErrSaturated
	}
	b.queue = append(b.queue, ev)
	b.observer.QueueDepth(len(b.queue))
	b.qMu.Unlock()

	b.observer.Published(ev.Type())

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of events waiting to be routed.
func (b *Bus) Pending() int {
	b.qMu.Lock()
	defer b.qMu.Unlock()
	return len(b.queue)
}

// Start launches the routing loop. Calling it more than once, or after
// Stop, does nothing.
func (b *Bus) Start() {
	b.qMu.Lock()
	defer b.qMu.Unlock()
	if b.started || b.stopped {
		return
	}
	b.started = true
	go b.route()
}

// Stop ends routing. Events still queued are abandoned. In-flight handlers
// are awaited until ctx is done; after that the handler context is
// cancelled and ctx.Err() is returned.
func (b *Bus) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() {
		b.qMu.Lock()
		b.stopped = true
		started := b.started
		b.qMu.Unlock()

		close(b.stopCh)
		if started {
			<-b.done
		}

		b.qMu.Lock()
		dropped := len(b.queue)
		b.queue = nil
		b.qMu.Unlock()

		if dropped > 0 {
			b.log.Warn("abandoned %d queued events at shutdown", dropped)
			b.observer.Dropped(dropped)
		}
		b.observer.QueueDepth(0)
	})

	waited := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		b.log.Warn("stop deadline passed with handlers still running")
		return ctx.Err()
	}
}

func (b *Bus) route() {
	defer close(b.done)

	for {
		select {
		case <-b.stopCh:
			return
		case <-b.notify:
		}

		for {
			select {
			case <-b.stopCh:
				return
			default:
			}

			ev, ok := b.dequeue()
			if !ok {
				break
			}
			b.dispatch(ev)
		}
	}
}

func (b *Bus) dequeue() (events.Event, bool) {
	b.qMu.Lock()
	defer b.qMu.Unlock()

	if len(b.queue) == 0 {
		return events.Event{}, false
	}
	ev := b.queue[0]
	b.queue[0] = events.Event{}
	b.queue = b.queue[1:]
	b.observer.QueueDepth(len(b.queue))
	return ev, true
}

func (b *Bus) dispatch(ev events.Event) {
	b.subMu.RLock()
	subs := make([]*subscription, len(b.subs[ev.Type()]))
	copy(subs, b.subs[ev.Type()])
	b.subMu.RUnlock()

	if len(subs) == 0 {
		b.log.Debug("no subscribers for %s from %s", ev.Type(), ev.Sender())
		return
	}

	for _, s := range subs {
		if s.serialized {
			b.enqueue(s, ev)
			continue
		}
		s := s
		b.inflight.Go(func() { b.invoke(s, ev) })
	}
}

// invoke runs one delivery with panic and error isolation.
func (b *Bus) invoke(s *subscription, ev events.Event) {
	start := time.Now()

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = s.handler(b.ctx, ev) })

	if r := pc.Recovered(); r != nil {
		b.fail(HandlerError{Event: ev, Handler: s.name, Err: r.AsError(), Panic: true})
		return
	}
	if err != nil {
		b.fail(HandlerError{Event: ev, Handler: s.name, Err: err})
		return
	}
	b.observer.Delivered(ev.Type(), s.name, time.Since(start))
}

func (b *Bus) fail(herr HandlerError) {
	b.log.Error("%s", herr.Error())
	b.observer.Failed(herr.Event.Type(), herr.Handler)
	if b.onError != nil {
		b.onError(herr)
	}
}
