// Package escalation derives RAM_HIGH, SEND_EMAIL, RESTART and RAM_NORMAL
// events from the stream of SAMPLE events.
//
// A breach streak starts with the first sample at or above the high
// threshold and ends with the first sample below it. Within a streak each
// escalation fires at most once, gated on the time elapsed since the streak
// began rather than on sample counts, so the policy is insensitive to
// sampling jitter. Both delay gates are checked on every sample, email
// first, so a sample that arrives late fires everything that is due.
package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rileyhilliard/ramwatch/internal/bus"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
)

// Sender identifies events derived by the policy.
const Sender = "escalation"

// Publisher accepts derived events.
type Publisher interface {
	Publish(ev events.Event) error
}

// Observer receives policy transitions for metrics.
type Observer interface {
	Transition(t events.Type)
	Rejected()
	Breach(active bool, since time.Time)
}

// Subscriber is the part of the bus the policy attaches to.
type Subscriber interface {
	Subscribe(t events.Type, h bus.Handler, opts ...bus.SubscribeOption)
}

// Status is a read-only snapshot of the policy.
type Status struct {
	// High is true while a breach streak is open.
	High bool

	// Since is when the open streak began; zero when !High.
	Since time.Time

	EmailSent        bool
	RestartTriggered bool

	// Latest is the most recent accepted sample, and LatestAt when it was
	// evaluated. Both are zero before the first sample.
	Latest   events.Usage
	LatestAt time.Time
}

// state is owned by the policy and mutated only from Evaluate.
// emailSent and restartTriggered are false whenever highSince is zero.
type state struct {
	highSince        time.Time
	emailSent        bool
	restartTriggered bool
}

// Policy is the escalation state machine.
type Policy struct {
	cfg      Config
	pub      Publisher
	clock    clock.Clock
	log      logger.Logger
	observer Observer

	mu       sync.Mutex
	st       state
	latest   events.Usage
	latestAt time.Time
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(p *Policy) { p.clock = c }
}

// WithLogger sets the policy logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Policy) { p.log = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Policy) { p.observer = o }
}

// New validates cfg and creates a policy in the NORMAL state.
func New(cfg Config, pub Publisher, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		cfg:   cfg,
		pub:   pub,
		clock: clock.New(),
		log:   logger.Noop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the thresholds the policy was built with.
func (p *Policy) Config() Config {
	return p.cfg
}

// Attach subscribes the policy to SAMPLE events. The subscription is
// serialized so samples are evaluated one at a time in publish order.
func (p *Policy) Attach(s Subscriber) {
	s.Subscribe(events.TypeSample, p.Handle, bus.WithName(Sender), bus.Serialized())
}

// Handle is the bus handler: it evaluates ev and publishes whatever it
// derives, in order.
func (p *Policy) Handle(_ context.Context, ev events.Event) error {
	derived, err := p.Evaluate(ev)
	if err != nil {
		return err
	}
	for _, out := range derived {
		if err := p.pub.Publish(out); err != nil {
			return errors.WrapWithCode(err, errors.ErrBus,
				"Failed to publish "+string(out.Type()),
				"")
		}
	}
	return nil
}

// Evaluate runs one transition step and returns the derived events in
// emission order. A malformed sample is rejected without touching state.
func (p *Policy) Evaluate(ev events.Event) ([]events.Event, error) {
	sample, ok := ev.Sample()
	if !ok {
		p.reject()
		return nil, errors.Newf(errors.ErrSample, "expected a SAMPLE event, got %q", ev.Type())
	}
	if err := events.ValidateUsage(sample.Usage); err != nil {
		p.reject()
		return nil, errors.WrapWithCode(err, errors.ErrSample, "Rejected malformed sample", "")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	p.latest = sample.Usage
	p.latestAt = now

	if sample.RAMPercent < p.cfg.HighThreshold {
		return p.recover(sample.Usage, now)
	}
	return p.breach(sample.Usage, observedAt(ev, now), now)
}

func (p *Policy) breach(u events.Usage, observed, now time.Time) ([]events.Event, error) {
	var out []events.Event

	if p.st.highSince.IsZero() {
		p.st = state{highSince: observed}
		p.log.Warn("RAM at %.1f%% crossed %.1f%%", u.RAMPercent, p.cfg.HighThreshold)
		if p.observer != nil {
			p.observer.Breach(true, observed)
		}
		ev, err := p.derive(events.TypeRAMHigh, u, now)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}

	elapsed := now.Sub(p.st.highSince)
	if elapsed < 0 {
		elapsed = 0
	}

	if elapsed >= p.cfg.EmailDelay && !p.st.emailSent {
		p.st.emailSent = true
		p.log.Warn("RAM high for %s, requesting email", elapsed.Round(time.Second))
		ev, err := p.derive(events.TypeSendEmail, u, now)
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}

	if elapsed >= p.cfg.RestartDelay && !p.st.restartTriggered {
		p.st.restartTriggered = true
		p.log.Error("RAM high for %s, requesting restart", elapsed.Round(time.Second))
		ev, err := p.derive(events.TypeRestart, u, now)
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}

	p.log.Debug("HIGH RAM for %s at %.1f%%", elapsed.Round(time.Second), u.RAMPercent)
	return out, nil
}

func (p *Policy) recover(u events.Usage, now time.Time) ([]events.Event, error) {
	if p.st.highSince.IsZero() {
		p.log.Debug("RAM normal at %.1f%%", u.RAMPercent)
		return nil, nil
	}

	ev, err := p.derive(events.TypeRAMNormal, u, now)
	p.log.Info("RAM back to normal at %.1f%% after %s", u.RAMPercent, now.Sub(p.st.highSince).Round(time.Second))
	p.st = state{}
	if p.observer != nil {
		p.observer.Breach(false, time.Time{})
	}
	if err != nil {
		return nil, err
	}
	return []events.Event{ev}, nil
}

// derive builds an escalation event from the current streak. Callers hold mu.
func (p *Policy) derive(t events.Type, u events.Usage, now time.Time) (events.Event, error) {
	elapsed := now.Sub(p.st.highSince)
	if elapsed < 0 {
		elapsed = 0
	}
	ev, err := events.NewEscalation(t, Sender, events.Escalation{
		Usage:   u,
		Since:   p.st.highSince,
		Elapsed: elapsed,
	}, now)
	if err != nil {
		return events.Event{}, err
	}
	if p.observer != nil {
		p.observer.Transition(t)
	}
	return ev, nil
}

func (p *Policy) reject() {
	if p.observer != nil {
		p.observer.Rejected()
	}
}

// observedAt is when the sample was taken, falling back to now for events
// that carry no timestamp or one from the future.
func observedAt(ev events.Event, now time.Time) time.Time {
	ts := ev.Timestamp()
	if ts.IsZero() || ts.After(now) {
		return now
	}
	return ts
}

// Status returns a snapshot of the current state. Safe to call from any
// goroutine.
func (p *Policy) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	latest := events.Usage{RAMPercent: p.latest.RAMPercent}
	if p.latest.TopProcesses != nil {
		latest.TopProcesses = append([]events.Process(nil), p.latest.TopProcesses...)
	}

	return Status{
		High:             !p.st.highSince.IsZero(),
		Since:            p.st.highSince,
		EmailSent:        p.st.emailSent,
		RestartTriggered: p.st.restartTriggered,
		Latest:           latest,
		LatestAt:         p.latestAt,
	}
}
