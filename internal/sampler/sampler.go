// Package sampler periodically reads host memory usage and publishes it as
// SAMPLE events.
package sampler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"

	"github.com/rileyhilliard/ramwatch/internal/bus"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
)

// Sender identifies SAMPLE events published by the sampler.
const Sender = "sampler"

// DefaultInterval matches the stock polling cadence.
const DefaultInterval = 10 * time.Second

// Publisher accepts SAMPLE events.
type Publisher interface {
	Publish(ev events.Event) error
}

// Observer receives per-read outcomes for metrics.
type Observer interface {
	Sampled(u events.Usage, took time.Duration)
	SampleFailed()
}

// Sampler polls a Source on a fixed interval.
type Sampler struct {
	src      Source
	pub      Publisher
	interval time.Duration
	clock    clock.Clock
	log      logger.Logger
	observer Observer

	reads    atomic.Uint64
	failures atomic.Uint64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Sampler) { s.clock = c }
}

// WithLogger sets the sampler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) { s.log = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Sampler) { s.observer = o }
}

// New creates a sampler reading from src and publishing to pub.
func New(src Source, pub Publisher, opts ...Option) *Sampler {
	s := &Sampler{
		src:      src,
		pub:      pub,
		interval: DefaultInterval,
		clock:    clock.New(),
		log:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the polling interval.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Run samples immediately and then once per interval until ctx is done or
// the bus stops accepting events. A failed read skips that tick.
func (s *Sampler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	s.log.Debug("sampling every %s", s.interval)
	for {
		if !s.tick(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick reports whether sampling should continue.
func (s *Sampler) tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	ev, err := s.Sample(ctx)
	if err != nil {
		s.log.Warn("sample failed: %v", err)
		return true
	}
	if err := s.pub.Publish(ev); err != nil {
		if errors.Is(err, bus.ErrStopped) {
			s.log.Debug("bus stopped, sampler exiting")
			return false
		}
		s.log.Warn("publishing sample: %v", err)
	}
	return true
}

// Sample reads the source once and builds a SAMPLE event without
// publishing it.
func (s *Sampler) Sample(ctx context.Context) (events.Event, error) {
	start := s.clock.Now()
	s.reads.Add(1)

	usage, err := s.src.Read(ctx)
	if err == nil {
		var ev events.Event
		ev, err = events.NewSample(Sender, usage, s.clock.Now())
		if err == nil {
			took := s.clock.Since(start)
			if s.observer != nil {
				s.observer.Sampled(usage, took)
			}
			s.log.Debug("RAM %.1f%% (%d processes, read in %s, %s samples)",
				usage.RAMPercent, len(usage.TopProcesses), took, humanize.Comma(int64(s.reads.Load())))
			return ev, nil
		}
	}

	s.failures.Add(1)
	if s.observer != nil {
		s.observer.SampleFailed()
	}
	return events.Event{}, err
}

// Stats reports how many reads were attempted and how many failed.
func (s *Sampler) Stats() (reads, failures uint64) {
	return s.reads.Load(), s.failures.Load()
}
