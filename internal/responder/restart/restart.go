// Package restart reboots the host when the policy gives up waiting for
// memory to recover.
package restart

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/exec"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/responder"
)

// Name labels the restart subscriptions.
const Name = "restart"

// Runner runs the restart command. exec.Capture satisfies it.
type Runner func(ctx context.Context, cmd string, env []string) (exec.Result, error)

// Outcome is what happened to one RESTART event.
type Outcome string

const (
	OutcomeExecuted  Outcome = "executed"
	OutcomeDryRun    Outcome = "dry_run"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Responder runs the restart command after a grace period. A RAM_NORMAL
// during the grace period, or shutdown, cancels the pending restart.
type Responder struct {
	cfg   config.RestartConfig
	clock clock.Clock
	log   logger.Logger
	run   Runner

	mu      sync.Mutex
	pending context.CancelFunc
	gen     uint64

	// recoveredAt is the newest RAM_NORMAL timestamp. RESTART and RAM_NORMAL
	// arrive on separate goroutines, so a restart checks it too.
	recoveredAt time.Time

	// outcomes receives each RESTART result when set. Tests only.
	outcomes chan Outcome
}

// Option configures a Responder.
type Option func(*Responder)

// WithClock replaces the wall clock used for the grace period.
func WithClock(c clock.Clock) Option {
	return func(r *Responder) { r.clock = c }
}

// WithLogger sets the responder logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Responder) { r.log = l }
}

// WithRunner replaces the command runner.
func WithRunner(run Runner) Option {
	return func(r *Responder) { r.run = run }
}

// New creates a restart responder.
func New(cfg config.RestartConfig, opts ...Option) *Responder {
	r := &Responder{
		cfg:   cfg,
		clock: clock.New(),
		log:   logger.Noop(),
		run:   exec.Capture,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes to RESTART and RAM_NORMAL.
func (r *Responder) Attach(s responder.Subscriber) {
	responder.Attach(s, Name, r.Handle, events.TypeRestart, events.TypeRAMNormal)
}

// Handle schedules a restart on RESTART and cancels one on RAM_NORMAL.
func (r *Responder) Handle(ctx context.Context, ev events.Event) error {
	switch ev.Type() {
	case events.TypeRestart:
		outcome, err := r.restart(ctx, ev)
		if r.outcomes != nil {
			r.outcomes <- outcome
		}
		return err
	case events.TypeRAMNormal:
		r.recovered(ev.Timestamp())
	}
	return nil
}

func (r *Responder) restart(ctx context.Context, ev events.Event) (Outcome, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.recoveredSince(ev) {
		r.mu.Unlock()
		cancel()
		r.log.Info("restart cancelled, RAM already back to normal")
		return OutcomeCancelled, nil
	}
	if r.pending != nil {
		r.pending()
	}
	r.pending = cancel
	r.gen++
	gen := r.gen
	r.mu.Unlock()
	defer r.clearPending(gen, cancel)

	timer := r.clock.Timer(r.cfg.Grace)
	defer timer.Stop()
	r.log.Warn("RAM critically high (%.1f%%), restarting in %s", ev.RAMPercent(), r.cfg.Grace)
	select {
	case <-waitCtx.Done():
		r.log.Info("restart cancelled")
		return OutcomeCancelled, nil
	case <-timer.C:
	}

	r.mu.Lock()
	recovered := r.recoveredSince(ev)
	r.mu.Unlock()
	if recovered {
		r.log.Info("restart cancelled")
		return OutcomeCancelled, nil
	}

	if r.cfg.DryRun {
		r.log.Warn("dry run: would run %q", r.cfg.Command)
		return OutcomeDryRun, nil
	}

	r.log.Error("restarting now: %s", r.cfg.Command)
	res, err := r.run(ctx, r.cfg.Command, nil)
	if err == nil {
		err = exec.Check(r.cfg.Command, res)
	}
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeExecuted, nil
}

// recovered records a RAM_NORMAL at ts and cancels any pending restart.
func (r *Responder) recovered(ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts.After(r.recoveredAt) {
		r.recoveredAt = ts
	}
	if r.pending != nil {
		r.pending()
		r.pending = nil
	}
}

// recoveredSince reports whether RAM_NORMAL was seen at or after ev.
// Callers hold r.mu.
func (r *Responder) recoveredSince(ev events.Event) bool {
	return !r.recoveredAt.IsZero() && !r.recoveredAt.Before(ev.Timestamp())
}

// clearPending forgets restart gen unless a newer one replaced it.
func (r *Responder) clearPending(gen uint64, cancel context.CancelFunc) {
	cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen == gen {
		r.pending = nil
	}
}

// Pending reports whether a restart is waiting out its grace period.
func (r *Responder) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Grace returns the configured grace period.
func (r *Responder) Grace() time.Duration {
	return r.cfg.Grace
}
