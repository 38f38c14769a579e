// Package app wires the sampler, bus, escalation policy and responders
// together for one process lifetime.
package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sourcegraph/conc"

	"github.com/rileyhilliard/ramwatch/internal/bus"
	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/dashboard"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/metrics"
	"github.com/rileyhilliard/ramwatch/internal/responder"
	"github.com/rileyhilliard/ramwatch/internal/responder/alert"
	"github.com/rileyhilliard/ramwatch/internal/responder/csvlog"
	"github.com/rileyhilliard/ramwatch/internal/responder/email"
	"github.com/rileyhilliard/ramwatch/internal/responder/restart"
	"github.com/rileyhilliard/ramwatch/internal/sampler"
)

// Attacher is anything that subscribes itself to the bus.
type Attacher interface {
	Attach(s responder.Subscriber)
}

// App is a running ramwatch daemon.
type App struct {
	cfg   *config.Config
	log   logger.Logger
	clock clock.Clock

	source      sampler.Source
	alertOut    io.Writer
	extra       []Attacher
	noDashboard bool

	metrics   *metrics.Metrics
	bus       *bus.Bus
	policy    *escalation.Policy
	sampler   *sampler.Sampler
	csv       *csvlog.Logger
	dashboard *dashboard.Server

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers *conc.WaitGroup
	started bool
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the root logger; components get named children.
func WithLogger(l logger.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithClock replaces the wall clock everywhere, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithSource replaces the memory source chosen by sampler.source.
func WithSource(src sampler.Source) Option {
	return func(a *App) { a.source = src }
}

// WithAlertOutput redirects alert banners. The watch command sends them to
// io.Discard because the dashboard owns the terminal.
func WithAlertOutput(w io.Writer) Option {
	return func(a *App) { a.alertOut = w }
}

// WithResponders attaches extra consumers alongside the configured ones.
func WithResponders(rs ...Attacher) Option {
	return func(a *App) { a.extra = append(a.extra, rs...) }
}

// WithoutDashboard skips the HTTP dashboard regardless of config.
func WithoutDashboard() Option {
	return func(a *App) { a.noDashboard = true }
}

// New validates cfg and builds every component. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	a := &App{
		cfg:   cfg,
		log:   logger.Noop(),
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.source == nil {
		src, err := sampler.NewSource(cfg.Sampler.Source, cfg.Sampler.TopProcesses)
		if err != nil {
			return nil, err
		}
		a.source = src
	}

	a.metrics = metrics.New()
	a.bus = bus.New(
		bus.WithLogger(a.log.Named("bus")),
		bus.WithObserver(a.metrics),
		bus.WithQueueSize(cfg.Bus.QueueSize),
	)

	policy, err := escalation.New(cfg.Escalation, a.bus,
		escalation.WithClock(a.clock),
		escalation.WithLogger(a.log.Named("escalation")),
		escalation.WithObserver(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	a.policy = policy

	a.sampler = sampler.New(a.source, a.bus,
		sampler.WithInterval(cfg.Sampler.Interval),
		sampler.WithClock(a.clock),
		sampler.WithLogger(a.log.Named("sampler")),
		sampler.WithObserver(a.metrics),
	)

	if err := a.attach(); err != nil {
		return nil, err
	}
	return a, nil
}

// attach subscribes the policy and every enabled responder.
func (a *App) attach() error {
	a.policy.Attach(a.bus)

	alertOpts := []alert.Option{alert.WithLogger(a.log.Named("alert"))}
	if a.alertOut != nil {
		alertOpts = append(alertOpts, alert.WithOutput(a.alertOut))
	}
	alert.New(a.cfg.Alert, alertOpts...).Attach(a.bus)

	if a.cfg.Email.Enabled {
		email.New(a.cfg.Email, email.WithLogger(a.log.Named("email"))).Attach(a.bus)
	}

	if a.cfg.CSVLog.Enabled {
		csv, err := csvlog.Open(a.cfg.CSVLog,
			csvlog.WithClock(a.clock),
			csvlog.WithLogger(a.log.Named("csvlog")),
			csvlog.WithStatus(a.policy.Status),
		)
		if err != nil {
			return err
		}
		a.csv = csv
		csv.Attach(a.bus)
	}

	if a.cfg.Restart.Enabled {
		restart.New(a.cfg.Restart,
			restart.WithClock(a.clock),
			restart.WithLogger(a.log.Named("restart")),
		).Attach(a.bus)
	}

	if a.cfg.Dashboard.Enabled && !a.noDashboard {
		a.dashboard = dashboard.New(a.cfg.Dashboard.Addr, a.policy.Status,
			dashboard.WithLogger(a.log.Named("dashboard")),
			dashboard.WithMetrics(a.metrics.Handler()),
			dashboard.WithThreshold(a.cfg.Escalation.HighThreshold),
		)
		a.dashboard.Attach(a.bus)
	}

	for _, r := range a.extra {
		r.Attach(a.bus)
	}
	return nil
}

// Start launches the bus, the dashboard and the background loops.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	if a.dashboard != nil {
		if err := a.dashboard.Start(); err != nil {
			return err
		}
	}
	a.bus.Start()

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.workers = conc.NewWaitGroup()
	a.workers.Go(func() { a.sampler.Run(runCtx) })
	if a.csv != nil {
		a.workers.Go(func() { a.csv.Run(runCtx) })
	}
	a.started = true

	a.log.Info("watching RAM every %s, high at %.0f%% (email after %s, restart after %s)",
		a.cfg.Sampler.Interval, a.cfg.Escalation.HighThreshold,
		a.cfg.Escalation.EmailDelay, a.cfg.Escalation.RestartDelay)
	return nil
}

// Stop halts sampling, drains the bus for up to bus.stop_timeout and closes
// the responders. It returns the bus error if handlers outlived the timeout.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false

	a.cancel()
	a.workers.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), a.stopTimeout())
	defer cancel()

	busErr := a.bus.Stop(ctx)
	if busErr != nil {
		a.log.Warn("some handlers were still running at shutdown: %v", busErr)
	}
	if a.dashboard != nil {
		if err := a.dashboard.Stop(ctx); err != nil {
			a.log.Warn("dashboard shutdown: %v", err)
		}
	}
	if a.csv != nil {
		if err := a.csv.Close(); err != nil {
			a.log.Warn("closing CSV log: %v", err)
		}
	}
	a.log.Info("stopped")
	return busErr
}

// Run starts the app and blocks until ctx is done, then stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.Stop()
}

func (a *App) stopTimeout() time.Duration {
	if a.cfg.Bus.StopTimeout > 0 {
		return a.cfg.Bus.StopTimeout
	}
	return 5 * time.Second
}

// Status returns the policy snapshot.
func (a *App) Status() escalation.Status {
	return a.policy.Status()
}

// Bus exposes the event bus.
func (a *App) Bus() *bus.Bus {
	return a.bus
}

// Metrics exposes the metrics registry.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// DashboardAddr is the bound dashboard address, or "" when disabled.
func (a *App) DashboardAddr() string {
	if a.dashboard == nil {
		return ""
	}
	return a.dashboard.Addr()
}
