package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/ramwatch/internal/app"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/lock"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/monitor"
)

// watchCommand runs the monitor behind the terminal dashboard. Console
// logging and the alert banner are silenced so they don't tear the alt
// screen; log.file still receives everything.
func watchCommand(ctx context.Context, refresh time.Duration) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	instance, err := lock.Acquire(lock.DefaultPath(), "watch")
	if err != nil {
		return err
	}
	defer instance.Release()

	log, err := newLogger(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	feed := monitor.NewFeed()
	a, err := app.New(cfg,
		app.WithLogger(log),
		app.WithAlertOutput(io.Discard),
		app.WithResponders(feed),
	)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	model := monitor.NewModel(a.Status, feed.Events(), cfg.Escalation, refresh)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	// Stop the bus before closing the feed so no handler races the close.
	stopErr := a.Stop()
	feed.Close()

	if n := feed.Dropped(); n > 0 {
		log.Warn("dashboard fell behind and skipped %d events", n)
	}
	if runErr != nil && !(errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("dashboard: %w", runErr)
	}
	return stopErr
}
