package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/ramwatch/internal/app"
	"github.com/rileyhilliard/ramwatch/internal/lock"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// runCommand runs the monitor in the foreground until SIGINT or SIGTERM.
func runCommand(ctx context.Context, noDashboard bool) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	instance, err := lock.Acquire(lock.DefaultPath(), "run")
	if err != nil {
		return err
	}
	defer instance.Release()

	log, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	opts := []app.Option{app.WithLogger(log)}
	if noDashboard {
		opts = append(opts, app.WithoutDashboard())
	}
	a, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintHeader(ui.HeaderInfo{
		Version: formatVersion(version),
		Tagline: fmt.Sprintf("high at %.0f%%, email after %s, restart after %s",
			cfg.Escalation.HighThreshold, cfg.Escalation.EmailDelay, cfg.Escalation.RestartDelay),
		Detail: configSource(path),
	})

	if err := a.Start(ctx); err != nil {
		return err
	}
	if addr := a.DashboardAddr(); addr != "" {
		fmt.Printf("%s dashboard on http://%s\n\n", ui.SymbolArrow, addr)
	}

	<-ctx.Done()
	fmt.Println()
	return a.Stop()
}
