// Package alert prints escalation banners to the terminal and optionally
// runs a notification command for each escalation event.
package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/exec"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/responder"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// Name labels the alert subscriptions.
const Name = "alert"

// Env vars passed to the notification command.
const (
	EnvEvent      = "RAMWATCH_EVENT"
	EnvRAMPercent = "RAMWATCH_RAM_PERCENT"
)

// Runner runs the notification command. exec.Capture satisfies it.
type Runner func(ctx context.Context, cmd string, env []string) (exec.Result, error)

// Responder shows escalation events to whoever is watching the terminal.
type Responder struct {
	cfg config.AlertConfig
	log logger.Logger
	run Runner

	mu  sync.Mutex
	out io.Writer
}

// Option configures a Responder.
type Option func(*Responder)

// WithOutput redirects banners, mainly for tests.
func WithOutput(w io.Writer) Option {
	return func(r *Responder) { r.out = w }
}

// WithLogger sets the responder logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Responder) { r.log = l }
}

// WithRunner replaces the command runner.
func WithRunner(run Runner) Option {
	return func(r *Responder) { r.run = run }
}

// New creates an alert responder.
func New(cfg config.AlertConfig, opts ...Option) *Responder {
	r := &Responder{
		cfg: cfg,
		log: logger.Noop(),
		run: exec.Capture,
		out: os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes to every escalation event.
func (r *Responder) Attach(s responder.Subscriber) {
	responder.Attach(s, Name, r.Handle, events.EscalationTypes...)
}

// Handle renders ev and runs the notification command if one is configured.
func (r *Responder) Handle(ctx context.Context, ev events.Event) error {
	if !r.cfg.Quiet {
		r.mu.Lock()
		fmt.Fprintln(r.out, Render(ev))
		r.mu.Unlock()
	}

	if r.cfg.Command == "" {
		return nil
	}
	env := []string{
		EnvEvent + "=" + string(ev.Type()),
		fmt.Sprintf("%s=%.1f", EnvRAMPercent, ev.RAMPercent()),
	}
	res, err := r.run(ctx, r.cfg.Command, env)
	if err != nil {
		return err
	}
	if err := exec.Check(r.cfg.Command, res); err != nil {
		return err
	}
	r.log.Debug("alert command ran for %s", ev.Type())
	return nil
}

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorError).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorError).
			Bold(true)
)

// Render formats an escalation event for the terminal. RAM_HIGH gets a
// boxed banner listing the top processes; the rest get a single line.
func Render(ev events.Event) string {
	stamp := ui.MutedStyle().Render(ev.Timestamp().Format(time.TimeOnly))
	esc, _ := ev.Escalation()

	switch ev.Type() {
	case events.TypeRAMHigh:
		var b strings.Builder
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s HIGH RAM USAGE: %.1f%%", ui.SymbolWarning, ev.RAMPercent())))
		b.WriteString("\n")
		if procs := ev.TopProcesses(); len(procs) > 0 {
			b.WriteString("\nTop memory consumers:\n")
			b.WriteString(strings.TrimRight(responder.ProcessLines(procs, "  "), "\n"))
		}
		return stamp + "\n" + bannerStyle.Render(b.String())

	case events.TypeRAMNormal:
		return fmt.Sprintf("%s %s RAM back to normal: %.1f%% (high for %s)",
			stamp, ui.SuccessStyle().Render(ui.SymbolSuccess), ev.RAMPercent(), esc.Elapsed.Round(time.Second))

	case events.TypeSendEmail:
		return fmt.Sprintf("%s %s RAM high for %s, sending alert email",
			stamp, ui.WarningStyle().Render(ui.SymbolWarning), esc.Elapsed.Round(time.Second))

	case events.TypeRestart:
		return fmt.Sprintf("%s %s RAM high for %s, restart requested",
			stamp, ui.ErrorStyle().Render(ui.SymbolFail), esc.Elapsed.Round(time.Second))
	}
	return fmt.Sprintf("%s %s %.1f%%", stamp, ev.Type(), ev.RAMPercent())
}
