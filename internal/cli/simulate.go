package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/ramwatch/internal/app"
	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// simulateOverrides are the what-if flags; zero values keep the config.
type simulateOverrides struct {
	threshold    float64
	emailDelay   string
	restartDelay string
}

func (o simulateOverrides) apply(cfg escalation.Config) (escalation.Config, error) {
	if o.threshold != 0 {
		cfg.HighThreshold = o.threshold
	}
	for _, d := range []struct {
		flag string
		raw  string
		dst  *time.Duration
	}{
		{"--email-delay", o.emailDelay, &cfg.EmailDelay},
		{"--restart-delay", o.restartDelay, &cfg.RestartDelay},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Invalid %s: %s", d.flag, d.raw),
				"Use a duration like 20s or 1m")
		}
		*d.dst = v
	}
	return cfg, cfg.Validate()
}

// simulateCommand replays args through the policy and prints the result.
func simulateCommand(w io.Writer, args []string, overrides simulateOverrides) error {
	steps, err := app.ParseSteps(args)
	if err != nil {
		return err
	}

	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	esc, err := overrides.apply(cfg.Escalation)
	if err != nil {
		return err
	}

	outcomes, err := app.Simulate(esc, steps, nil)
	if err != nil {
		return err
	}

	fmt.Fprint(w, renderSimulation(esc, outcomes))
	return nil
}

// renderSimulation lays out one line per step.
func renderSimulation(cfg escalation.Config, outcomes []app.Outcome) string {
	var b strings.Builder

	b.WriteString(ui.MutedStyle().Render(fmt.Sprintf("high at %.1f%%, email after %s, restart after %s",
		cfg.HighThreshold, cfg.EmailDelay, cfg.RestartDelay)))
	b.WriteString("\n\n")

	offsetStyle := lipgloss.NewStyle().Width(8).Align(lipgloss.Right)
	derived := 0
	for _, o := range outcomes {
		pct := fmt.Sprintf("%5.1f%%", o.Step.RAMPercent)
		line := offsetStyle.Render(o.Step.At.String()) + "  " +
			lipgloss.NewStyle().Foreground(ui.PercentColor(o.Step.RAMPercent)).Render(pct) + "  "

		if len(o.Derived) == 0 {
			line += ui.MutedStyle().Render(stepState(o.Status))
		} else {
			parts := make([]string, 0, len(o.Derived))
			for _, ev := range o.Derived {
				parts = append(parts, eventLabel(ev))
			}
			line += strings.Join(parts, ui.MutedStyle().Render(", "))
			derived += len(o.Derived)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d %s derived from %d samples\n", derived, plural(derived, "event"), len(outcomes)))
	return b.String()
}

func stepState(st escalation.Status) string {
	if st.High {
		return "high"
	}
	return "normal"
}

func eventLabel(ev events.Event) string {
	style := ui.InfoStyle()
	switch ev.Type() {
	case events.TypeRAMHigh:
		style = ui.WarningStyle()
	case events.TypeRestart:
		style = ui.ErrorStyle()
	case events.TypeRAMNormal:
		style = ui.SuccessStyle()
	}
	label := style.Render(string(ev.Type()))
	if esc, ok := ev.Escalation(); ok && esc.Elapsed > 0 {
		label += ui.MutedStyle().Render(fmt.Sprintf(" (high for %s)", esc.Elapsed.Round(time.Second)))
	}
	return label
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
