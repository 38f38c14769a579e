package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/doctor"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/lock"
	"github.com/rileyhilliard/ramwatch/internal/sampler"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// doctorCommand runs every check, optionally fixes what it can, and
// fails when any check fails.
func doctorCommand(ctx context.Context, w io.Writer, fix bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Fall back to defaults so the remaining checks still run; the config
	// checks report the load error themselves.
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	src, err := sampler.NewSource(cfg.Sampler.Source, cfg.Sampler.TopProcesses)
	if err != nil {
		src = nil
	}

	checks := doctor.Checks(cfg, cfgFile, src, lock.DefaultPath())
	results := doctor.RunAllParallel(ctx, checks)

	if fix && doctor.FixableCount(results) > 0 {
		for i, r := range results {
			if !r.Fixable || r.Status == doctor.StatusPass {
				continue
			}
			if err := checks[i].Fix(); err != nil {
				fmt.Fprintf(w, "%s couldn't fix %s: %v\n", ui.SymbolFail, r.Name, err)
			}
		}
		results = doctor.RunAll(ctx, checks)
	}

	fmt.Fprint(w, renderDoctor(results, fix))

	if doctor.HasFailures(results) {
		return errors.New(errors.ErrConfig,
			doctor.Summary(results),
			"Fix the failing checks above and run 'ramwatch doctor' again.")
	}
	return nil
}

// renderDoctor prints results grouped by category.
func renderDoctor(results []doctor.CheckResult, fixed bool) string {
	var out string
	heading := lipgloss.NewStyle().Bold(true).Foreground(ui.ColorSecondary)

	order, grouped := doctor.GroupByCategory(results)
	for _, cat := range order {
		out += heading.Render(cat) + "\n"
		for _, r := range grouped[cat] {
			out += "  " + statusSymbol(r.Status) + " " + r.Message + "\n"
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				out += "    " + ui.MutedStyle().Render(r.Suggestion) + "\n"
			}
		}
		out += "\n"
	}

	summary := doctor.Summary(results)
	if !doctor.HasIssues(results) {
		out += ui.SuccessStyle().Render(ui.SymbolSuccess+" "+summary) + "\n"
		return out
	}
	out += ui.WarningStyle().Render(summary) + "\n"
	if n := doctor.FixableCount(results); n > 0 && !fixed {
		out += ui.MutedStyle().Render(fmt.Sprintf("%d can be fixed with 'ramwatch doctor --fix'", n)) + "\n"
	}
	return out
}

func statusSymbol(s doctor.CheckStatus) string {
	switch s {
	case doctor.StatusPass:
		return ui.SuccessStyle().Render(ui.SymbolSuccess)
	case doctor.StatusWarn:
		return ui.WarningStyle().Render(ui.SymbolWarning)
	default:
		return ui.ErrorStyle().Render(ui.SymbolFail)
	}
}
