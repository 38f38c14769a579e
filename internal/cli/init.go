package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// envNonInteractive forces init to write defaults without prompting.
const envNonInteractive = "RAMWATCH_NON_INTERACTIVE"

// stdinIsTerminal is swapped out in tests.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // Explicit output path; overrides Global
	Global         bool   // Write the per-user config instead of ./ramwatch.yaml
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts, use defaults
	Out            io.Writer
}

// getInitDefaults reads init settings from the environment.
func getInitDefaults() InitOptions {
	return InitOptions{
		NonInteractive: os.Getenv(envNonInteractive) == "true" || os.Getenv("CI") == "true",
	}
}

// mergeInitOptions fills opts from the environment and the terminal state.
// Flags win; prompting is only possible on a terminal.
func mergeInitOptions(opts InitOptions) InitOptions {
	if getInitDefaults().NonInteractive || !stdinIsTerminal() {
		opts.NonInteractive = true
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return opts
}

// initPath resolves where the config goes.
func initPath(opts InitOptions) (string, error) {
	if opts.Path != "" {
		return opts.Path, nil
	}
	if opts.Global {
		path := config.GlobalConfigPath()
		if path == "" {
			return "", errors.New(errors.ErrConfig,
				"Can't find your home directory",
				"Write a local config with 'ramwatch init' instead.")
		}
		return path, nil
	}
	return filepath.Join(".", config.ConfigFileName), nil
}

// checkExistingConfig reports whether init may write to path.
func checkExistingConfig(path string, opts InitOptions) (bool, error) {
	if _, err := os.Stat(path); err != nil || opts.Overwrite {
		return true, nil
	}

	if opts.NonInteractive {
		return false, errors.New(errors.ErrConfig,
			fmt.Sprintf("Config file already exists: %s", path),
			"Use --force to overwrite")
	}

	var overwrite bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("'%s' already exists. Overwrite?", path)).
				Value(&overwrite),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Try running with --force to overwrite")
	}
	return overwrite, nil
}

// initAnswers holds the prompt values as typed.
type initAnswers struct {
	threshold    string
	emailDelay   string
	restartDelay string

	emailEnabled bool
	emailTo      string

	restartEnabled bool
	dryRun         bool
}

func newInitAnswers(cfg *config.Config) initAnswers {
	return initAnswers{
		threshold:      strconv.FormatFloat(cfg.Escalation.HighThreshold, 'f', -1, 64),
		emailDelay:     cfg.Escalation.EmailDelay.String(),
		restartDelay:   cfg.Escalation.RestartDelay.String(),
		emailEnabled:   cfg.Email.Enabled,
		emailTo:        strings.Join(cfg.Email.To, ", "),
		restartEnabled: cfg.Restart.Enabled,
		dryRun:         cfg.Restart.DryRun,
	}
}

// apply parses the answers into cfg.
func (a initAnswers) apply(cfg *config.Config) error {
	threshold, err := parsePercent(a.threshold)
	if err != nil {
		return err
	}
	emailDelay, err := parseDelay(a.emailDelay)
	if err != nil {
		return err
	}
	restartDelay, err := parseDelay(a.restartDelay)
	if err != nil {
		return err
	}

	esc := escalation.Config{
		HighThreshold: threshold,
		EmailDelay:    emailDelay,
		RestartDelay:  restartDelay,
	}
	if err := esc.Validate(); err != nil {
		return err
	}
	cfg.Escalation = esc

	cfg.Email.Enabled = a.emailEnabled
	cfg.Email.To = nil
	for _, addr := range strings.Split(a.emailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.Email.To = append(cfg.Email.To, addr)
		}
	}
	cfg.Restart.Enabled = a.restartEnabled
	cfg.Restart.DryRun = a.dryRun
	return nil
}

func parsePercent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil || v <= 0 || v > 100 {
		return 0, fmt.Errorf("enter a percentage between 0 and 100")
	}
	return v, nil
}

func parseDelay(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("enter a duration like 25s or 2m")
	}
	return d, nil
}

// collectInteractiveValues prompts for the settings people usually change.
func collectInteractiveValues(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("High RAM threshold (%)").
				Description("Escalation starts when usage reaches this").
				Value(&a.threshold).
				Validate(func(s string) error {
					_, err := parsePercent(s)
					return err
				}),
			huh.NewInput().
				Title("Email after").
				Description("How long usage must stay high before an alert email").
				Value(&a.emailDelay).
				Validate(func(s string) error {
					_, err := parseDelay(s)
					return err
				}),
			huh.NewInput().
				Title("Restart after").
				Description("How long usage must stay high before a restart is requested").
				Value(&a.restartDelay).
				Validate(func(s string) error {
					_, err := parseDelay(s)
					return err
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Send alert emails?").
				Description("SMTP credentials come from RAMWATCH_EMAIL_USERNAME and RAMWATCH_EMAIL_PASSWORD").
				Value(&a.emailEnabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Alert recipients").
				Description("Comma-separated; leave empty to send to yourself").
				Value(&a.emailTo),
		).WithHideFunc(func() bool { return !a.emailEnabled }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the restart responder?").
				Value(&a.restartEnabled),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Dry run only?").
				Description("Log the restart instead of running restart.command").
				Value(&a.dryRun),
		).WithHideFunc(func() bool { return !a.restartEnabled }),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive")
	}
	return nil
}

// Init writes a new config file.
func Init(opts InitOptions) error {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	path, err := initPath(opts)
	if err != nil {
		return err
	}

	proceed, err := checkExistingConfig(path, opts)
	if err != nil {
		return err
	}
	if !proceed {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	cfg := config.DefaultConfig()
	if !opts.NonInteractive {
		answers := newInitAnswers(cfg)
		if err := collectInteractiveValues(&answers); err != nil {
			return err
		}
		if err := answers.apply(cfg); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Those settings don't work together",
				"Run 'ramwatch init' again.")
		}
	}

	if err := config.Write(path, cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolSuccess, path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  ramwatch simulate 0s=80 30s=85 40s=40  - See how escalation would play out")
	fmt.Fprintln(out, "  ramwatch watch                         - Live terminal dashboard")
	fmt.Fprintln(out, "  ramwatch run                           - Run in the foreground")
	return nil
}

// initCommand is the implementation called by the cobra command.
func initCommand(opts InitOptions) error {
	return Init(mergeInitOptions(opts))
}
