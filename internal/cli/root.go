package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// Global flags
var (
	cfgFile     string
	verboseFlag bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "ramwatch",
	Short: "Watch RAM usage and escalate when it stays high",
	Long: `ramwatch samples system memory on a fixed interval and escalates while
usage stays above a threshold: first a warning, then an alert email, and
finally a restart request. Every step is published on an in-process event
bus, so the terminal alert, email, CSV log, restart and dashboard responders
all react to the same events.

Config is read from --config, ./ramwatch.yaml, or ~/.config/ramwatch/config.yaml,
and every key can be overridden with RAMWATCH_<SECTION>_<KEY>.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColorFlag || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./ramwatch.yaml or ~/.config/ramwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError renders err for the terminal, with a suggestion for mistyped
// commands.
func printError(w io.Writer, err error) {
	var e *errors.Error
	if errors.As(err, &e) {
		fmt.Fprint(w, ui.ErrorStyle().Render(e.Error()))
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w, ui.ErrorStyle().Render(ui.SymbolFail+" "+err.Error()))
	if !isUnknownCommandError(err) {
		return
	}
	if name := extractUnknownCommand(err); name != "" {
		if suggestions := rootCmd.SuggestionsFor(name); len(suggestions) > 0 {
			fmt.Fprintf(w, "\n  Did you mean '%s'?\n", strings.Join(suggestions, "', '"))
		}
	}
	fmt.Fprintln(w, "\n  Run 'ramwatch --help' to see available commands.")
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls "foo" out of `unknown command "foo" for "ramwatch"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

// loadConfig resolves and validates the config for commands that run the
// monitor. The returned path is "" when defaults are in use.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if verboseFlag {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newLogger builds the process logger from cfg.Log. console is where
// human-readable lines go; nil means stderr.
func newLogger(cfg *config.Config, console io.Writer) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Console:    console,
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't set up logging",
			"Check log.level and that log.file is writable.")
	}
	return log, nil
}

// configSource describes where cfg came from, for headers.
func configSource(path string) string {
	if path == "" {
		return "using built-in defaults"
	}
	return "config: " + path
}
