package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/ramwatch/internal/errors"
)

// Command-specific flags
var (
	runNoDashboard    bool
	watchRefreshFlag  string
	initForce         bool
	initGlobal        bool
	initNonInteract   bool
	simulateThreshold float64
	simulateEmail     string
	simulateRestart   string
	doctorFix         bool
)

// runCmd starts the monitor in the foreground
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch RAM and escalate until interrupted",
	Long: `Start sampling RAM and run every enabled responder until Ctrl+C or SIGTERM.

On shutdown ramwatch stops sampling, gives in-flight handlers up to
bus.stop_timeout to finish, then exits.

Examples:
  ramwatch run
  ramwatch run --config /etc/ramwatch.yaml
  RAMWATCH_ESCALATION_HIGH_THRESHOLD=70 ramwatch run -v`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd.Context(), runNoDashboard)
	},
}

// watchCmd starts the TUI
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal dashboard for RAM and escalations",
	Long: `Run the monitor with an interactive terminal dashboard instead of log output.

Shows a usage gauge, recent history, top processes and the escalation log.
Responders (email, CSV, restart, web dashboard) run exactly as with 'run'.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  p           Pause updates
  c           Clear the event log
  r           Refresh now
  ?           Show help

Examples:
  ramwatch watch
  ramwatch watch --refresh 500ms`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, err := parseRefresh(watchRefreshFlag)
		if err != nil {
			return err
		}
		return watchCommand(cmd.Context(), refresh)
	},
}

// initCmd writes a config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a ramwatch.yaml configuration",
	Long: `Create a config file with the threshold, delays, email and restart settings.

Prompts interactively when stdin is a terminal; otherwise, or with
--non-interactive or CI=true, writes the defaults.

Examples:
  ramwatch init
  ramwatch init --global
  ramwatch init --force --non-interactive`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(InitOptions{
			Global:         initGlobal,
			Overwrite:      initForce,
			NonInteractive: initNonInteract,
			Out:            cmd.OutOrStdout(),
		})
	},
}

// configCmd groups config subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the resolved configuration",
}

// configShowCmd prints the resolved config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved config as YAML",
	Long: `Print the config ramwatch would run with after defaults and RAMWATCH_*
environment overrides are applied. The SMTP password is masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCommand(cmd.OutOrStdout())
	},
}

// simulateCmd replays scripted samples through the policy
var simulateCmd = &cobra.Command{
	Use:   "simulate <offset=percent>...",
	Short: "Replay a sample sequence through the escalation policy",
	Long: `Feed scripted samples through the escalation policy on a simulated clock
and print every event it derives. Nothing is emailed or restarted.

Thresholds come from the config; flags override them for a quick what-if.

Examples:
  ramwatch simulate 0s=75 10s=80 20s=82 30s=85 40s=40
  ramwatch simulate --threshold 70 --email-delay 5s 0s=72 6s=73`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return simulateCommand(cmd.OutOrStdout(), args, simulateOverrides{
			threshold:    simulateThreshold,
			emailDelay:   simulateEmail,
			restartDelay: simulateRestart,
		})
	},
}

// doctorCmd runs preflight checks
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, memory source, SMTP and responders",
	Long: `Run diagnostic checks against the resolved config before starting ramwatch.

Checks:
  - Config file and validity
  - Memory source can be sampled
  - SMTP credentials and reachability (when email is enabled)
  - Restart command (when restart is enabled)
  - CSV log directory is writable
  - Dashboard address is free
  - No other ramwatch is running

Examples:
  ramwatch doctor
  ramwatch doctor --fix`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout(), doctorFix)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for ramwatch.

Examples:
  # Bash
  ramwatch completion bash > /etc/bash_completion.d/ramwatch

  # Zsh
  ramwatch completion zsh > "${fpath[1]}/_ramwatch"

  # Fish
  ramwatch completion fish > ~/.config/fish/completions/ramwatch.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		default:
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoDashboard, "no-dashboard", false, "don't serve the web dashboard")

	watchCmd.Flags().StringVar(&watchRefreshFlag, "refresh", "1s", "screen refresh interval (e.g. 500ms, 2s)")

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write ~/.config/ramwatch/config.yaml instead of ./ramwatch.yaml")
	initCmd.Flags().BoolVar(&initNonInteract, "non-interactive", false, "skip prompts and write defaults")

	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 0, "override escalation.high_threshold")
	simulateCmd.Flags().StringVar(&simulateEmail, "email-delay", "", "override escalation.email_delay (e.g. 25s)")
	simulateCmd.Flags().StringVar(&simulateRestart, "restart-delay", "", "override escalation.restart_delay (e.g. 35s)")

	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "fix what can be fixed automatically")

	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(completionCmd)
}

// parseRefresh validates the --refresh flag.
func parseRefresh(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid refresh interval: "+s,
			"Use a valid duration like 500ms, 1s, or 2s")
	}
	if d < 100*time.Millisecond {
		return 0, errors.New(errors.ErrConfig,
			"Refresh interval too short",
			"Minimum refresh is 100ms")
	}
	return d, nil
}
