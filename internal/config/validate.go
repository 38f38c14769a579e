package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
)

var (
	validSources   = []string{"auto", "procfs", "runtime"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but ramwatch only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade ramwatch or lower the version field.")
	}

	if err := validateSampler(cfg.Sampler); err != nil {
		return withSection(err, "sampler")
	}

	if err := cfg.Escalation.Validate(); err != nil {
		return err
	}

	if err := validateBus(cfg.Bus); err != nil {
		return withSection(err, "bus")
	}

	if err := validateEmail(cfg.Email); err != nil {
		return withSection(err, "email")
	}

	if err := validateCSVLog(cfg.CSVLog); err != nil {
		return withSection(err, "csvlog")
	}

	if err := validateRestart(cfg.Restart); err != nil {
		return withSection(err, "restart")
	}

	if err := validateDashboard(cfg.Dashboard); err != nil {
		return withSection(err, "dashboard")
	}

	if err := validateLog(cfg.Log); err != nil {
		return withSection(err, "log")
	}

	return nil
}

func withSection(err error, section string) error {
	return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
		fmt.Sprintf("Check the '%s' section in your ramwatch.yaml.", section))
}

func validateSampler(s SamplerConfig) error {
	if s.Interval <= 0 {
		return fmt.Errorf("sampler.interval must be positive, got %s", s.Interval)
	}
	if s.TopProcesses < 0 || s.TopProcesses > events.MaxTopProcesses {
		return fmt.Errorf("sampler.top_processes must be between 0 and %d, got %d", events.MaxTopProcesses, s.TopProcesses)
	}
	if !oneOf(s.Source, validSources) {
		return fmt.Errorf("sampler.source must be one of %s, got %q", strings.Join(validSources, ", "), s.Source)
	}
	return nil
}

func validateBus(b BusConfig) error {
	if b.QueueSize < 0 {
		return fmt.Errorf("bus.queue_size can't be negative, got %d", b.QueueSize)
	}
	if b.StopTimeout <= 0 {
		return fmt.Errorf("bus.stop_timeout must be positive, got %s", b.StopTimeout)
	}
	return nil
}

func validateEmail(e EmailConfig) error {
	if !e.Enabled {
		return nil
	}
	if e.Host == "" {
		return fmt.Errorf("email.host is required when email is enabled")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("email.port must be between 1 and 65535, got %d", e.Port)
	}
	if e.From == "" {
		return fmt.Errorf("email.from is required when email is enabled")
	}
	if len(e.To) == 0 {
		return fmt.Errorf("email.to needs at least one recipient")
	}
	for _, to := range e.To {
		if !strings.Contains(to, "@") {
			return fmt.Errorf("email.to entry %q is not an email address", to)
		}
	}
	return nil
}

func validateCSVLog(c CSVLogConfig) error {
	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return fmt.Errorf("csvlog.path is required when the CSV log is enabled")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 {
		return fmt.Errorf("csvlog.max_size_mb and csvlog.max_backups can't be negative")
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("csvlog.snapshot_interval can't be negative, got %s", c.SnapshotInterval)
	}
	return nil
}

func validateRestart(r RestartConfig) error {
	if r.Grace < 0 {
		return fmt.Errorf("restart.grace can't be negative, got %s", r.Grace)
	}
	if r.Enabled && !r.DryRun && strings.TrimSpace(r.Command) == "" {
		return fmt.Errorf("restart.command is required unless restart.dry_run is set")
	}
	return nil
}

func validateDashboard(d DashboardConfig) error {
	if !d.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(d.Addr); err != nil {
		return fmt.Errorf("dashboard.addr %q is not host:port: %v", d.Addr, err)
	}
	return nil
}

func validateLog(l LogConfig) error {
	if l.Level != "" && !oneOf(strings.ToLower(l.Level), validLogLevels) {
		return fmt.Errorf("log.level must be one of %s, got %q", strings.Join(validLogLevels, ", "), l.Level)
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
