package config

import (
	"time"

	"github.com/rileyhilliard/ramwatch/internal/escalation"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete ramwatch.yaml configuration file.
type Config struct {
	Version    int               `yaml:"version" mapstructure:"version"`
	Sampler    SamplerConfig     `yaml:"sampler" mapstructure:"sampler"`
	Escalation escalation.Config `yaml:"escalation" mapstructure:"escalation"`
	Bus        BusConfig         `yaml:"bus" mapstructure:"bus"`
	Alert      AlertConfig       `yaml:"alert" mapstructure:"alert"`
	Email      EmailConfig       `yaml:"email" mapstructure:"email"`
	CSVLog     CSVLogConfig      `yaml:"csvlog" mapstructure:"csvlog"`
	Restart    RestartConfig     `yaml:"restart" mapstructure:"restart"`
	Dashboard  DashboardConfig   `yaml:"dashboard" mapstructure:"dashboard"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// SamplerConfig controls how often memory is read and from where.
type SamplerConfig struct {
	// Interval between SAMPLE events.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// TopProcesses is how many of the largest processes each sample lists.
	TopProcesses int `yaml:"top_processes" mapstructure:"top_processes"`

	// Source is "auto", "procfs" or "runtime".
	Source string `yaml:"source" mapstructure:"source"`
}

// BusConfig controls the event bus.
type BusConfig struct {
	// QueueSize bounds the routing queue. 0 means unbounded.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`

	// StopTimeout is how long shutdown waits for running handlers.
	StopTimeout time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
}

// AlertConfig controls the terminal alert responder.
type AlertConfig struct {
	// Command runs on every escalation event with RAMWATCH_EVENT and
	// RAMWATCH_RAM_PERCENT set. Empty disables it.
	Command string `yaml:"command" mapstructure:"command"`

	// Quiet suppresses the banner; the command still runs.
	Quiet bool `yaml:"quiet" mapstructure:"quiet"`
}

// EmailConfig controls the SMTP responder.
type EmailConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`

	// Username and Password are normally supplied through
	// RAMWATCH_EMAIL_USERNAME and RAMWATCH_EMAIL_PASSWORD.
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`

	From string   `yaml:"from" mapstructure:"from"`
	To   []string `yaml:"to" mapstructure:"to"`
}

// CSVLogConfig controls the CSV event log.
type CSVLogConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`

	// SnapshotInterval adds a SNAPSHOT row on a timer. 0 disables it.
	SnapshotInterval time.Duration `yaml:"snapshot_interval" mapstructure:"snapshot_interval"`
}

// RestartConfig controls the restart responder.
type RestartConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// DryRun logs the restart instead of running Command.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`

	// Grace is how long to wait between RESTART and running Command.
	Grace time.Duration `yaml:"grace" mapstructure:"grace"`

	Command string `yaml:"command" mapstructure:"command"`
}

// DashboardConfig controls the HTTP status server.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level" mapstructure:"level"`

	// File, when set, also writes JSON logs there with rotation.
	File string `yaml:"file" mapstructure:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Sampler: SamplerConfig{
			Interval:     10 * time.Second,
			TopProcesses: 3,
			Source:       "auto",
		},
		Escalation: escalation.DefaultConfig(),
		Bus: BusConfig{
			QueueSize:   0,
			StopTimeout: 5 * time.Second,
		},
		Alert: AlertConfig{},
		Email: EmailConfig{
			Enabled: false,
			Host:    "smtp.gmail.com",
			Port:    587,
			To:      []string{},
		},
		CSVLog: CSVLogConfig{
			Enabled:          true,
			Path:             "~/.local/state/ramwatch/ram_log.csv",
			MaxSizeMB:        10,
			MaxBackups:       3,
			SnapshotInterval: 6 * time.Hour,
		},
		Restart: RestartConfig{
			Enabled: true,
			DryRun:  true,
			Grace:   10 * time.Second,
			Command: "shutdown -r now",
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Addr:    "127.0.0.1:5000",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
