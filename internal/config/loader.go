package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rileyhilliard/ramwatch/internal/errors"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "ramwatch.yaml"
	// GlobalConfigDir is the directory for the per-user config.
	GlobalConfigDir = ".config/ramwatch"
	// GlobalConfigFile is the per-user config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g.
	// RAMWATCH_ESCALATION_HIGH_THRESHOLD.
	EnvPrefix = "RAMWATCH"
)

// Load reads config from the specified path. An empty path loads defaults
// with environment overrides applied.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Run 'ramwatch init' to create a config file, or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. ramwatch.yaml in current directory
// 3. ~/.config/ramwatch/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	local := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if global := GlobalConfigPath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// GlobalConfigPath returns ~/.config/ramwatch/config.yaml, or "" when the
// home directory is unknown.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault finds and loads the config, falling back to defaults when
// no file exists. The returned path is "" in that case.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("sampler.interval", d.Sampler.Interval)
	v.SetDefault("sampler.top_processes", d.Sampler.TopProcesses)
	v.SetDefault("sampler.source", d.Sampler.Source)

	v.SetDefault("escalation.high_threshold", d.Escalation.HighThreshold)
	v.SetDefault("escalation.email_delay", d.Escalation.EmailDelay)
	v.SetDefault("escalation.restart_delay", d.Escalation.RestartDelay)

	v.SetDefault("bus.queue_size", d.Bus.QueueSize)
	v.SetDefault("bus.stop_timeout", d.Bus.StopTimeout)

	v.SetDefault("alert.command", d.Alert.Command)
	v.SetDefault("alert.quiet", d.Alert.Quiet)

	v.SetDefault("email.enabled", d.Email.Enabled)
	v.SetDefault("email.host", d.Email.Host)
	v.SetDefault("email.port", d.Email.Port)
	v.SetDefault("email.username", d.Email.Username)
	v.SetDefault("email.password", d.Email.Password)
	v.SetDefault("email.from", d.Email.From)
	v.SetDefault("email.to", d.Email.To)

	v.SetDefault("csvlog.enabled", d.CSVLog.Enabled)
	v.SetDefault("csvlog.path", d.CSVLog.Path)
	v.SetDefault("csvlog.max_size_mb", d.CSVLog.MaxSizeMB)
	v.SetDefault("csvlog.max_backups", d.CSVLog.MaxBackups)
	v.SetDefault("csvlog.snapshot_interval", d.CSVLog.SnapshotInterval)

	v.SetDefault("restart.enabled", d.Restart.Enabled)
	v.SetDefault("restart.dry_run", d.Restart.DryRun)
	v.SetDefault("restart.grace", d.Restart.Grace)
	v.SetDefault("restart.command", d.Restart.Command)

	v.SetDefault("dashboard.enabled", d.Dashboard.Enabled)
	v.SetDefault("dashboard.addr", d.Dashboard.Addr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		source := "your environment"
		if path != "" {
			source = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+source)
	}

	cfg.CSVLog.Path = ExpandPath(cfg.CSVLog.Path)
	cfg.Log.File = ExpandPath(cfg.Log.File)

	return cfg, nil
}
