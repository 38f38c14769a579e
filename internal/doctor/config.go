package doctor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/ramwatch/internal/config"
)

// ConfigFileCheck verifies that a config file exists.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
	FixPath    string // Where Fix writes defaults; empty means ./ramwatch.yaml
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Error finding config: %v", err),
			Suggestion: "Check the --config path",
		}
	}
	if path == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No config file, running on built-in defaults",
			Suggestion: "Run 'ramwatch init' or 'ramwatch doctor --fix' to write one",
			Fixable:    true,
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: "Config file: " + path,
	}
}

// Fix writes the defaults when no config exists.
func (c *ConfigFileCheck) Fix() error {
	if path, err := config.Find(c.ConfigPath); err != nil || path != "" {
		return err
	}
	path := c.FixPath
	if path == "" {
		path = filepath.Join(".", config.ConfigFileName)
	}
	return config.Write(path, config.DefaultConfig())
}

// ConfigValidCheck loads the resolved config, env overrides included, and
// validates it.
type ConfigValidCheck struct {
	ConfigPath string
}

func (c *ConfigValidCheck) Name() string     { return "config_valid" }
func (c *ConfigValidCheck) Category() string { return "CONFIG" }
func (c *ConfigValidCheck) Fix() error       { return nil }

func (c *ConfigValidCheck) Run(context.Context) CheckResult {
	cfg, _, err := config.LoadOrDefault(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Failed to load config: %s", firstLine(err)),
			Suggestion: "Check the YAML syntax and RAMWATCH_* environment variables",
		}
	}
	if err := config.Validate(cfg); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("Invalid config: %v", firstLine(err)),
			Suggestion: "Run 'ramwatch config show' to see the resolved values",
		}
	}
	return CheckResult{
		Status: StatusPass,
		Message: fmt.Sprintf("High at %.0f%%, email after %s, restart after %s",
			cfg.Escalation.HighThreshold, cfg.Escalation.EmailDelay, cfg.Escalation.RestartDelay),
	}
}

// firstLine trims a structured error to its headline.
func firstLine(err error) string {
	line, _, _ := strings.Cut(err.Error(), "\n")
	return strings.TrimPrefix(line, "✗ ")
}
