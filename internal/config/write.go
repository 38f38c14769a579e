package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# ramwatch configuration
# Every key can be overridden with RAMWATCH_<SECTION>_<KEY>, e.g.
# RAMWATCH_ESCALATION_HIGH_THRESHOLD=70 or RAMWATCH_EMAIL_PASSWORD=...
`

// Marshal renders cfg as YAML with two-space indentation.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Write saves cfg to path, creating parent directories. The file is
// private to the user since it may hold SMTP credentials.
func Write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(fileHeader), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Redacted returns a copy of cfg safe to print.
func Redacted(cfg *Config) *Config {
	out := *cfg
	out.Email.To = append([]string(nil), cfg.Email.To...)
	if out.Email.Password != "" {
		out.Email.Password = "********"
	}
	return &out
}
