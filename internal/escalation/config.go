package escalation

import (
	"math"
	"time"

	"github.com/rileyhilliard/ramwatch/internal/errors"
)

// Defaults for the escalation thresholds.
const (
	DefaultHighThreshold = 50.0
	DefaultEmailDelay    = 20 * time.Second
	DefaultRestartDelay  = 30 * time.Second
)

// Config holds the thresholds that gate each escalation.
type Config struct {
	// HighThreshold is the RAM percentage at or above which a sample
	// counts as a breach.
	HighThreshold float64 `yaml:"high_threshold" mapstructure:"high_threshold"`

	// EmailDelay and RestartDelay are measured from the start of the
	// breach streak.
	EmailDelay   time.Duration `yaml:"email_delay" mapstructure:"email_delay"`
	RestartDelay time.Duration `yaml:"restart_delay" mapstructure:"restart_delay"`
}

// DefaultConfig returns the stock thresholds: 50%, 20s, 30s.
func DefaultConfig() Config {
	return Config{
		HighThreshold: DefaultHighThreshold,
		EmailDelay:    DefaultEmailDelay,
		RestartDelay:  DefaultRestartDelay,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if math.IsNaN(c.HighThreshold) || c.HighThreshold <= 0 || c.HighThreshold > 100 {
		return errors.New(errors.ErrConfig,
			"escalation.high_threshold must be in (0,100]",
			"Set it to the RAM percentage that should count as high, e.g. 50")
	}
	if c.EmailDelay < 0 {
		return errors.New(errors.ErrConfig,
			"escalation.email_delay can't be negative",
			"Use a duration like 20s")
	}
	if c.RestartDelay < 0 {
		return errors.New(errors.ErrConfig,
			"escalation.restart_delay can't be negative",
			"Use a duration like 30s")
	}
	return nil
}
