package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/ramwatch/internal/config"
)

func TestConfigShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramwatch.yaml")
	cfg := config.DefaultConfig()
	cfg.Email.Password = "hunter2"
	cfg.Escalation.HighThreshold = 65
	require.NoError(t, config.Write(path, cfg))

	orig := cfgFile
	defer func() { cfgFile = orig }()
	cfgFile = path

	var buf bytes.Buffer
	require.NoError(t, configShowCommand(&buf))

	out := buf.String()
	assert.Contains(t, out, "config: "+path)
	assert.Contains(t, out, "high_threshold: 65")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigShowCommand_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramwatch.yaml")
	require.NoError(t, config.Write(path, config.DefaultConfig()))
	t.Setenv("RAMWATCH_ESCALATION_HIGH_THRESHOLD", "80")

	orig := cfgFile
	defer func() { cfgFile = orig }()
	cfgFile = path

	var buf bytes.Buffer
	require.NoError(t, configShowCommand(&buf))
	assert.Contains(t, buf.String(), "high_threshold: 80")
}
