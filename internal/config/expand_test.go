package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"~", home},
		{"~/logs/ram.csv", filepath.Join(home, "logs/ram.csv")},
		{"/var/log/ram.csv", "/var/log/ram.csv"},
		{"~other/file", "~other/file"},
		{"relative/~/path", "relative/~/path"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandTilde(tt.input))
		})
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("USER", "alice")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	host, err := os.Hostname()
	require.NoError(t, err)

	assert.Equal(t, "", Expand(""))
	assert.Equal(t, "/logs/alice", Expand("/logs/${USER}"))
	assert.Equal(t, home+"/ram.csv", Expand("${HOME}/ram.csv"))
	assert.Equal(t, "ram-"+host+".csv", Expand("ram-${HOSTNAME}.csv"))
	assert.Equal(t, "${UNKNOWN}", Expand("${UNKNOWN}"))
}

func TestExpandPath(t *testing.T) {
	t.Setenv("USER", "bob")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "bob.csv"), ExpandPath("~/${USER}.csv"))
}
