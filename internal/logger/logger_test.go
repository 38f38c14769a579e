package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		debugEnv  string
		expectDbg bool
	}{
		{name: "default level hides debug", level: "", expectDbg: false},
		{name: "debug level shows debug", level: "debug", expectDbg: true},
		{name: "env var forces debug", level: "info", debugEnv: "1", expectDbg: true},
		{name: "level is case insensitive", level: "DEBUG", expectDbg: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.debugEnv != "" {
				t.Setenv(DebugEnv, tt.debugEnv)
			} else {
				os.Unsetenv(DebugEnv)
			}

			var buf bytes.Buffer
			l, err := New(Config{Level: tt.level, Console: &buf})
			require.NoError(t, err)

			l.Debug("debug message %s", "arg")
			l.Info("info message %d", 42)

			if tt.expectDbg {
				assert.Contains(t, buf.String(), "debug message arg")
			} else {
				assert.NotContains(t, buf.String(), "debug message")
			}
			assert.Contains(t, buf.String(), "info message 42")
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestNew_NamedAndLevels(t *testing.T) {
	os.Unsetenv(DebugEnv)
	var buf bytes.Buffer
	l, err := New(Config{Console: &buf})
	require.NoError(t, err)

	named := l.Named("bus")
	named.Warn("queue at %d", 9)
	named.Error("handler failed")

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "bus")
	assert.Contains(t, out, "queue at 9")
}

func TestNew_FileOutput(t *testing.T) {
	os.Unsetenv(DebugEnv)
	path := filepath.Join(t.TempDir(), "logs", "ramwatch.log")

	l, err := New(Config{File: path, Console: &bytes.Buffer{}, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Named("sampler").Info("ram at %.1f%%", 42.5)
	Sync(l)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "sampler", entry["logger"])
	assert.Equal(t, "ram at 42.5%", entry["msg"])
}

func TestNoopLogger(t *testing.T) {
	l := Noop()
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")
	assert.NotNil(t, l.Named("x"))
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("debug %s", "msg")
	l.Info("info %s", "msg")
	l.Warn("warn %s", "msg")
	l.Error("error %s", "msg")

	msgs := l.Messages()
	require.Len(t, msgs, 4)

	assert.Equal(t, "debug", msgs[0].Level)
	assert.Equal(t, "debug msg", msgs[0].Message)
	assert.Equal(t, "info", msgs[1].Level)
	assert.Equal(t, "warn", msgs[2].Level)
	assert.Equal(t, "error", msgs[3].Level)
	assert.Equal(t, "error msg", msgs[3].Message)
}

func TestBufferLogger_NamedSharesStore(t *testing.T) {
	l := NewBufferLogger()
	child := l.Named("bus").Named("mailbox")

	child.Error("boom")

	msgs := l.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "bus.mailbox", msgs[0].Name)
	assert.True(t, l.Contains("error", "boom"))
	assert.False(t, l.Contains("warn", "boom"))
}

func TestBufferLogger_HasLevelAndClear(t *testing.T) {
	l := NewBufferLogger()

	assert.False(t, l.HasLevel("debug"))
	l.Debug("test")
	assert.True(t, l.HasLevel("debug"))

	l.Clear()
	assert.Empty(t, l.Messages())
}

func TestBufferLogger_Concurrent(t *testing.T) {
	l := NewBufferLogger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Info("message %d", i)
		}(i)
	}
	wg.Wait()

	assert.Len(t, l.Messages(), 50)
}
