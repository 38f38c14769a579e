package doctor

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/lock"
)

type stubSource struct {
	usage events.Usage
	err   error
}

func (s stubSource) Read(context.Context) (events.Usage, error) { return s.usage, s.err }

func TestSourceCheck(t *testing.T) {
	ctx := context.Background()

	r := (&SourceCheck{Source: stubSource{usage: events.Usage{
		RAMPercent:   41.5,
		TopProcesses: []events.Process{{Name: "java", Percent: 20}},
	}}}).Run(ctx)
	assert.Equal(t, StatusPass, r.Status)
	assert.Contains(t, r.Message, "RAM at 41.5%")
	assert.Contains(t, r.Message, "java (20.0%)")

	r = (&SourceCheck{Source: stubSource{err: errors.New("no /proc")}}).Run(ctx)
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "no /proc")

	r = (&SourceCheck{}).Run(ctx)
	assert.Equal(t, StatusFail, r.Status)
}

type nopConn struct{ net.Conn }

func (nopConn) Close() error { return nil }

func TestSMTPCheck(t *testing.T) {
	ctx := context.Background()
	base := config.EmailConfig{Enabled: true, Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"}

	t.Run("disabled", func(t *testing.T) {
		r := (&SMTPCheck{Email: config.EmailConfig{}}).Run(ctx)
		assert.Equal(t, StatusPass, r.Status)
	})

	t.Run("missing credentials", func(t *testing.T) {
		cfg := base
		cfg.Password = ""
		r := (&SMTPCheck{Email: cfg}).Run(ctx)
		assert.Equal(t, StatusFail, r.Status)
		assert.Contains(t, r.Suggestion, "RAMWATCH_EMAIL_PASSWORD")
	})

	t.Run("reachable", func(t *testing.T) {
		var dialed string
		r := (&SMTPCheck{Email: base, Dial: func(_, addr string, _ time.Duration) (net.Conn, error) {
			dialed = addr
			return nopConn{}, nil
		}}).Run(ctx)
		assert.Equal(t, StatusPass, r.Status)
		assert.Equal(t, "smtp.example.com:587", dialed)
	})

	t.Run("unreachable", func(t *testing.T) {
		r := (&SMTPCheck{Email: base, Dial: func(string, string, time.Duration) (net.Conn, error) {
			return nil, errors.New("connection refused")
		}}).Run(ctx)
		assert.Equal(t, StatusFail, r.Status)
		assert.Contains(t, r.Message, "connection refused")
	})
}

func TestRestartCheck(t *testing.T) {
	ctx := context.Background()
	found := func(string) (string, error) { return "/sbin/shutdown", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }

	tests := []struct {
		name     string
		cfg      config.RestartConfig
		lookPath func(string) (string, error)
		want     CheckStatus
	}{
		{"disabled", config.RestartConfig{}, found, StatusPass},
		{"empty command", config.RestartConfig{Enabled: true, Command: "  "}, found, StatusFail},
		{"dry run", config.RestartConfig{Enabled: true, DryRun: true, Command: "shutdown -r now"}, missing, StatusPass},
		{"live and found", config.RestartConfig{Enabled: true, Command: "shutdown -r now"}, found, StatusWarn},
		{"live and missing", config.RestartConfig{Enabled: true, Command: "shutdown -r now"}, missing, StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := (&RestartCheck{Restart: tt.cfg, LookPath: tt.lookPath}).Run(ctx)
			assert.Equal(t, tt.want, r.Status, r.Message)
		})
	}
}

func TestCSVLogCheck(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r := (&CSVLogCheck{}).Run(ctx)
	assert.Equal(t, StatusPass, r.Status, "disabled")

	c := &CSVLogCheck{CSV: config.CSVLogConfig{Enabled: true, Path: filepath.Join(dir, "logs", "ram.csv")}}
	r = c.Run(ctx)
	assert.Equal(t, StatusWarn, r.Status)
	assert.True(t, r.Fixable)

	require.NoError(t, c.Fix())
	r = c.Run(ctx)
	assert.Equal(t, StatusPass, r.Status)

	require.NoError(t, os.WriteFile(c.CSV.Path, make([]byte, 2048), 0o644))
	r = c.Run(ctx)
	assert.Contains(t, r.Message, "2.0 kB")
}

func TestDashboardCheck(t *testing.T) {
	ctx := context.Background()

	r := (&DashboardCheck{Dashboard: config.DashboardConfig{Enabled: true, Addr: "127.0.0.1:0"}}).Run(ctx)
	assert.Equal(t, StatusPass, r.Status)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	r = (&DashboardCheck{Dashboard: config.DashboardConfig{Enabled: true, Addr: ln.Addr().String()}}).Run(ctx)
	assert.Equal(t, StatusWarn, r.Status)
}

func TestLockCheck(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), lock.FileName)

	assert.Equal(t, StatusPass, (&LockCheck{Path: path}).Run(ctx).Status)

	l, err := lock.Acquire(path, "run")
	require.NoError(t, err)
	defer l.Release()

	r := (&LockCheck{Path: path}).Run(ctx)
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "run")
}

func TestConfigChecks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "ramwatch.yaml")

	missing := &ConfigFileCheck{ConfigPath: path}
	assert.Equal(t, StatusFail, missing.Run(ctx).Status, "explicit path that doesn't exist")

	require.NoError(t, config.Write(path, config.DefaultConfig()))
	assert.Equal(t, StatusPass, missing.Run(ctx).Status)

	valid := (&ConfigValidCheck{ConfigPath: path}).Run(ctx)
	assert.Equal(t, StatusPass, valid.Status)
	assert.Contains(t, valid.Message, "High at 50%")

	require.NoError(t, os.WriteFile(path, []byte("escalation:\n  high_threshold: 0\n"), 0o600))
	invalid := (&ConfigValidCheck{ConfigPath: path}).Run(ctx)
	assert.Equal(t, StatusFail, invalid.Status)
	assert.Contains(t, invalid.Message, "high_threshold")
	assert.NotContains(t, invalid.Message, "✗")
}

func TestConfigFileCheck_FixWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	c := &ConfigFileCheck{FixPath: filepath.Join(dir, "ramwatch.yaml")}
	r := c.Run(context.Background())
	require.Equal(t, StatusWarn, r.Status)
	require.True(t, r.Fixable)

	require.NoError(t, c.Fix())
	assert.Equal(t, StatusPass, c.Run(context.Background()).Status)
}

func TestChecks_Standard(t *testing.T) {
	checks := Checks(config.DefaultConfig(), "", stubSource{}, filepath.Join(t.TempDir(), lock.FileName))

	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"config_file", "config_valid", "memory_source", "smtp", "restart_command", "csv_log", "dashboard_addr", "instance_lock"}, names)
}

func TestChecks_RunAll(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "ramwatch.yaml")
	require.NoError(t, config.Write(path, config.DefaultConfig()))

	checks := Checks(config.DefaultConfig(), path, stubSource{usage: events.Usage{RAMPercent: 42}}, filepath.Join(dir, lock.FileName))
	results := RunAll(context.Background(), checks)

	require.Len(t, results, len(checks))
	for i, r := range results {
		assert.Equal(t, checks[i].Name(), r.Name)
		assert.Equal(t, checks[i].Category(), r.Category)
		assert.NotEmpty(t, r.Message, r.Name)
		assert.NoError(t, checks[i].Fix(), r.Name)
	}
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusPass, results[1].Status)
}

func TestConfigValidCheck_LoadFailureSaysWhy(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	r := (&ConfigValidCheck{ConfigPath: missing}).Run(context.Background())

	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "Failed to load config: ")
	assert.Contains(t, r.Message, "nope.yaml")
	assert.NotContains(t, r.Message, "✗")
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
