package alert

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/exec"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func strip(s string) string { return ansi.ReplaceAllString(s, "") }

func escalation(t *testing.T, typ events.Type, pct float64, elapsed time.Duration) events.Event {
	t.Helper()
	at := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	ev, err := events.NewEscalation(typ, "escalation", events.Escalation{
		Usage: events.Usage{
			RAMPercent: pct,
			TopProcesses: []events.Process{
				{Name: "java", Percent: 40.04},
				{Name: "chrome", Percent: 12.04},
			},
		},
		Since:   at.Add(-elapsed),
		Elapsed: elapsed,
	}, at)
	require.NoError(t, err)
	return ev
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		typ  events.Type
		want []string
	}{
		{"high", events.TypeRAMHigh, []string{"12:00:30", "HIGH RAM USAGE: 72.5%", "Top memory consumers:", "1. java: 40.0%", "2. chrome: 12.0%"}},
		{"normal", events.TypeRAMNormal, []string{"RAM back to normal: 72.5% (high for 25s)"}},
		{"email", events.TypeSendEmail, []string{"RAM high for 25s, sending alert email"}},
		{"restart", events.TypeRestart, []string{"RAM high for 25s, restart requested"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := strip(Render(escalation(t, tt.typ, 72.5, 25*time.Second)))
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestHandle_PrintsBanner(t *testing.T) {
	var out bytes.Buffer
	r := New(config.AlertConfig{}, WithOutput(&out))

	require.NoError(t, r.Handle(context.Background(), escalation(t, events.TypeRAMHigh, 72.5, 0)))

	assert.Contains(t, strip(out.String()), "HIGH RAM USAGE: 72.5%")
}

func TestHandle_Quiet(t *testing.T) {
	var out bytes.Buffer
	r := New(config.AlertConfig{Quiet: true}, WithOutput(&out))

	require.NoError(t, r.Handle(context.Background(), escalation(t, events.TypeRAMHigh, 72.5, 0)))

	assert.Empty(t, out.String())
}

func TestHandle_RunsCommandWithEnv(t *testing.T) {
	var gotCmd string
	var gotEnv []string
	run := func(_ context.Context, cmd string, env []string) (exec.Result, error) {
		gotCmd, gotEnv = cmd, env
		return exec.Result{}, nil
	}
	r := New(config.AlertConfig{Command: "notify-send ram", Quiet: true}, WithRunner(run))

	require.NoError(t, r.Handle(context.Background(), escalation(t, events.TypeSendEmail, 66.66, time.Minute)))

	assert.Equal(t, "notify-send ram", gotCmd)
	assert.Equal(t, []string{"RAMWATCH_EVENT=SEND_EMAIL", "RAMWATCH_RAM_PERCENT=66.7"}, gotEnv)
}

func TestHandle_CommandFailure(t *testing.T) {
	run := func(context.Context, string, []string) (exec.Result, error) {
		return exec.Result{ExitCode: 2, Stderr: []byte("no display")}, nil
	}
	r := New(config.AlertConfig{Command: "notify", Quiet: true}, WithRunner(run))

	err := r.Handle(context.Background(), escalation(t, events.TypeRAMHigh, 72.5, 0))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrResponder))
	assert.Contains(t, err.Error(), "no display")
}

func TestHandle_RealShell(t *testing.T) {
	dir := t.TempDir()
	cmd := `echo "$RAMWATCH_EVENT" > ` + dir + `/out`
	r := New(config.AlertConfig{Command: cmd, Quiet: true})

	require.NoError(t, r.Handle(context.Background(), escalation(t, events.TypeRAMNormal, 20, time.Second)))

	res, err := exec.Capture(context.Background(), "cat "+dir+"/out", nil)
	require.NoError(t, err)
	assert.Equal(t, "RAM_NORMAL", strings.TrimSpace(string(res.Stdout)))
}
