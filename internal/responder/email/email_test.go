package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

type fakeSMTP struct {
	calls []sent
	err   error
}

func (f *fakeSMTP) send(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
	f.calls = append(f.calls, sent{addr: addr, from: from, to: to, msg: string(msg)})
	return f.err
}

func sendEmailEvent(t *testing.T) events.Event {
	t.Helper()
	at := time.Date(2026, 3, 1, 12, 0, 20, 0, time.UTC)
	ev, err := events.NewEscalation(events.TypeSendEmail, "escalation", events.Escalation{
		Usage: events.Usage{
			RAMPercent:   81.24,
			TopProcesses: []events.Process{{Name: "java", Percent: 50.04}, {Name: "chrome", Percent: 10.04}},
		},
		Since:   at.Add(-20 * time.Second),
		Elapsed: 20 * time.Second,
	}, at)
	require.NoError(t, err)
	return ev
}

func testConfig() config.EmailConfig {
	return config.EmailConfig{
		Enabled:  true,
		Host:     "smtp.example.com",
		Port:     587,
		Username: "ops@example.com",
		Password: "secret",
	}
}

func TestHandle_Sends(t *testing.T) {
	fake := &fakeSMTP{}
	cfg := testConfig()
	cfg.To = []string{"oncall@example.com"}
	r := New(cfg, WithSender(fake.send))

	require.NoError(t, r.Handle(context.Background(), sendEmailEvent(t)))

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "smtp.example.com:587", call.addr)
	assert.Equal(t, "ops@example.com", call.from)
	assert.Equal(t, []string{"oncall@example.com"}, call.to)
	assert.Contains(t, call.msg, "Subject: HIGH RAM ALERT: 81.2%\r\n")
	assert.Contains(t, call.msg, "To: oncall@example.com\r\n")
	assert.Contains(t, call.msg, "Current RAM Usage: 81.2%")
	assert.Contains(t, call.msg, "  1. java: 50.0%\r\n  2. chrome: 10.0%\r\n")
	assert.Contains(t, call.msg, "20 seconds ago")
}

func TestHandle_DefaultsRecipientToSender(t *testing.T) {
	fake := &fakeSMTP{}
	r := New(testConfig(), WithSender(fake.send))

	require.NoError(t, r.Handle(context.Background(), sendEmailEvent(t)))

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"ops@example.com"}, fake.calls[0].to)
}

func TestHandle_MissingCredentialsSkips(t *testing.T) {
	fake := &fakeSMTP{}
	log := logger.NewBufferLogger()
	cfg := testConfig()
	cfg.Password = ""
	r := New(cfg, WithSender(fake.send), WithLogger(log))

	require.NoError(t, r.Handle(context.Background(), sendEmailEvent(t)))

	assert.Empty(t, fake.calls)
	assert.True(t, log.Contains("error", "credentials not set"))
}

func TestHandle_SendFailure(t *testing.T) {
	fake := &fakeSMTP{err: assert.AnError}
	r := New(testConfig(), WithSender(fake.send))

	err := r.Handle(context.Background(), sendEmailEvent(t))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrResponder))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	fake := &fakeSMTP{}
	r := New(testConfig(), WithSender(fake.send))
	ev, err := events.NewEscalation(events.TypeRAMHigh, "escalation", events.Escalation{Usage: events.Usage{RAMPercent: 60}}, time.Now())
	require.NoError(t, err)

	require.NoError(t, r.Handle(context.Background(), ev))
	assert.Empty(t, fake.calls)
}

func TestBody_NoProcesses(t *testing.T) {
	ev, err := events.NewEscalation(events.TypeSendEmail, "escalation", events.Escalation{Usage: events.Usage{RAMPercent: 60}}, time.Now())
	require.NoError(t, err)

	body := Body(ev)
	assert.Contains(t, body, "Current RAM Usage: 60.0%")
	assert.False(t, strings.Contains(body, "Top RAM-Consuming"))
}
