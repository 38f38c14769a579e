package monitor

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func strip(s string) string { return ansi.ReplaceAllString(s, "") }

// fakeStatus is a mutable StatusFunc.
type fakeStatus struct {
	mu sync.Mutex
	st escalation.Status
}

func (f *fakeStatus) set(st escalation.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st = st
}

func (f *fakeStatus) get() escalation.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func newTestModel(fs *fakeStatus, feed <-chan events.Event) Model {
	m := NewModel(fs.get, feed, escalation.DefaultConfig(), time.Second)
	m.now = func() time.Time { return t0.Add(25 * time.Second) }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	if s == "esc" {
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func escalationEvent(t *testing.T, typ events.Type, pct float64) events.Event {
	t.Helper()
	ev, err := events.NewEscalation(typ, "escalation", events.Escalation{
		Usage: events.Usage{RAMPercent: pct},
		Since: t0,
	}, t0)
	require.NoError(t, err)
	return ev
}

func TestModel_TickRecordsNewReadings(t *testing.T) {
	fs := &fakeStatus{}
	m := newTestModel(fs, nil)

	m, cmd := update(t, m, tickMsg(t0))
	assert.NotNil(t, cmd, "tick reschedules itself")
	assert.Equal(t, 0, m.history.Count(), "no reading yet")

	fs.set(escalation.Status{Latest: events.Usage{RAMPercent: 42}, LatestAt: t0})
	m, _ = update(t, m, tickMsg(t0))
	m, _ = update(t, m, tickMsg(t0))
	assert.Equal(t, []float64{42}, m.history.Last(10), "same reading is recorded once")

	fs.set(escalation.Status{Latest: events.Usage{RAMPercent: 55}, LatestAt: t0.Add(10 * time.Second)})
	m, _ = update(t, m, tickMsg(t0))
	assert.Equal(t, []float64{42, 55}, m.history.Last(10))
	assert.Equal(t, 55.0, m.Status().Latest.RAMPercent)
}

func TestModel_PauseSkipsRefresh(t *testing.T) {
	fs := &fakeStatus{}
	m := newTestModel(fs, nil)

	m, _ = update(t, m, key("p"))
	require.True(t, m.Paused())

	fs.set(escalation.Status{Latest: events.Usage{RAMPercent: 42}, LatestAt: t0})
	m, _ = update(t, m, tickMsg(t0))
	assert.Equal(t, 0, m.history.Count())

	m, _ = update(t, m, key("p"))
	assert.False(t, m.Paused())
	assert.Equal(t, 1, m.history.Count(), "resuming refreshes at once")
}

func TestModel_EscalationsFromFeed(t *testing.T) {
	fs := &fakeStatus{}
	feed := NewFeed()
	m := newTestModel(fs, feed.Events())

	require.NoError(t, feed.Handle(context.Background(), escalationEvent(t, events.TypeRAMHigh, 70)))
	msg := m.waitForEvent()()
	require.IsType(t, escalationMsg{}, msg)

	m, cmd := update(t, m, msg)
	assert.NotNil(t, cmd, "keeps draining the feed")
	require.Len(t, m.Recent(), 1)
	assert.Equal(t, events.TypeRAMHigh, m.Recent()[0].Type())

	feed.Close()
	msg = m.waitForEvent()()
	assert.Equal(t, feedClosedMsg{}, msg)
	m, _ = update(t, m, msg)
	assert.Nil(t, m.waitForEvent())
}

func TestModel_RecentIsBounded(t *testing.T) {
	m := newTestModel(&fakeStatus{}, nil)
	for i := 0; i < maxRecent+3; i++ {
		m, _ = update(t, m, escalationMsg{ev: escalationEvent(t, events.TypeRAMHigh, float64(50+i))})
	}

	recent := m.Recent()
	require.Len(t, recent, maxRecent)
	assert.Equal(t, float64(50+3), recent[0].RAMPercent())

	m, _ = update(t, m, key("c"))
	assert.Empty(t, m.Recent())
}

func TestModel_Keys(t *testing.T) {
	m := newTestModel(&fakeStatus{}, nil)

	m, _ = update(t, m, key("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, strip(m.View()), "Keyboard Shortcuts")

	m, _ = update(t, m, key("esc"))
	assert.False(t, m.showHelp)

	m, cmd := update(t, m, key("q"))
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestModel_WindowSize(t *testing.T) {
	m := newTestModel(&fakeStatus{}, nil)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 50})
	assert.Equal(t, 60, m.gauge.Width)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 10})
	assert.Equal(t, 10, m.gauge.Width)
}

func TestFeed_DropsWhenFull(t *testing.T) {
	feed := NewFeed()
	ev := escalationEvent(t, events.TypeRAMNormal, 20)
	for i := 0; i < feedBuffer+2; i++ {
		require.NoError(t, feed.Handle(context.Background(), ev))
	}
	assert.Equal(t, 2, feed.Dropped())

	feed.Close()
	feed.Close()
	require.NoError(t, feed.Handle(context.Background(), ev), "after close events are ignored")
}
