package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
)

// DefaultRefresh is how often the model re-reads the policy status.
const DefaultRefresh = time.Second

// maxRecent bounds the event log.
const maxRecent = 8

// StatusFunc reports the current policy state.
type StatusFunc func() escalation.Status

// Model is the Bubble Tea model for the watch dashboard.
type Model struct {
	status   StatusFunc
	feed     <-chan events.Event
	cfg      escalation.Config
	interval time.Duration
	now      func() time.Time

	history *History
	gauge   progress.Model
	st      escalation.Status
	recent  []events.Event

	width      int
	height     int
	paused     bool
	showHelp   bool
	quitting   bool
	feedClosed bool
}

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// refreshMsg asks for an immediate refresh without rescheduling the tick.
type refreshMsg struct{}

// escalationMsg carries one event from the feed.
type escalationMsg struct {
	ev events.Event
}

// feedClosedMsg means the feed will deliver nothing more.
type feedClosedMsg struct{}

// NewModel creates a dashboard reading status every interval and
// escalations from feed. A nil feed shows no event log updates.
func NewModel(status StatusFunc, feed <-chan events.Event, cfg escalation.Config, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	return Model{
		status:   status,
		feed:     feed,
		cfg:      cfg,
		interval: interval,
		now:      time.Now,
		history:  NewHistory(DefaultHistorySize),
		gauge: progress.New(
			progress.WithoutPercentage(),
			progress.WithWidth(40),
		),
		feedClosed: feed == nil,
	}
}

// Init refreshes once, starts the tick timer and begins draining the feed.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return refreshMsg{} },
		m.tickCmd(),
		m.waitForEvent(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.gauge.Width = gaugeWidth(msg.Width)

	case tickMsg:
		if !m.paused {
			m.refresh()
		}
		return m, m.tickCmd()

	case refreshMsg:
		m.refresh()

	case escalationMsg:
		m.record(msg.ev)
		if !m.paused {
			m.refresh()
		}
		return m, m.waitForEvent()

	case feedClosedMsg:
		m.feedClosed = true
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderDashboard()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks on the feed in a command goroutine.
func (m Model) waitForEvent() tea.Cmd {
	if m.feedClosed {
		return nil
	}
	feed := m.feed
	return func() tea.Msg {
		ev, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return escalationMsg{ev: ev}
	}
}

// refresh reads the policy status and records a new reading if there is one.
func (m *Model) refresh() {
	st := m.status()
	if st.LatestAt.After(m.st.LatestAt) {
		m.history.Push(st.Latest.RAMPercent)
	}
	m.st = st
}

func (m *Model) record(ev events.Event) {
	m.recent = append(m.recent, ev)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

// Status returns the last status the model read.
func (m Model) Status() escalation.Status {
	return m.st
}

// Recent returns the event log, oldest first.
func (m Model) Recent() []events.Event {
	return append([]events.Event(nil), m.recent...)
}

// Paused reports whether refreshes are suspended.
func (m Model) Paused() bool {
	return m.paused
}

// gaugeWidth sizes the gauge to the terminal, leaving room for labels.
func gaugeWidth(termWidth int) int {
	w := termWidth - 30
	if w < 10 {
		return 10
	}
	if w > 60 {
		return 60
	}
	return w
}
