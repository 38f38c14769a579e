package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// sparklineWidth is the sparkline width when the terminal size is unknown.
const sparklineWidth = 40

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderGauge())
	b.WriteString("\n")
	b.WriteString(m.renderProcesses())
	b.WriteString("\n")
	b.WriteString(m.renderEvents())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title, threshold and freshness of the reading.
func (m Model) renderHeader() string {
	updated := "waiting for first sample"
	if !m.st.LatestAt.IsZero() {
		updated = "updated " + humanize.RelTime(m.st.LatestAt, m.now(), "ago", "from now")
	}

	title := TitleStyle.Render("ramwatch")
	stats := LabelStyle.Render(fmt.Sprintf(" | threshold %.0f%% | %s", m.cfg.HighThreshold, updated))
	header := HeaderStyle.Render(title + stats)
	if m.paused {
		header += " " + PausedStyle.Render("PAUSED")
	}
	return header
}

// renderGauge renders the RAM gauge, breach state and sparkline.
func (m Model) renderGauge() string {
	pct := m.st.Latest.RAMPercent
	level := ui.LevelFor(pct)

	gauge := m.gauge
	gauge.FullColor = string(level.Color())

	var b strings.Builder
	b.WriteString(LabelStyle.Render("RAM  "))
	b.WriteString(gauge.ViewAs(pct / 100))
	b.WriteString(ValueStyle.Render(fmt.Sprintf("  %5.1f%%  ", pct)))
	b.WriteString(levelStyle(level).Render(level.String()))
	b.WriteString("\n")
	b.WriteString(m.renderState())
	b.WriteString("\n\n")

	width := sparklineWidth
	if m.width > 0 {
		width = m.width - 24
		if width < 10 {
			width = 10
		}
	}
	spark := ui.RenderSparkline(m.history.Last(width), width)
	if spark == "" {
		spark = MutedStyle.Render("no history yet")
	}
	b.WriteString(LabelStyle.Render("history  "))
	b.WriteString(spark)
	if m.history.Count() > 0 {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  peak %.1f%%", m.history.Peak())))
	}

	style := CardStyle
	if m.st.High {
		style = AlertCardStyle
	}
	return style.Render(b.String())
}

// renderState describes the breach streak and the escalations still to come.
func (m Model) renderState() string {
	if m.st.LatestAt.IsZero() {
		return MutedStyle.Render(ui.SymbolPending + " waiting for first sample")
	}
	if !m.st.High {
		return ui.SuccessStyle().Render(ui.SymbolSuccess + " RAM normal")
	}

	elapsed := m.now().Sub(m.st.Since)
	if elapsed < 0 {
		elapsed = 0
	}
	parts := []string{
		ui.ErrorStyle().Render(fmt.Sprintf("%s HIGH RAM for %s", ui.SymbolWarning, elapsed.Round(time.Second))),
		m.stepState("email", m.st.EmailSent, m.cfg.EmailDelay-elapsed),
		m.stepState("restart", m.st.RestartTriggered, m.cfg.RestartDelay-elapsed),
	}
	return strings.Join(parts, MutedStyle.Render("  ·  "))
}

func (m Model) stepState(name string, done bool, remaining time.Duration) string {
	switch {
	case done:
		return ui.WarningStyle().Render(name + " " + ui.SymbolComplete)
	case remaining <= 0:
		return ui.WarningStyle().Render(name + " due")
	default:
		return LabelStyle.Render(fmt.Sprintf("%s in %s", name, remaining.Round(time.Second)))
	}
}

// renderProcesses lists the top memory consumers from the latest sample.
func (m Model) renderProcesses() string {
	var b strings.Builder
	b.WriteString(LabelStyle.Render("top processes"))
	b.WriteString("\n")

	procs := m.st.Latest.TopProcesses
	if len(procs) == 0 {
		b.WriteString(MutedStyle.Render("  none reported"))
		return CardStyle.Render(b.String())
	}
	for i, p := range procs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  %-20s %s", truncate(p.Name, 20), ui.RenderBar(p.Percent, 16))
	}
	return CardStyle.Render(b.String())
}

// renderEvents shows recent escalations, newest first.
func (m Model) renderEvents() string {
	var b strings.Builder
	b.WriteString(LabelStyle.Render("events"))
	if len(m.recent) == 0 {
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render("  no escalations"))
		return CardStyle.Render(b.String())
	}
	for i := len(m.recent) - 1; i >= 0; i-- {
		b.WriteString("\n")
		b.WriteString(renderEvent(m.recent[i]))
	}
	return CardStyle.Render(b.String())
}

func renderEvent(ev events.Event) string {
	return fmt.Sprintf("  %s  %s  %5.1f%%",
		MutedStyle.Render(ev.Timestamp().Format(time.TimeOnly)),
		eventStyle(string(ev.Type())).Render(fmt.Sprintf("%-10s", ev.Type())),
		ev.RAMPercent())
}

// renderFooter renders the key hints.
func (m Model) renderFooter() string {
	hints := "q quit · p pause · c clear · ? help"
	if m.feedClosed && m.feed != nil {
		hints += " · event stream closed"
	}
	return FooterStyle.Render(hints)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
