package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// HelpBinding represents a single keyboard shortcut entry.
type HelpBinding struct {
	Key  string
	Desc string
}

// helpBindings defines all keyboard shortcuts shown in the help overlay.
var helpBindings = []HelpBinding{
	{Key: "q / Ctrl+C", Desc: "Quit"},
	{Key: "p", Desc: "Pause / resume updates"},
	{Key: "r", Desc: "Refresh now"},
	{Key: "c", Desc: "Clear the event log"},
	{Key: "Esc", Desc: "Close help"},
	{Key: "?", Desc: "Toggle this help"},
}

var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorNeonPink).
			Padding(1, 2)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorNeonPink).
			Bold(true).
			MarginBottom(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Bold(true).
			Width(14)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSecondary)
)

// renderHelp renders the help overlay, centred when the size is known.
func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(helpTitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, hb := range helpBindings {
		b.WriteString(helpKeyStyle.Render(hb.Key))
		b.WriteString(helpDescStyle.Render(hb.Desc))
		b.WriteString("\n")
	}

	box := helpBoxStyle.Render(strings.TrimRight(b.String(), "\n"))
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
