package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/ramwatch/internal/ui"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary).
			Background(ui.ColorDarkSurface).
			Bold(true).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorNeonPink).
			Bold(true)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorGlassBorder).
			Padding(0, 1).
			MarginBottom(1)

	// AlertCardStyle frames the gauge while a breach streak is open.
	AlertCardStyle = CardStyle.
			BorderForeground(ui.ColorError)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	GraphStyle = lipgloss.NewStyle().
			Foreground(ui.ColorNeonCyan)

	PausedStyle = lipgloss.NewStyle().
			Foreground(ui.ColorNeonAmber).
			Bold(true)
)

// eventStyle colours an escalation in the event log.
func eventStyle(t string) lipgloss.Style {
	switch t {
	case "RAM_HIGH":
		return lipgloss.NewStyle().Foreground(ui.ColorNeonOrange).Bold(true)
	case "SEND_EMAIL":
		return lipgloss.NewStyle().Foreground(ui.ColorWarning)
	case "RESTART":
		return lipgloss.NewStyle().Foreground(ui.ColorError).Bold(true)
	case "RAM_NORMAL":
		return lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	}
	return ValueStyle
}

// levelStyle colours text by RAM level.
func levelStyle(l ui.Level) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(l.Color()).Bold(l >= ui.LevelHigh)
}
