package ui

import "github.com/charmbracelet/lipgloss"

// Level buckets a RAM percentage the way the status icon colours it.
type Level int

const (
	LevelLow Level = iota
	LevelElevated
	LevelHigh
	LevelCritical
)

// Level boundaries, in percent.
const (
	ElevatedAt = 30.0
	HighAt     = 40.0
	CriticalAt = 50.0
)

// LevelFor returns the level of a RAM percentage.
func LevelFor(percent float64) Level {
	switch {
	case percent >= CriticalAt:
		return LevelCritical
	case percent >= HighAt:
		return LevelHigh
	case percent >= ElevatedAt:
		return LevelElevated
	default:
		return LevelLow
	}
}

// Color is the display colour for the level: green, yellow, orange, red.
func (l Level) Color() lipgloss.Color {
	switch l {
	case LevelCritical:
		return ColorError
	case LevelHigh:
		return ColorNeonOrange
	case LevelElevated:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "critical"
	case LevelHigh:
		return "high"
	case LevelElevated:
		return "elevated"
	default:
		return "low"
	}
}

// PercentColor is shorthand for LevelFor(percent).Color().
func PercentColor(percent float64) lipgloss.Color {
	return LevelFor(percent).Color()
}
