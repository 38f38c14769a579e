package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	barFilled = '█'
	barEmpty  = '░'
)

// RenderBar draws a RAM gauge. Output format: [████████░░░░]  67%
// percent is clamped to 0-100 and the bar is coloured by its level.
func RenderBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}

	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}

	filled := int((percent / 100.0) * float64(width))

	var sb strings.Builder
	sb.Grow(width*3 + 2)
	sb.WriteRune('[')
	sb.WriteString(strings.Repeat(string(barFilled), filled))
	sb.WriteString(strings.Repeat(string(barEmpty), width-filled))
	sb.WriteRune(']')

	style := lipgloss.NewStyle().Foreground(PercentColor(percent))
	return style.Render(sb.String()) + fmt.Sprintf(" %3.0f%%", percent)
}
