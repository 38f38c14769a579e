package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters representing 8 vertical levels (lowest to highest).
const sparklineBlocks = "▁▂▃▄▅▆▇█"

var sparklineBlockRunes = []rune(sparklineBlocks)

// RenderSparkline draws the most recent width values as block characters.
// Values are plotted on a fixed 0-100 scale so a flat line at 45% sits
// visibly higher than one at 10%. The line is coloured by the level of the
// last value.
func RenderSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}

	if len(data) > width {
		data = data[len(data)-width:]
	}

	var sb strings.Builder
	sb.Grow(len(data) * 3)

	numLevels := len(sparklineBlockRunes)
	for _, v := range data {
		level := int(v / 100 * float64(numLevels-1))
		if level < 0 {
			level = 0
		} else if level >= numLevels {
			level = numLevels - 1
		}
		sb.WriteRune(sparklineBlockRunes[level])
	}

	last := data[len(data)-1]
	return lipgloss.NewStyle().Foreground(PercentColor(last)).Render(sb.String())
}
