package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Electric synthwave palette shared by the CLI, the alert banner and the
// watch dashboard.
const (
	ColorNeonPink    lipgloss.Color = "#FF2E97"
	ColorNeonCyan    lipgloss.Color = "#00FFFF"
	ColorNeonPurple  lipgloss.Color = "#BF40FF"
	ColorNeonGreen   lipgloss.Color = "#39FF14"
	ColorNeonOrange  lipgloss.Color = "#FF6B00"
	ColorNeonAmber   lipgloss.Color = "#FFAA00"
	ColorDeepVoid    lipgloss.Color = "#0A0A0F"
	ColorDarkSurface lipgloss.Color = "#12121A"
	ColorGlassBorder lipgloss.Color = "#2A2A4A"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "#39FF14"
	ColorError   lipgloss.Color = "#FF0055"
	ColorWarning lipgloss.Color = "#FFAA00"
	ColorInfo    lipgloss.Color = "#00FFFF"
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "#FFFFFF"
	ColorSecondary lipgloss.Color = "#B4B4D0"
	ColorMuted     lipgloss.Color = "#6B6B8D"
)

// GradientColors run from cool to hot for multi-step graphics.
var GradientColors = []lipgloss.Color{
	ColorNeonCyan,
	ColorNeonPurple,
	ColorNeonPink,
	ColorError,
}

func SuccessStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorSuccess) }
func ErrorStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorError) }
func WarningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(ColorWarning) }
func InfoStyle() lipgloss.Style    { return lipgloss.NewStyle().Foreground(ColorInfo) }
func MutedStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(ColorMuted) }

// PrintWarning writes a styled warning line to stderr.
func PrintWarning(msg string) {
	fmt.Fprintln(os.Stderr, WarningStyle().Render(SymbolWarning+" "+msg))
}

// DisableColors switches lipgloss to plain ASCII output (for --no-color).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
