package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo contains information to display in the header.
type HeaderInfo struct {
	Version string // e.g. "v0.3.0"
	Tagline string // optional
	Detail  string // optional muted line, e.g. the config path
}

// HeaderWidth is the default width of the header divider
const HeaderWidth = 50

// RenderHeader renders the branded header used by run and simulate.
func RenderHeader(info HeaderInfo) string {
	titleStyle := lipgloss.NewStyle().
		Foreground(ColorNeonPink).
		Bold(true)

	versionStyle := lipgloss.NewStyle().
		Foreground(ColorNeonCyan)

	taglineStyle := lipgloss.NewStyle().
		Foreground(ColorSecondary)

	dividerStyle := lipgloss.NewStyle().
		Foreground(ColorGlassBorder)

	var output strings.Builder

	output.WriteString(titleStyle.Render("ramwatch"))
	if info.Version != "" {
		output.WriteString(" ")
		output.WriteString(versionStyle.Render(info.Version))
	}
	output.WriteString("\n")

	if info.Tagline != "" {
		output.WriteString(taglineStyle.Render(info.Tagline))
		output.WriteString("\n")
	}

	if info.Detail != "" {
		output.WriteString(MutedStyle().Render(info.Detail))
		output.WriteString("\n")
	}

	output.WriteString(dividerStyle.Render(strings.Repeat("━", HeaderWidth)))
	output.WriteString("\n")

	return output.String()
}

// PrintHeader prints the styled header to stdout.
func PrintHeader(info HeaderInfo) {
	fmt.Print(RenderHeader(info))
}
