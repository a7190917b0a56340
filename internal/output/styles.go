package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette. Never use inline lipgloss.Color literals.
var (
	// ColorCyan is used for identifiable nouns: module paths, symbol names.
	ColorCyan = lipgloss.Color("14")

	// ColorGreen is used for cache hits and written outputs.
	ColorGreen = lipgloss.Color("82")

	// ColorYellow is used for cache misses.
	ColorYellow = lipgloss.Color("220")
)

// Semantic styles map domain concepts to visual presentation.
var (
	// StyleNoun styles identifiable nouns (module paths, output paths).
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleHeader styles section headers such as the per-module lines of a
	// symbol table dump.
	StyleHeader = lipgloss.NewStyle().Bold(true)

	// StyleDim styles structural chrome.
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)
)

// Cache status constants.
const (
	StatusHit  = "hit"
	StatusMiss = "miss"
)

// StatusStyle returns the style for a cache status. Unknown statuses return
// an unstyled default.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case StatusHit:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case StatusMiss:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	default:
		return lipgloss.NewStyle()
	}
}

// HeaderRenderer returns a function that styles dump headers when stdout is
// a terminal and leaves them untouched otherwise, so piped output stays
// byte-exact.
func HeaderRenderer() func(string) string {
	if !IsStdoutTTY() {
		return nil
	}
	return func(s string) string { return StyleHeader.Render(s) }
}
