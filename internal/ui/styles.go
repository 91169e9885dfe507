package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ApplyColorMode sets the global color profile from the configured
// output.color mode: "always" forces color, "never" strips it, and
// "auto" detects what the terminal supports.
func ApplyColorMode(mode string) {
	switch mode {
	case "always":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		lipgloss.SetColorProfile(termenv.ColorProfile())
	}
}

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	infoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// DisableColors switches all styled output to plain text.
func DisableColors() {
	ApplyColorMode("never")
}

// Success renders text in the success color.
func Success(s string) string { return successStyle.Render(s) }

// Error renders text in the error color.
func Error(s string) string { return errorStyle.Render(s) }

// Warning renders text in the warning color.
func Warning(s string) string { return warningStyle.Render(s) }

// Info renders text in the info color.
func Info(s string) string { return infoStyle.Render(s) }

// Muted renders text in the muted color.
func Muted(s string) string { return mutedStyle.Render(s) }

// Bold renders text bold.
func Bold(s string) string { return boldStyle.Render(s) }

// SuccessStyle returns the style used for success text.
func SuccessStyle() lipgloss.Style { return successStyle }

// ErrorStyle returns the style used for error text.
func ErrorStyle() lipgloss.Style { return errorStyle }

// WarningStyle returns the style used for warning text.
func WarningStyle() lipgloss.Style { return warningStyle }

// InfoStyle returns the style used for informational text.
func InfoStyle() lipgloss.Style { return infoStyle }

// MutedStyle returns the style used for secondary text.
func MutedStyle() lipgloss.Style { return mutedStyle }

// PrintWarning writes a styled warning line to stderr.
func PrintWarning(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warningStyle.Render(SymbolWarning), msg)
}
