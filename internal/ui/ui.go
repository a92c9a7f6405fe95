// Package ui provides terminal styling and output helpers for the ams CLI.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"ams/internal/issuestorage"
)

// Palette shared across commands.
var (
	ColorAccent = lipgloss.Color("14")  // cyan
	ColorPass   = lipgloss.Color("10")  // green
	ColorWarn   = lipgloss.Color("214") // orange
	ColorBlock  = lipgloss.Color("9")   // red
	ColorMuted  = lipgloss.Color("8")   // grey
)

// Styler renders strings with lipgloss styles when enabled and returns them
// unchanged otherwise, so piped and --json output stays machine-readable.
type Styler struct {
	Enabled bool
}

// NewStyler resolves the color preference ("auto", "always", "never")
// against the environment and the given TTY state.
func NewStyler(pref string, tty bool) Styler {
	switch pref {
	case "always":
		return Styler{Enabled: true}
	case "never":
		return Styler{Enabled: false}
	}
	return Styler{Enabled: ShouldUseColor(tty)}
}

// ShouldUseColor determines if ANSI color codes should be used.
// Respects standard conventions:
//   - NO_COLOR: https://no-color.org/ - disables color if set
//   - CLICOLOR=0: disables color
//   - CLICOLOR_FORCE: forces color even in non-TTY
//   - Falls back to TTY detection
func ShouldUseColor(tty bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	return tty
}

// IsTerminal returns true if the writer is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var (
	idStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	panelBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (s Styler) render(style lipgloss.Style, text string) string {
	if !s.Enabled {
		return text
	}
	return style.Render(text)
}

// ID renders an issue identifier.
func (s Styler) ID(text string) string { return s.render(idStyle, text) }

// Title renders an issue title.
func (s Styler) Title(text string) string { return s.render(titleStyle, text) }

// Muted renders secondary detail text.
func (s Styler) Muted(text string) string { return s.render(mutedStyle, text) }

// Warn renders warning text.
func (s Styler) Warn(text string) string { return s.render(warnStyle, text) }

// Pass renders success text.
func (s Styler) Pass(text string) string { return s.render(passStyle, text) }

// Panel wraps text in a rounded border for show-style output.
func (s Styler) Panel(text string) string {
	if !s.Enabled {
		return text
	}
	return panelBorder.Render(text)
}

// Status renders a status value in its conventional color.
func (s Styler) Status(status issuestorage.Status) string {
	if !s.Enabled {
		return string(status)
	}
	switch status {
	case issuestorage.StatusDone:
		return passStyle.Render(string(status))
	case issuestorage.StatusBlocked:
		return lipgloss.NewStyle().Foreground(ColorBlock).Render(string(status))
	case issuestorage.StatusInProgress:
		return warnStyle.Render(string(status))
	default:
		return lipgloss.NewStyle().Foreground(ColorAccent).Render(string(status))
	}
}
