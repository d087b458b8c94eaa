// Package styles provides shared lipgloss styles for gaffer's CLI output.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette defines the semantic colors used by command output.
type Palette struct {
	Primary    lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultPalette is the Tokyo Night palette.
var DefaultPalette = Palette{
	Primary:    lipgloss.Color("#7aa2f7"),
	Foreground: lipgloss.Color("#c0caf5"),
	Muted:      lipgloss.Color("#565f89"),
	Success:    lipgloss.Color("#9ece6a"),
	Warning:    lipgloss.Color("#e0af68"),
	Error:      lipgloss.Color("#f7768e"),
}

// Style exports.
var (
	TextPrimaryBoldStyle    lipgloss.Style
	TextForegroundBoldStyle lipgloss.Style
	TextMutedStyle          lipgloss.Style
	TextSuccessStyle        lipgloss.Style
	TextWarningStyle        lipgloss.Style
	TextErrorStyle          lipgloss.Style
)

// SetTheme rebuilds all exported styles from the given palette.
func SetTheme(p Palette) {
	TextPrimaryBoldStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)
	TextForegroundBoldStyle = lipgloss.NewStyle().
		Foreground(p.Foreground).
		Bold(true)
	TextMutedStyle = lipgloss.NewStyle().
		Foreground(p.Muted)
	TextSuccessStyle = lipgloss.NewStyle().
		Foreground(p.Success)
	TextWarningStyle = lipgloss.NewStyle().
		Foreground(p.Warning)
	TextErrorStyle = lipgloss.NewStyle().
		Foreground(p.Error)
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(DefaultPalette)
}
