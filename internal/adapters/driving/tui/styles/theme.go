// Package styles holds the colour palette and lipgloss styles of the chat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette is the set of colours the chat view is drawn with.
type Palette struct {
	Accent    lipgloss.Color // titles and assistant turns
	Highlight lipgloss.Color // user turns and headings
	Text      lipgloss.Color
	Dim       lipgloss.Color // hints, sources and the status bar
	Good      lipgloss.Color
	Caution   lipgloss.Color
	Bad       lipgloss.Color
	Frame     lipgloss.Color // input border
	Bar       lipgloss.Color // status bar background
}

// DefaultPalette returns the dark palette used when nothing else is configured.
func DefaultPalette() *Palette {
	return &Palette{
		Accent:    lipgloss.Color("#7C3AED"),
		Highlight: lipgloss.Color("#06B6D4"),
		Text:      lipgloss.Color("#CDD6F4"),
		Dim:       lipgloss.Color("#6C7086"),
		Good:      lipgloss.Color("#A6E3A1"),
		Caution:   lipgloss.Color("#F9E2AF"),
		Bad:       lipgloss.Color("#F38BA8"),
		Frame:     lipgloss.Color("#45475A"),
		Bar:       lipgloss.Color("#181825"),
	}
}

// Styles are the rendered styles derived from a Palette.
type Styles struct {
	palette *Palette

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Help     lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style

	// Conversation roles and the cited documents under an answer.
	User      lipgloss.Style
	Assistant lipgloss.Style
	Source    lipgloss.Style
}

// NewStyles builds styles from p, falling back to DefaultPalette when p is nil.
func NewStyles(p *Palette) *Styles {
	if p == nil {
		p = DefaultPalette()
	}

	bold := lipgloss.NewStyle().Bold(true)
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Styles{
		palette: p,

		Title:    bold.Foreground(p.Accent),
		Subtitle: bold.Foreground(p.Highlight),
		Normal:   fg(p.Text),
		Muted:    fg(p.Dim),
		Selected: bold.Foreground(p.Text).Background(p.Accent),
		Help:     fg(p.Dim),

		Success: fg(p.Good),
		Warning: fg(p.Caution),
		Error:   fg(p.Bad),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.Frame).
			Padding(0, 1),
		StatusBar: fg(p.Dim).Background(p.Bar).Padding(0, 1),

		User:      bold.Foreground(p.Highlight),
		Assistant: bold.Foreground(p.Accent),
		Source:    fg(p.Dim).Italic(true),
	}
}

// DefaultStyles returns styles for the default palette.
func DefaultStyles() *Styles {
	return NewStyles(DefaultPalette())
}

// Palette returns the colours these styles were built from.
func (s *Styles) Palette() *Palette {
	return s.palette
}
