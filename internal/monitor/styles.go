package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/s22625/sqwatch/internal/model"
)

// Color palette
var (
	colorGreen   = lipgloss.Color("42")
	colorYellow  = lipgloss.Color("214")
	colorRed     = lipgloss.Color("196")
	colorBlue    = lipgloss.Color("39")
	colorCyan    = lipgloss.Color("45")
	colorGray    = lipgloss.Color("245")
	colorMagenta = lipgloss.Color("165")
	colorWhite   = lipgloss.Color("255")
	colorBorder  = lipgloss.Color("240")
)

// Styles defines the visual styles for the dashboard
type Styles struct {
	Box       lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Section   lipgloss.Style
	Normal    lipgloss.Style
	Muted     lipgloss.Style
	Cursor    lipgloss.Style
	Match     lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Message   lipgloss.Style
	KillAsk   lipgloss.Style
	StatusBar lipgloss.Style

	StatusRunning    lipgloss.Style
	StatusPending    lipgloss.Style
	StatusCompleting lipgloss.Style
	StatusCompleted  lipgloss.Style
	StatusFailed     lipgloss.Style
	StatusUnknown    lipgloss.Style

	IndicatorExpanded  string
	IndicatorCollapsed string

	ColCheck   int
	ColID      int
	ColStatus  int
	ColElapsed int
	ColNodes   int
}

// DefaultStyles returns the default style configuration
func DefaultStyles() Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGray),

		Section: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan),

		Normal: lipgloss.NewStyle().
			Foreground(colorWhite),

		Muted: lipgloss.NewStyle().
			Foreground(colorGray),

		Cursor: lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("236")).
			Foreground(colorWhite),

		Match: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow),

		Error: lipgloss.NewStyle().
			Foreground(colorRed),

		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow),

		Message: lipgloss.NewStyle().
			Foreground(colorBlue),

		KillAsk: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed),

		StatusBar: lipgloss.NewStyle().
			Foreground(colorGray),

		StatusRunning:    lipgloss.NewStyle().Foreground(colorGreen),
		StatusPending:    lipgloss.NewStyle().Foreground(colorYellow),
		StatusCompleting: lipgloss.NewStyle().Foreground(colorCyan),
		StatusCompleted:  lipgloss.NewStyle().Foreground(colorBlue),
		StatusFailed:     lipgloss.NewStyle().Foreground(colorRed),
		StatusUnknown:    lipgloss.NewStyle().Foreground(colorMagenta),

		IndicatorExpanded:  "▾",
		IndicatorCollapsed: "▸",

		ColCheck:   3,
		ColID:      10,
		ColStatus:  11,
		ColElapsed: 11,
		ColNodes:   16,
	}
}

// StatusStyle returns the style for a job status
func (s Styles) StatusStyle(status model.Status) lipgloss.Style {
	switch status {
	case model.StatusRunning:
		return s.StatusRunning
	case model.StatusPending:
		return s.StatusPending
	case model.StatusCompleting:
		return s.StatusCompleting
	case model.StatusCompleted:
		return s.StatusCompleted
	case model.StatusFailed:
		return s.StatusFailed
	default:
		return s.StatusUnknown
	}
}
