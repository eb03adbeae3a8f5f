package tui

import "github.com/charmbracelet/lipgloss"

var (
	Primary     = lipgloss.Color("#6C5CE7")
	Muted       = lipgloss.Color("#8A8F98")
	Destructive = lipgloss.Color("#E53935")
	Success     = lipgloss.Color("#43A047")
)

type Styles struct {
	Title    lipgloss.Style
	Tab      lipgloss.Style
	TabOn    lipgloss.Style
	Cursor   lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Notice   lipgloss.Style
	Modal    lipgloss.Style
	Help     lipgloss.Style
	Avatar   lipgloss.Style
	Selected lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Tab:      lipgloss.NewStyle().Padding(0, 1).Foreground(Muted),
		TabOn:    lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(Primary),
		Cursor:   lipgloss.NewStyle().Foreground(Primary).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(Muted),
		Error:    lipgloss.NewStyle().Foreground(Destructive),
		Notice:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Modal:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Primary).Padding(0, 1),
		Help:     lipgloss.NewStyle().Foreground(Muted).Italic(true),
		Avatar:   lipgloss.NewStyle().Bold(true).Foreground(Success),
		Selected: lipgloss.NewStyle().Foreground(Success),
	}
}
