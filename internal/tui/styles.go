package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent  = lipgloss.Color("#4F46E5")
	ColorText    = lipgloss.Color("#E5E7EB")
	ColorMuted   = lipgloss.Color("#9CA3AF")
	ColorBorder  = lipgloss.Color("#374151")
	ColorSuccess = lipgloss.Color("#22C55E")
	ColorError   = lipgloss.Color("#EF4444")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorBar     = lipgloss.Color("#60A5FA")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			PaddingLeft(1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	KPILabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	KPIValueStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	BarStyle = lipgloss.NewStyle().
			Foreground(ColorBar)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(ColorAccent)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	BusyStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)
)
