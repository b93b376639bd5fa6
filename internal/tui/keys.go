package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard key bindings
type KeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
	Escape    key.Binding

	SelectFile key.Binding
	RemoveFile key.Binding
	Upload     key.Binding
	Refresh    key.Binding
	Report     key.Binding
	Chart      key.Binding
	Trends     key.Binding
	Logout     key.Binding

	Quit      key.Binding
	Interrupt key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		SelectFile: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "choose csv"),
		),
		RemoveFile: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove file"),
		),
		Upload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "upload"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Report: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pdf report"),
		),
		Chart: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "save chart"),
		),
		Trends: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "save trends"),
		),
		Logout: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "logout"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// DashboardHelp lists the bindings shown in the footer.
func (k KeyMap) DashboardHelp() []key.Binding {
	return []key.Binding{k.SelectFile, k.Upload, k.Refresh, k.Report, k.Chart, k.Trends, k.Logout, k.Quit}
}
