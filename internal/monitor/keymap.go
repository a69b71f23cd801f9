package monitor

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard key bindings.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Toggle      key.Binding
	SelectAll   key.Binding
	ClearAll    key.Binding
	Filter      key.Binding
	BulkToggle  key.Binding
	Scheduled   key.Binding
	Historical  key.Binding
	Kill        key.Binding
	KillBatch   key.Binding
	Confirm     key.Binding
	Cancel      key.Binding
	Inspect     key.Binding
	Attach      key.Binding
	Ssh         key.Binding
	Refresh     key.Binding
	Help        key.Binding
	Quit        key.Binding
	FilterApply key.Binding
	FilterAbort key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "select"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all visible"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "clear selection"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		BulkToggle: key.NewBinding(
			key.WithKeys("*"),
			key.WithHelp("*", "toggle matches"),
		),
		Scheduled: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "scheduled"),
		),
		Historical: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "history"),
		),
		Kill: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "kill"),
		),
		KillBatch: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "kill selected"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "cancel"),
		),
		Inspect: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "inspect"),
		),
		Attach: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "attach"),
		),
		Ssh: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "ssh"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		FilterApply: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "keep filter"),
		),
		FilterAbort: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "restore"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Filter, k.BulkToggle, k.Kill, k.KillBatch, k.Attach, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Scheduled, k.Historical, k.Refresh},
		{k.Toggle, k.SelectAll, k.ClearAll, k.Filter, k.BulkToggle},
		{k.Kill, k.KillBatch, k.Confirm, k.Cancel},
		{k.Inspect, k.Attach, k.Ssh, k.Help, k.Quit},
	}
}

type filterKeyMap struct {
	KeyMap
}

func (k filterKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.FilterApply, k.FilterAbort}
}

func (k filterKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
