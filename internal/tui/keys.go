package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the log desk TUI.
type KeyMap struct {
	// Cursor movement on the role list and the log table.
	Up   key.Binding
	Down key.Binding

	// Paging.
	PrevPage key.Binding
	NextPage key.Binding

	// Screens.
	Open key.Binding // Role list: select role. Table: open detail.
	Back key.Binding // Detail: back to table.

	// Filters (operator and admin only).
	FilterActivate key.Binding
	DateActivate   key.Binding
	FilterClear    key.Binding

	// Mutations (admin only).
	ToggleStatus key.Binding

	Logout key.Binding
	Quit   key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("h", "left", "pgup"),
		key.WithHelp("h/←", "prev page"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("l", "right", "pgdown"),
		key.WithHelp("l/→", "next page"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("Esc", "back"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	DateActivate: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "date"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "clear"),
	),
	ToggleStatus: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "toggle resolved"),
	),
	Logout: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "logout"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
