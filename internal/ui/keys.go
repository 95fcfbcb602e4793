package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the popup.
type keyMap struct {
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Refresh    key.Binding

	Up   key.Binding
	Down key.Binding

	Share      key.Binding
	EditURL    key.Binding
	SetDefault key.Binding

	// URL input
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh devices"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),

		Share: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Send URL"),
		),
		EditURL: key.NewBinding(
			key.WithKeys("u", "/"),
			key.WithHelp("u", "Edit URL"),
		),
		SetDefault: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Make default"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Done editing"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Share, k.EditURL, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Share},
		{k.EditURL, k.SetDefault, k.Refresh},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
