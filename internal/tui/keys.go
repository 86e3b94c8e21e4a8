package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard bindings for the buzz dashboard.
type KeyMap struct {
	// Permission
	Request key.Binding
	Allow   key.Binding
	Block   key.Binding
	Dismiss key.Binding

	// Vibration pattern selector
	PatternPrev key.Binding
	PatternNext key.Binding
	Select      key.Binding

	// Log scrolling
	Up   key.Binding
	Down key.Binding
	Top  key.Binding

	// General
	Help key.Binding
	Diag key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Request: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "enable notifications"),
		),
		Allow: key.NewBinding(
			key.WithKeys("a", "y"),
			key.WithHelp("a", "allow"),
		),
		Block: key.NewBinding(
			key.WithKeys("b", "n"),
			key.WithHelp("b", "block"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss"),
		),
		PatternPrev: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "previous pattern"),
		),
		PatternNext: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next pattern"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "use pattern"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "newest"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Diag: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "diagnostics"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
