// Package tui: keyboard binding configuration.
package tui

import "github.com/charmbracelet/bubbles/key"

// Keymap defines all keyboard shortcuts for the browser.
type Keymap struct {
	Quit    key.Binding
	Open    key.Binding
	Back    key.Binding
	Delete  key.Binding
	Refresh key.Binding
}

// defaultKeymap returns the default key bindings.
func defaultKeymap() Keymap {
	return Keymap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "stages")),
		Back:    key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "forget run")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

// shortHelp lists the bindings shown in the footer.
func (k Keymap) shortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Back, k.Delete, k.Refresh, k.Quit}
}
