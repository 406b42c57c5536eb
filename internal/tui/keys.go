package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause key.Binding
	Restart   key.Binding
	Previous  key.Binding
	Next      key.Binding
	Jump      key.Binding
	Quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		PlayPause: key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		Restart:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		Previous:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous")),
		Next:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next")),
		Jump:      key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "jump")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.PlayPause, k.Restart, k.Previous, k.Next, k.Jump, k.Quit}
}
