package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left       key.Binding
	Right      key.Binding
	Up         key.Binding
	Down       key.Binding
	NextWord   key.Binding
	PrevWord   key.Binding
	NextUnsure key.Binding
	Select     key.Binding
	Edit       key.Binding
	Save       key.Binding
	Recognize  key.Binding
	Stop       key.Binding
	Raise      key.Binding
	Lower      key.Binding
	Scroll     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		NextWord:   key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "next word")),
		PrevWord:   key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "previous word")),
		NextUnsure: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next uncertain")),
		Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "suggestions")),
		Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "correct")),
		Save:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Recognize:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recognize")),
		Stop:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Raise:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "threshold up")),
		Lower:      key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "threshold down")),
		Scroll:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-scroll")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Edit, k.Recognize, k.Stop, k.Save, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.NextWord, k.PrevWord, k.NextUnsure, k.Select, k.Edit},
		{k.Recognize, k.Stop, k.Raise, k.Lower},
		{k.Save, k.Scroll, k.Help, k.Quit},
	}
}
