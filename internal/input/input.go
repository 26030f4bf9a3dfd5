// Package input maps key presses to pager actions.
package input

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action is what a key press asks the pager to do.
type Action int

const (
	None Action = iota
	Next
	Prev
	Like
	Favorite
	Open
	Back
	Refresh
	Help
	Debug
	Quit
)

func (a Action) String() string {
	switch a {
	case Next:
		return "next"
	case Prev:
		return "prev"
	case Like:
		return "like"
	case Favorite:
		return "favorite"
	case Open:
		return "open"
	case Back:
		return "back"
	case Refresh:
		return "refresh"
	case Help:
		return "help"
	case Debug:
		return "debug"
	case Quit:
		return "quit"
	}
	return "none"
}

// KeyMap holds the pager bindings. It implements help.KeyMap.
type KeyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Like     key.Binding
	Favorite key.Binding
	Open     key.Binding
	Back     key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Debug    key.Binding
	Quit     key.Binding
}

// Keys is the default key map.
var Keys = KeyMap{
	Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
	Prev:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev")),
	Like:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "like")),
	Favorite: key.NewBinding(key.WithKeys("s", "S"), key.WithHelp("s", "favorite")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Debug:    key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "debug")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp is the one-line hint under the card.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Like, k.Favorite, k.Open, k.Help}
}

// FullHelp is the expanded help shown after "?".
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Open, k.Back},
		{k.Like, k.Favorite, k.Refresh},
		{k.Help, k.Debug, k.Quit},
	}
}

// Map translates a key press. Unbound keys map to None.
func Map(msg tea.KeyMsg) Action {
	return Keys.Map(msg)
}

// Map translates a key press using k.
func (k KeyMap) Map(msg tea.KeyMsg) Action {
	switch {
	case key.Matches(msg, k.Next):
		return Next
	case key.Matches(msg, k.Prev):
		return Prev
	case key.Matches(msg, k.Like):
		return Like
	case key.Matches(msg, k.Favorite):
		return Favorite
	case key.Matches(msg, k.Open):
		return Open
	case key.Matches(msg, k.Back):
		return Back
	case key.Matches(msg, k.Refresh):
		return Refresh
	case key.Matches(msg, k.Help):
		return Help
	case key.Matches(msg, k.Debug):
		return Debug
	case key.Matches(msg, k.Quit):
		return Quit
	}
	return None
}
