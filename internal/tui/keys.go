package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the application
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Home     key.Binding
	Search   key.Binding
	Subs     key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Enter    key.Binding
	Back     key.Binding

	// Browse actions
	Filter   key.Binding
	Category key.Binding
	Sort     key.Binding
	Refresh  key.Binding

	// Player
	PlayPause  key.Binding
	SeekBack   key.Binding
	SeekFwd    key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Mute       key.Binding
	Slower     key.Binding
	Faster     key.Binding
	Fullscreen key.Binding
	Like       key.Binding
	Dislike    key.Binding
	Subscribe  key.Binding

	Quit key.Binding
	Help key.Binding
}

// DefaultKeyMap returns the default key bindings
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
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "previous tab"),
		),
		Home: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "home"),
		),
		Search: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "search"),
		),
		Subs: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "subscriptions"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "pgdown"),
			key.WithHelp("]", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "pgup"),
			key.WithHelp("[", "previous page"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "watch"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),

		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Category: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "category"),
		),
		Sort: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sort"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),

		PlayPause: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space", "play/pause"),
		),
		SeekBack: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "back 5s"),
		),
		SeekFwd: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "forward 5s"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("up", "k", "+"),
			key.WithHelp("↑", "volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("down", "j", "-"),
			key.WithHelp("↓", "volume down"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		Slower: key.NewBinding(
			key.WithKeys("<", ","),
			key.WithHelp("<", "slower"),
		),
		Faster: key.NewBinding(
			key.WithKeys(">", "."),
			key.WithHelp(">", "faster"),
		),
		Fullscreen: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "fullscreen"),
		),
		Like: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "like"),
		),
		Dislike: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "dislike"),
		),
		Subscribe: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "subscribe"),
		),

		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// Keys is the global key bindings instance
var Keys = DefaultKeyMap()

// browseHelp adapts the browse bindings to help.KeyMap
type browseHelp struct{ KeyMap }

func (k browseHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.NextTab, k.Filter, k.Help, k.Quit}
}

func (k browseHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.NextPage, k.PrevPage},
		{k.NextTab, k.PrevTab, k.Home, k.Search, k.Subs},
		{k.Filter, k.Category, k.Sort, k.Refresh},
		{k.Help, k.Quit},
	}
}

// playerHelp adapts the player bindings to help.KeyMap
type playerHelp struct{ KeyMap }

func (k playerHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.SeekBack, k.SeekFwd, k.Like, k.Back, k.Help}
}

func (k playerHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.SeekBack, k.SeekFwd, k.Fullscreen},
		{k.VolumeUp, k.VolumeDown, k.Mute, k.Slower, k.Faster},
		{k.Like, k.Dislike, k.Subscribe},
		{k.Back, k.Help, k.Quit},
	}
}
