package tui

// Keybinding constants
const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyQuit     = "esc"
	KeyCtrlC    = "ctrl+c"
	KeyEnter    = "enter"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
	KeySettings = "ctrl+s"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView(busy bool) string {
	help := "Enter: send | Tab: chat/tasks | j/k: select task | PgUp/PgDn: scroll | Ctrl+S: settings | Esc: quit"
	if busy {
		help = "Working... | " + help
	}
	return StyleHelp.Render(help)
}
