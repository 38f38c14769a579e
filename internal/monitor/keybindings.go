package monitor

import tea "github.com/charmbracelet/bubbletea"

// Key bindings as constants for consistency.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyPause      = "p"
	KeyClear      = "c"
	KeyRefresh    = "r"
	KeyCollapse   = "esc"
	KeyToggleHelp = "?"
)

// HandleKeyMsg processes keyboard input.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}

	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyPause:
		m.paused = !m.paused
		if !m.paused {
			m.refresh()
		}
		return true, nil

	case KeyClear:
		m.recent = nil
		return true, nil

	case KeyRefresh:
		m.refresh()
		return true, nil
	}

	return false, nil
}
