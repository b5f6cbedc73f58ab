package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inboxzero/internal/keys"
	"github.com/nhle/inboxzero/internal/theme"
)

// about explains the workflow in one paragraph.
const about = "Fetch scans the most recent messages of a folder, reading headers " +
	"only, and ranks who sent them. Tick the senders you want gone and press " +
	"enter: every message from them gets the label. Nothing is deleted here; " +
	"review the label in your mail client and delete from there."

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Keyboard Shortcuts")
	intro := lipgloss.NewStyle().
		Width(m.width - 8).
		Foreground(theme.ColorGray).
		MarginBottom(1).
		Render(about)

	content := lipgloss.JoinVertical(lipgloss.Left, title, intro, m.help.View(m.keys))

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 8
}
