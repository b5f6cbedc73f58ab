package senders

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/inboxzero/internal/keys"
	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/theme"
)

// ApplyMsg asks for the label to be applied to the ticked senders.
type ApplyMsg struct {
	Senders []string
}

// RescanMsg asks for a fresh scan.
type RescanMsg struct{}

// NoSelectionWarning is shown when apply is pressed with nothing ticked.
const NoSelectionWarning = "No senders selected. Tick at least one with space."

// Model is the sender checklist view.
type Model struct {
	list      list.Model
	keys      *keys.KeyMap
	table     model.FrequencyTable
	selection *model.SelectionSet
	folder    string
	label     string
	warning   string
	width     int
	height    int
}

// New creates an empty sender checklist.
func New(k *keys.KeyMap, width, height int) Model {
	selection := model.NewSelectionSet(model.FrequencyTable{})
	l := list.New([]list.Item{}, ItemDelegate{selection: selection}, width, height-4)
	l.Title = "Top senders"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.KeyMap.ShowFullHelp.SetEnabled(false)

	return Model{
		list:      l,
		keys:      k,
		selection: selection,
		width:     width,
		height:    height,
	}
}

// SetTable replaces the listed senders. Any previous selection is
// discarded.
func (m *Model) SetTable(table model.FrequencyTable, folder, label string) tea.Cmd {
	m.table = table
	m.folder = folder
	m.label = label
	m.warning = ""
	m.selection = model.NewSelectionSet(table)
	m.list.SetDelegate(ItemDelegate{selection: m.selection})
	m.list.Title = fmt.Sprintf("Top %d senders in %s", table.Len(), folder)

	items := make([]list.Item, table.Len())
	for i, sc := range table.Senders {
		items[i] = SenderItem{Rank: i, SenderCount: sc}
	}
	m.list.Select(0)
	return m.list.SetItems(items)
}

// Selection returns the current selection.
func (m Model) Selection() *model.SelectionSet {
	return m.selection
}

// Warning returns the transient notice for the status bar, if any.
func (m Model) Warning() string {
	return m.warning
}

// Update handles messages for the checklist.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		m.warning = ""

		switch {
		case key.Matches(msg, m.keys.Toggle):
			if item, ok := m.list.SelectedItem().(SenderItem); ok {
				m.selection.Toggle(item.Sender)
			}
			return m, nil

		case key.Matches(msg, m.keys.SelectAll):
			m.selection.SetAll(true)
			return m, nil

		case key.Matches(msg, m.keys.ClearAll):
			m.selection.SetAll(false)
			return m, nil

		case key.Matches(msg, m.keys.Apply):
			chosen := m.selection.Selected()
			if len(chosen) == 0 {
				m.warning = NoSelectionWarning
				return m, nil
			}
			return m, func() tea.Msg { return ApplyMsg{Senders: chosen} }

		case key.Matches(msg, m.keys.Rescan):
			return m, func() tea.Msg { return RescanMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the checklist with a summary line.
func (m Model) View() string {
	summary := fmt.Sprintf(
		"Scanned %s messages, %s skipped. %d of %d ticked; enter adds label %q.",
		humanize.Comma(int64(m.table.Scanned)),
		humanize.Comma(int64(m.table.Skipped)),
		m.selection.Count(),
		m.table.Len(),
		m.label,
	)

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		m.list.View(),
		"",
		theme.HelpStyle.Render(summary),
	)
	if m.warning != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, theme.WarningStyle.Render(m.warning))
	}

	return lipgloss.NewStyle().Padding(0, 1).Render(body)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-2, height-4)
}
