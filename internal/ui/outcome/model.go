package outcome

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inboxzero/internal/keys"
	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/report"
	"github.com/nhle/inboxzero/internal/theme"
)

// RescanMsg asks for a fresh scan after reviewing the outcomes.
type RescanMsg struct{}

// Model lists the per-sender results of a label-apply run.
type Model struct {
	viewport viewport.Model
	keys     *keys.KeyMap
	outcomes []model.LabelingOutcome
	label    string
	err      error
	width    int
	height   int
}

// New creates an outcome view.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		viewport: viewport.New(width, height),
		keys:     k,
		width:    width,
		height:   height,
	}
}

// SetOutcomes replaces the displayed run. err is a run-level failure,
// shown above the table.
func (m *Model) SetOutcomes(outcomes []model.LabelingOutcome, label string, err error) {
	m.outcomes = outcomes
	m.label = label
	m.err = err
	m.viewport.SetContent(m.content())
	m.viewport.GotoTop()
}

// Failed reports whether any sender in the run did not fully succeed.
func (m Model) Failed() bool {
	return m.err != nil || report.Tally(m.outcomes).Failed > 0
}

// Update handles scrolling and the rescan key.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Rescan) {
		return m, func() tea.Msg { return RescanMsg{} }
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the outcome table.
func (m Model) View() string {
	return lipgloss.NewStyle().Padding(0, 1).Render(m.viewport.View())
}

func (m Model) content() string {
	title := theme.TitleStyle.Render(fmt.Sprintf("Label %q applied", m.label))

	parts := []string{title}
	if m.err != nil {
		parts = append(parts, theme.ErrorStyle.Render(m.err.Error()), "")
	}
	if len(m.outcomes) > 0 {
		parts = append(parts, report.Outcomes(m.outcomes), "")
	}

	summaryStyle := theme.SuccessStyle
	if m.Failed() {
		summaryStyle = theme.WarningStyle
	}
	parts = append(parts,
		summaryStyle.Width(m.textWidth()).Render(report.LabelSummary(m.outcomes, m.label)),
		"",
		theme.HelpStyle.Render("r fetch senders again | q quit"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) textWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 2
	m.viewport.Height = height
	m.viewport.SetContent(m.content())
}
