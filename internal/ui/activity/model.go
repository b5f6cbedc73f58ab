// Package activity renders the progress of a running scan or label run.
package activity

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	appsync "github.com/nhle/inboxzero/internal/sync"
	"github.com/nhle/inboxzero/internal/theme"
)

// Model shows a spinner while connecting and a progress bar afterwards.
type Model struct {
	spinner  spinner.Model
	progress progress.Model
	runID    string
	title    string
	stage    appsync.Stage
	done     int
	total    int
	stopping bool
	width    int
	height   int
}

// New creates an activity view.
func New(width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		width:    width,
		height:   height,
	}
}

// Start resets the view for a new run and starts the spinner.
func (m *Model) Start(runID, title string, stage appsync.Stage) tea.Cmd {
	m.runID = runID
	m.title = title
	m.stage = stage
	m.done = 0
	m.total = 0
	m.stopping = false
	return m.spinner.Tick
}

// SetStopping marks the run as cancelled by the user.
func (m *Model) SetStopping() {
	m.stopping = true
}

// RunID returns the id of the run being shown.
func (m Model) RunID() string {
	return m.runID
}

// Update handles spinner ticks and progress messages for the current run.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appsync.ProgressMsg:
		if msg.RunID != m.runID {
			return m, nil
		}
		m.stage = msg.Stage
		m.done = msg.Done
		m.total = msg.Total
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the spinner, stage line and progress bar.
func (m Model) View() string {
	status := fmt.Sprintf("%s %s", m.spinner.View(), m.stageText())
	if m.stopping {
		status += theme.WarningStyle.Render("  stopping...")
	}

	parts := []string{theme.TitleStyle.Render(m.title), status}
	if m.total > 0 {
		parts = append(parts,
			"",
			m.progress.ViewAs(float64(m.done)/float64(m.total)),
			theme.DimmedStyle.Render(fmt.Sprintf("%s / %s", humanize.Comma(int64(m.done)), humanize.Comma(int64(m.total)))),
		)
	}
	parts = append(parts, "", theme.HelpStyle.Render("ctrl+c stops after the current message"))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) stageText() string {
	switch m.stage {
	case appsync.StageConnecting:
		return "Connecting..."
	case appsync.StageScanning:
		if m.total == 0 {
			return "Searching folder..."
		}
		return "Reading headers..."
	case appsync.StageLabeling:
		return "Labeling senders..."
	default:
		return "Working..."
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	w := width - 8
	if w > 80 {
		w = 80
	}
	if w < 10 {
		w = 10
	}
	m.progress.Width = w
}
