package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inboxzero/internal/theme"
)

// Layout holds the terminal dimensions and renders the frame around the
// active view.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the active view.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top bar: the title on the left and the
// account or run state on the right.
func (l Layout) RenderHeader(title, state string) string {
	return l.bar(theme.HeaderStyle, theme.HeaderStyle.Render(title), theme.HeaderStyle.Render(state))
}

// RenderStatusBar renders the bottom bar. A notice, when set, replaces
// the key hints.
func (l Layout) RenderStatusBar(hints, notice string) string {
	if notice != "" {
		return l.bar(theme.StatusBarStyle, theme.StatusBarStyle.Bold(true).Render(notice), "")
	}
	return l.bar(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), "")
}

// bar joins left and right with a filler painted in style's background.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame stacks the header, the content area clamped to
// ContentHeight, and the status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	body := lipgloss.NewStyle().
		Width(l.ContentWidth()).
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}
