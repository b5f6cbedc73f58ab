package senders

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/theme"
)

// SenderItem wraps one ranked sender so it can be used in a bubbles/list.
type SenderItem struct {
	Rank int
	model.SenderCount
}

// FilterValue returns the string used for fuzzy filtering.
func (i SenderItem) FilterValue() string { return i.Sender }

// ItemDelegate renders a sender row with its checkbox. The selection is
// shared by pointer with the Model so toggles show up immediately.
type ItemDelegate struct {
	selection *model.SelectionSet
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single sender line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	si, ok := item.(SenderItem)
	if !ok {
		return
	}

	box := "[ ]"
	if d.selection != nil && d.selection.IsSelected(si.Sender) {
		box = theme.CheckedStyle.Render("[x]")
	}

	rank := theme.RankStyle(si.Rank).Render(fmt.Sprintf("#%d", si.Rank+1))
	count := theme.DimmedStyle.Render(humanize.Comma(int64(si.Count)) + " messages")

	line := fmt.Sprintf("%s %s %s  %s", box, rank, si.Sender, count)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}
