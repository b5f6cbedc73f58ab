// Package report renders frequency tables and labeling outcomes as text
// for both the interactive UI and the headless commands.
package report

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/theme"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Senders renders the table of ranked senders.
func Senders(t model.FrequencyTable) string {
	rows := make([][]string, t.Len())
	for i, sc := range t.Senders {
		rows[i] = []string{strconv.Itoa(i + 1), sc.Sender, humanize.Comma(int64(sc.Count))}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("#", "SENDER", "MESSAGES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		}).
		String()
}

// ScanSummary describes how much of the folder a scan covered.
func ScanSummary(t model.FrequencyTable, folder string) string {
	s := fmt.Sprintf("Scanned %s messages in %s", humanize.Comma(int64(t.Scanned)), folder)
	if t.Skipped > 0 {
		s += fmt.Sprintf(" (%s could not be read)", humanize.Comma(int64(t.Skipped)))
	}
	return s + "."
}

// Outcomes renders one row per sender of a label-apply run.
func Outcomes(outcomes []model.LabelingOutcome) string {
	rows := make([][]string, len(outcomes))
	for i, o := range outcomes {
		rows[i] = []string{o.Sender, string(o.Status), humanize.Comma(int64(o.Labeled())), Reason(o)}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("SENDER", "STATUS", "LABELED", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(outcomes) {
				return theme.OutcomeStyle(outcomes[row]).Padding(0, 1)
			}
			if col == 2 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		}).
		String()
}

// Reason is the human-readable detail for an outcome: the failure, or
// the number of messages that could not be labeled.
func Reason(o model.LabelingOutcome) string {
	switch {
	case o.OK():
		if o.Matched == 0 {
			return "no messages found"
		}
		return ""
	case o.Status == model.OutcomeLabeled:
		return fmt.Sprintf("%d of %d not labeled: %v", o.Failed, o.Matched, o.Err)
	case o.Err != nil:
		return o.Err.Error()
	default:
		return ""
	}
}

// Totals counts what a label-apply run did.
type Totals struct {
	Senders  int
	Failed   int
	Messages int
}

// Tally sums outcomes.
func Tally(outcomes []model.LabelingOutcome) Totals {
	var t Totals
	for _, o := range outcomes {
		t.Senders++
		t.Messages += o.Labeled()
		if !o.OK() {
			t.Failed++
		}
	}
	return t
}

// LabelSummary is the closing message of a label-apply run. Labeled mail
// is never deleted here; the user reviews and deletes it in their client.
func LabelSummary(outcomes []model.LabelingOutcome, label string) string {
	t := Tally(outcomes)
	s := fmt.Sprintf("Labeled %s messages from %d senders with %q.",
		humanize.Comma(int64(t.Messages)), t.Senders-t.Failed, label)
	if t.Failed > 0 {
		s += fmt.Sprintf(" %d senders had problems.", t.Failed)
	}
	return s + fmt.Sprintf(" Review the %q label in your mail client and delete what you no longer need.", label)
}
