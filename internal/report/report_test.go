package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/inboxzero/internal/model"
)

func TestSenders(t *testing.T) {
	out := Senders(model.FrequencyTable{
		Senders: []model.SenderCount{
			{Sender: "a@x.com", Count: 1500},
			{Sender: "b@x.com", Count: 3},
		},
	})

	assert.Contains(t, out, "SENDER")
	assert.Contains(t, out, "a@x.com")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "b@x.com")
}

func TestScanSummary(t *testing.T) {
	assert.Equal(t, "Scanned 500 messages in INBOX.",
		ScanSummary(model.FrequencyTable{Scanned: 500}, "INBOX"))
	assert.Equal(t, "Scanned 2,000 messages in Archive (4 could not be read).",
		ScanSummary(model.FrequencyTable{Scanned: 2000, Skipped: 4}, "Archive"))
}

func TestOutcomeReporting(t *testing.T) {
	outcomes := []model.LabelingOutcome{
		{Sender: "a@x.com", Status: model.OutcomeLabeled, Matched: 12},
		{Sender: "c@x.com", Status: model.OutcomeLabeled, Matched: 3, Failed: 1, Err: errors.New("store 7 failed: NO")},
		{Sender: "bad@y.com", Status: model.OutcomeSearchFailed, Err: errors.New("search failed: BAD")},
		{Sender: "none@x.com", Status: model.OutcomeLabeled},
	}

	t.Run("table lists every sender", func(t *testing.T) {
		out := Outcomes(outcomes)
		for _, o := range outcomes {
			assert.Contains(t, out, o.Sender)
		}
		assert.Contains(t, out, "search failed: BAD")
	})

	t.Run("reasons", func(t *testing.T) {
		assert.Equal(t, "", Reason(outcomes[0]))
		assert.Equal(t, "1 of 3 not labeled: store 7 failed: NO", Reason(outcomes[1]))
		assert.Equal(t, "search failed: BAD", Reason(outcomes[2]))
		assert.Equal(t, "no messages found", Reason(outcomes[3]))
	})

	t.Run("totals", func(t *testing.T) {
		assert.Equal(t, Totals{Senders: 4, Failed: 2, Messages: 14}, Tally(outcomes))
	})

	t.Run("summary asks for review", func(t *testing.T) {
		s := LabelSummary(outcomes, "ToDelete")
		assert.Contains(t, s, "Labeled 14 messages from 2 senders")
		assert.Contains(t, s, "2 senders had problems")
		assert.Contains(t, s, `Review the "ToDelete" label`)
	})
}
