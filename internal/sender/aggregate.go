package sender

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
)

// DefaultTopN is the number of senders listed when none is requested.
const DefaultTopN = 3

// ErrNoMessages means the scan found nothing to rank: the folder was
// empty or no scanned message had a readable sender.
var ErrNoMessages = errors.New("no messages with a readable sender")

// ScanOptions controls TopSenders.
type ScanOptions struct {
	// Folder to scan; defaults to INBOX.
	Folder string

	// RequestedCount is how many of the most recent messages to scan.
	RequestedCount int

	// TopN is how many senders to return; defaults to DefaultTopN.
	TopN int

	// Progress is called after every scanned message.
	Progress Progress
}

func (o ScanOptions) normalized() (ScanOptions, error) {
	if o.Folder == "" {
		o.Folder = mailbox.DefaultFolder
	}
	if o.TopN == 0 {
		o.TopN = DefaultTopN
	}
	if o.RequestedCount < 1 {
		return o, fmt.Errorf("requested count must be positive, got %d", o.RequestedCount)
	}
	if o.TopN < 1 {
		return o, fmt.Errorf("top N must be positive, got %d", o.TopN)
	}
	return o, nil
}

// TopSenders scans the most recent RequestedCount messages of a folder,
// header only, and ranks their senders by frequency. Messages whose
// header cannot be fetched are logged and skipped. Ties keep the order
// in which senders were first seen.
func (s *Sweeper) TopSenders(
	ctx context.Context,
	session mailbox.Session,
	opts ScanOptions,
) (model.FrequencyTable, error) {
	opts, err := opts.normalized()
	if err != nil {
		return model.FrequencyTable{}, err
	}

	if err := session.SelectFolder(ctx, opts.Folder); err != nil {
		return model.FrequencyTable{}, mailbox.Wrap(mailbox.OpSelect, opts.Folder, err)
	}

	ids, err := session.Search(ctx, mailbox.All())
	if err != nil {
		return model.FrequencyTable{}, mailbox.Wrap(mailbox.OpSearch, mailbox.All().String(), err)
	}
	if len(ids) == 0 {
		return model.FrequencyTable{}, ErrNoMessages
	}

	ids = mostRecent(ids, opts.RequestedCount)
	total := len(ids)
	s.logger.Info("scanning headers", "folder", opts.Folder, "messages", total)

	tally := newTally()
	skipped := 0
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return model.FrequencyTable{}, fmt.Errorf("scan stopped after %d of %d messages: %w", i, total, err)
		}

		raw, err := session.FetchHeader(ctx, id)
		if err != nil {
			skipped++
			s.logger.Warn("skipping message", "uid", id, "err", mailbox.Wrap(mailbox.OpFetch, id.String(), err))
		} else if addr, ok := ExtractSender(raw); ok {
			tally.add(addr)
		}

		opts.Progress.report(i+1, total)
	}

	if tally.empty() {
		return model.FrequencyTable{}, ErrNoMessages
	}

	return model.FrequencyTable{
		Senders: tally.top(opts.TopN),
		Scanned: total,
		Skipped: skipped,
	}, nil
}

// mostRecent keeps the last n identifiers. Servers return UIDs in
// ascending order, so the tail is the newest mail.
func mostRecent(ids []mailbox.MessageID, n int) []mailbox.MessageID {
	if len(ids) <= n {
		return ids
	}
	return ids[len(ids)-n:]
}

// tally counts senders and remembers first-seen order.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(addr string) {
	if _, seen := t.counts[addr]; !seen {
		t.order = append(t.order, addr)
	}
	t.counts[addr]++
}

func (t *tally) empty() bool {
	return len(t.order) == 0
}

// top returns the n highest counts. The stable sort over first-seen
// order is the tie-break.
func (t *tally) top(n int) []model.SenderCount {
	ranked := make([]model.SenderCount, len(t.order))
	for i, addr := range t.order {
		ranked[i] = model.SenderCount{Sender: addr, Count: t.counts[addr]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
