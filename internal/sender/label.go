package sender

import (
	"context"
	"errors"
	"strings"

	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
)

// errEmptySender is recorded for a blank address in the sender list.
var errEmptySender = errors.New("empty sender address")

// LabelOptions controls ApplyLabel.
type LabelOptions struct {
	// Folder to search in; defaults to INBOX.
	Folder string

	// Label is the label or keyword to add.
	Label string

	// Progress is called after each sender, skipped ones included, with
	// (senders done, total).
	Progress Progress
}

// ApplyLabel searches the folder for each sender, in the order given, and
// adds the label to every matching message. A failure for one sender or
// one message never stops the rest. Exactly one outcome is returned per
// distinct sender. Messages are labeled, never deleted.
func (s *Sweeper) ApplyLabel(
	ctx context.Context,
	session mailbox.Session,
	senders []string,
	opts LabelOptions,
) ([]model.LabelingOutcome, error) {
	if opts.Label == "" {
		return nil, errors.New("label name is required")
	}
	if opts.Folder == "" {
		opts.Folder = mailbox.DefaultFolder
	}

	senders = dedupe(senders)
	outcomes := make([]model.LabelingOutcome, 0, len(senders))

	for i, addr := range senders {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, model.LabelingOutcome{
				Sender: addr,
				Status: model.OutcomeSkipped,
				Err:    err,
			})
			opts.Progress.report(i+1, len(senders))
			continue
		}

		var outcome model.LabelingOutcome
		if strings.TrimSpace(addr) == "" {
			outcome = model.LabelingOutcome{
				Sender: addr,
				Status: model.OutcomeInvalid,
				Err:    errEmptySender,
			}
		} else {
			outcome = s.labelSender(ctx, session, addr, opts)
		}
		outcomes = append(outcomes, outcome)

		s.logger.Info("sender processed",
			"sender", addr,
			"status", outcome.Status,
			"matched", outcome.Matched,
			"failed", outcome.Failed,
		)
		opts.Progress.report(i+1, len(senders))
	}

	return outcomes, nil
}

func (s *Sweeper) labelSender(
	ctx context.Context,
	session mailbox.Session,
	addr string,
	opts LabelOptions,
) model.LabelingOutcome {
	outcome := model.LabelingOutcome{Sender: addr}

	if err := session.SelectFolder(ctx, opts.Folder); err != nil {
		outcome.Status = model.OutcomeSelectFailed
		outcome.Err = mailbox.Wrap(mailbox.OpSelect, opts.Folder, err)
		s.logger.Error("select failed", "sender", addr, "err", outcome.Err)
		return outcome
	}

	criteria := mailbox.From(addr)
	ids, err := session.Search(ctx, criteria)
	if err != nil {
		outcome.Status = model.OutcomeSearchFailed
		outcome.Err = mailbox.Wrap(mailbox.OpSearch, criteria.String(), err)
		s.logger.Error("search failed", "sender", addr, "err", outcome.Err)
		return outcome
	}

	outcome.Status = model.OutcomeLabeled
	outcome.Matched = len(ids)

	for _, id := range ids {
		if err := session.StoreLabel(ctx, id, opts.Label); err != nil {
			outcome.Failed++
			if outcome.Err == nil {
				outcome.Err = mailbox.Wrap(mailbox.OpStore, id.String(), err)
			}
			s.logger.Warn("label not stored", "sender", addr, "uid", id, "err", err)
		}
	}

	return outcome
}

// dedupe drops repeated senders, keeping the first occurrence.
func dedupe(senders []string) []string {
	seen := make(map[string]bool, len(senders))
	out := make([]string, 0, len(senders))
	for _, addr := range senders {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}
