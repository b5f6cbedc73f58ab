// Package sender ranks a mailbox's most frequent senders and labels
// their messages.
package sender

import (
	"github.com/charmbracelet/log"
)

// Progress receives (processed, total) after each unit of work. Calls are
// made on the goroutine running the operation, with processed strictly
// increasing.
type Progress func(processed, total int)

func (p Progress) report(processed, total int) {
	if p != nil {
		p(processed, total)
	}
}

// Sweeper runs scans and label-apply runs against a mailbox session. It
// holds no mailbox state between calls.
type Sweeper struct {
	logger *log.Logger
}

// NewSweeper creates a Sweeper that logs skipped messages and per-sender
// failures to logger.
func NewSweeper(logger *log.Logger) *Sweeper {
	return &Sweeper{logger: logger}
}
