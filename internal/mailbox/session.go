package mailbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DefaultFolder is the folder scanned and labeled when none is configured.
const DefaultFolder = "INBOX"

// MessageID identifies one message within the selected folder. It is the
// IMAP UID and is only meaningful for the lifetime of the session.
type MessageID uint32

func (id MessageID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Criteria is the subset of the IMAP search grammar the sweeper needs:
// either every message, or messages whose From field contains an address.
type Criteria struct {
	From string
}

// All matches every message in the selected folder.
func All() Criteria {
	return Criteria{}
}

// From matches messages whose From header contains address.
func From(address string) Criteria {
	return Criteria{From: address}
}

// String renders the criteria in IMAP search syntax.
func (c Criteria) String() string {
	if c.From == "" {
		return "ALL"
	}
	return fmt.Sprintf(`FROM "%s"`, quoteReplacer.Replace(c.From))
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Session is an authenticated, stateful channel to one mailbox. It is not
// safe for concurrent use: callers must issue one command at a time.
type Session interface {
	// SelectFolder opens the named folder for subsequent commands.
	SelectFolder(ctx context.Context, name string) error

	// Search returns the identifiers in the selected folder matching
	// criteria, in server order (ascending UID).
	Search(ctx context.Context, criteria Criteria) ([]MessageID, error)

	// FetchHeader returns the raw header block of one message. The body
	// is never transferred.
	FetchHeader(ctx context.Context, id MessageID) ([]byte, error)

	// StoreLabel adds label to one message without clearing others.
	StoreLabel(ctx context.Context, id MessageID, label string) error

	// Logout releases the remote session. Calling it twice is harmless.
	Logout(ctx context.Context) error
}
