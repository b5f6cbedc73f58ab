package mailbox

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/inboxzero/internal/model"
)

// labeler applies a label to a single UID in the selected folder.
type labeler interface {
	apply(client *imapclient.Client, id MessageID, label string) error
}

func newLabeler(mode model.LabelMode, logger *log.Logger) labeler {
	if mode == model.LabelModeGmail {
		return &gmailLabeler{logger: logger, created: make(map[string]bool)}
	}
	return keywordLabeler{}
}

// keywordLabeler sets an IMAP keyword flag. Adding a flag the message
// already carries leaves it unchanged.
type keywordLabeler struct{}

func (keywordLabeler) apply(client *imapclient.Client, id MessageID, label string) error {
	storeCmd := client.Store(imap.UIDSetNum(imap.UID(id)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.Flag(label)},
	}, nil)
	return storeCmd.Close()
}

// gmailLabeler copies the message into the label's mailbox. Gmail models
// labels as mailboxes, so a copy adds the label to the same message and
// repeating it is harmless.
type gmailLabeler struct {
	logger  *log.Logger
	created map[string]bool
}

func (g *gmailLabeler) apply(client *imapclient.Client, id MessageID, label string) error {
	if !g.created[label] {
		// CREATE fails when the label exists already; either way it is
		// usable afterwards, and a real problem shows up on COPY.
		if err := client.Create(label, nil).Wait(); err != nil {
			g.logger.Debug("label mailbox not created", "label", label, "err", err)
		}
		g.created[label] = true
	}

	if _, err := client.Copy(imap.UIDSetNum(imap.UID(id)), label).Wait(); err != nil {
		return fmt.Errorf("copying to label %q: %w", label, err)
	}
	return nil
}
