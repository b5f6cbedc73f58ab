package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/inboxzero/internal/mailbox"
)

// Header builds a minimal raw header block with the given From value.
func Header(from string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\nSubject: hello\r\nDate: Mon, 2 Jan 2006 15:04:05 -0700\r\n\r\n", from))
}

// FakeMessage is one message in a FakeSession folder.
type FakeMessage struct {
	ID     mailbox.MessageID
	Header []byte
}

// FakeSession is a scripted mailbox.Session. Folder contents are kept in
// server (ascending UID) order. Every call is recorded in Calls.
type FakeSession struct {
	Folders map[string][]FakeMessage

	SelectErr map[string]error
	SearchErr map[string]error // keyed by Criteria.String()
	FetchErr  map[mailbox.MessageID]error
	StoreErr  map[mailbox.MessageID]error

	// Labels records every label stored per message.
	Labels map[mailbox.MessageID]map[string]bool

	Calls     []string
	Fetched   []mailbox.MessageID
	LoggedOut bool

	selected string
}

// NewFakeSession returns a session whose INBOX holds one message per From
// value, with UIDs 1..n in the given order.
func NewFakeSession(froms ...string) *FakeSession {
	msgs := make([]FakeMessage, len(froms))
	for i, from := range froms {
		msgs[i] = FakeMessage{ID: mailbox.MessageID(i + 1), Header: Header(from)}
	}
	return &FakeSession{
		Folders: map[string][]FakeMessage{mailbox.DefaultFolder: msgs},
	}
}

// SelectFolder implements mailbox.Session.
func (f *FakeSession) SelectFolder(_ context.Context, name string) error {
	f.Calls = append(f.Calls, "SELECT "+name)
	if err := f.SelectErr[name]; err != nil {
		return err
	}
	if _, ok := f.Folders[name]; !ok {
		return fmt.Errorf("no such folder %q", name)
	}
	f.selected = name
	return nil
}

// Search implements mailbox.Session. FROM matches case-insensitively
// against the raw From header line.
func (f *FakeSession) Search(_ context.Context, criteria mailbox.Criteria) ([]mailbox.MessageID, error) {
	f.Calls = append(f.Calls, "SEARCH "+criteria.String())
	if f.selected == "" {
		return nil, errors.New("no folder selected")
	}
	if err := f.SearchErr[criteria.String()]; err != nil {
		return nil, err
	}

	var ids []mailbox.MessageID
	for _, msg := range f.Folders[f.selected] {
		if criteria.From == "" || strings.Contains(strings.ToLower(fromLine(msg.Header)), strings.ToLower(criteria.From)) {
			ids = append(ids, msg.ID)
		}
	}
	return ids, nil
}

// FetchHeader implements mailbox.Session.
func (f *FakeSession) FetchHeader(_ context.Context, id mailbox.MessageID) ([]byte, error) {
	f.Calls = append(f.Calls, "FETCH "+id.String())
	f.Fetched = append(f.Fetched, id)
	if err := f.FetchErr[id]; err != nil {
		return nil, err
	}
	for _, msg := range f.Folders[f.selected] {
		if msg.ID == id {
			return msg.Header, nil
		}
	}
	return nil, fmt.Errorf("uid %d not found", id)
}

// StoreLabel implements mailbox.Session.
func (f *FakeSession) StoreLabel(_ context.Context, id mailbox.MessageID, label string) error {
	f.Calls = append(f.Calls, "STORE "+id.String()+" "+label)
	if err := f.StoreErr[id]; err != nil {
		return err
	}
	if f.Labels == nil {
		f.Labels = make(map[mailbox.MessageID]map[string]bool)
	}
	if f.Labels[id] == nil {
		f.Labels[id] = make(map[string]bool)
	}
	f.Labels[id][label] = true
	return nil
}

// Logout implements mailbox.Session.
func (f *FakeSession) Logout(_ context.Context) error {
	f.Calls = append(f.Calls, "LOGOUT")
	f.LoggedOut = true
	return nil
}

// LabeledIDs returns the messages carrying label, in UID order of the
// INBOX folder.
func (f *FakeSession) LabeledIDs(label string) []mailbox.MessageID {
	var ids []mailbox.MessageID
	for _, msg := range f.Folders[mailbox.DefaultFolder] {
		if f.Labels[msg.ID][label] {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

func fromLine(header []byte) string {
	for _, line := range strings.Split(string(header), "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "from:") {
			return line
		}
	}
	return ""
}
