package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/inboxzero/internal/model"
)

const serviceName = "inboxzero"

// ErrNotFound is returned when no password is stored for an account.
var ErrNotFound = errors.New("no stored password")

// Store keeps IMAP passwords in the OS keyring, one item per username.
type Store struct {
	open func() (keyring.Keyring, error)
}

// NewStore returns a Store backed by the system keyring, falling back to
// an encrypted file under the config directory.
func NewStore() *Store {
	return &Store{open: openKeyring}
}

// NewStoreWith returns a Store over an already opened keyring.
func NewStoreWith(ring keyring.Keyring) *Store {
	return &Store{open: func() (keyring.Keyring, error) { return ring, nil }}
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(model.ConfigDir(), "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("inboxzero-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Key returns the keyring item key for an IMAP username.
func Key(username string) string {
	return "imap-" + username
}

// Password retrieves the stored password for username.
func (s *Store) Password(username string) (string, error) {
	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(Key(username))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w for %s", ErrNotFound, username)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential for %s: %w", username, err)
	}

	return string(item.Data), nil
}

// SavePassword stores the password for username, replacing any previous one.
func (s *Store) SavePassword(username, password string) error {
	if username == "" {
		return errors.New("username is required")
	}

	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   Key(username),
		Data:  []byte(password),
		Label: "inboxzero IMAP password for " + username,
	})
	if err != nil {
		return fmt.Errorf("setting credential for %s: %w", username, err)
	}

	return nil
}

// DeletePassword removes the stored password for username. Removing a
// password that was never stored is not an error.
func (s *Store) DeletePassword(username string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Remove(Key(username))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential for %s: %w", username, err)
	}

	return nil
}
