package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	store := NewStoreWith(ring)

	_, err := store.Password("me@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SavePassword("me@example.com", "hunter2"))

	item, err := ring.Get("imap-me@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), item.Data)

	pw, err := store.Password("me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	require.NoError(t, store.SavePassword("me@example.com", "changed"))
	pw, err = store.Password("me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "changed", pw)

	require.NoError(t, store.DeletePassword("me@example.com"))
	require.NoError(t, store.DeletePassword("me@example.com"))
	_, err = store.Password("me@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.SavePassword("", "x"))
}
