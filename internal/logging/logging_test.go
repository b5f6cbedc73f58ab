package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inboxzero/internal/model"
)

func TestNew(t *testing.T) {
	t.Run("writes to fallback without a file", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := New(model.LogConfig{Level: "warn"}, &buf)
		require.NoError(t, err)
		defer closer.Close()

		logger.Info("hidden")
		logger.Warn("shown", "folder", "INBOX")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
		assert.Contains(t, buf.String(), "folder=INBOX")
	})

	t.Run("appends to the configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "inboxzero.log")
		logger, closer, err := New(model.LogConfig{Level: "debug", File: path}, os.Stderr)
		require.NoError(t, err)

		logger.Debug("scanning headers", "messages", 3)
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "scanning headers")
		assert.Contains(t, string(data), "messages=3")
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		_, _, err := New(model.LogConfig{Level: "chatty"}, os.Stderr)
		assert.Error(t, err)
	})
}
