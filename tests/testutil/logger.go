package testutil

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

// NewTestLogger returns a logger that discards output unless the test
// runs with -v, in which case it writes through t.Log.
func NewTestLogger(t *testing.T) *log.Logger {
	t.Helper()

	if !testing.Verbose() {
		return log.New(io.Discard)
	}
	return log.NewWithOptions(testWriter{t}, log.Options{Level: log.DebugLevel})
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
