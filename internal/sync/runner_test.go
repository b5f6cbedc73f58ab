package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/sender"
	"github.com/nhle/inboxzero/tests/testutil"
)

type fakeOpener struct {
	mu       gosync.Mutex
	sessions []*testutil.FakeSession
	opened   int
	err      error
	gate     chan struct{}
}

func (o *fakeOpener) Open(ctx context.Context) (mailbox.Session, error) {
	if o.gate != nil {
		select {
		case <-o.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	session := o.sessions[o.opened]
	o.opened++
	return session, nil
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

func next(t *testing.T, r *Runner) tea.Msg {
	t.Helper()

	ch := make(chan tea.Msg, 1)
	go func() { ch <- r.WaitForNextResult()() }()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for runner message")
		return nil
	}
}

// await reads messages until a result arrives, returning it with the
// progress seen on the way.
func await(t *testing.T, r *Runner) (tea.Msg, []ProgressMsg) {
	t.Helper()

	var progress []ProgressMsg
	for {
		switch msg := next(t, r).(type) {
		case ProgressMsg:
			progress = append(progress, msg)
		default:
			return msg, progress
		}
	}
}

func newRunner(t *testing.T, opener Opener) *Runner {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	r := New(opener, sender.NewSweeper(logger), logger)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRunnerScanAndApply(t *testing.T) {
	first := testutil.NewFakeSession("a@x.com", "b@x.com", "a@x.com")
	second := testutil.NewFakeSession("c@x.com")
	opener := &fakeOpener{sessions: []*testutil.FakeSession{first, second}}
	r := newRunner(t, opener)

	runID, err := r.Scan(sender.ScanOptions{RequestedCount: 10, TopN: 2})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	msg, progress := await(t, r)
	scan, ok := msg.(ScanResultMsg)
	require.True(t, ok, "got %T", msg)
	require.NoError(t, scan.Error)
	assert.Equal(t, runID, scan.RunID)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, scan.Table.Addresses())
	assert.True(t, r.Connected())
	assert.False(t, r.Busy())

	require.NotEmpty(t, progress)
	assert.Equal(t, StageConnecting, progress[0].Stage)
	last := progress[len(progress)-1]
	assert.Equal(t, ProgressMsg{RunID: runID, Stage: StageScanning, Done: 3, Total: 3}, last)

	applyID, err := r.Apply([]string{"a@x.com"}, sender.LabelOptions{Label: "ToDelete"})
	require.NoError(t, err)
	assert.NotEqual(t, runID, applyID)

	msg, _ = await(t, r)
	label, ok := msg.(LabelResultMsg)
	require.True(t, ok, "got %T", msg)
	require.NoError(t, label.Error)
	assert.Equal(t, "ToDelete", label.Label)
	require.Len(t, label.Outcomes, 1)
	assert.Equal(t, 2, label.Outcomes[0].Labeled())
	assert.Equal(t, []mailbox.MessageID{1, 3}, first.LabeledIDs("ToDelete"))

	// Labeling logs out; the session is gone until the next scan.
	assert.True(t, first.LoggedOut)
	assert.False(t, r.Connected())
	_, err = r.Apply([]string{"a@x.com"}, sender.LabelOptions{Label: "ToDelete"})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = r.Scan(sender.ScanOptions{RequestedCount: 10})
	require.NoError(t, err)
	msg, _ = await(t, r)
	scan = msg.(ScanResultMsg)
	require.NoError(t, scan.Error)
	assert.Equal(t, []string{"c@x.com"}, scan.Table.Addresses())
	assert.Equal(t, 2, opener.count())
}

func TestRunnerReusesSessionBetweenScans(t *testing.T) {
	opener := &fakeOpener{sessions: []*testutil.FakeSession{testutil.NewFakeSession("a@x.com")}}
	r := newRunner(t, opener)

	for i := 0; i < 2; i++ {
		_, err := r.Scan(sender.ScanOptions{RequestedCount: 1})
		require.NoError(t, err)
		msg, _ := await(t, r)
		require.NoError(t, msg.(ScanResultMsg).Error)
	}

	assert.Equal(t, 1, opener.count())
}

func TestRunnerRejectsConcurrentOperations(t *testing.T) {
	opener := &fakeOpener{
		sessions: []*testutil.FakeSession{testutil.NewFakeSession("a@x.com")},
		gate:     make(chan struct{}),
	}
	r := newRunner(t, opener)

	_, err := r.Scan(sender.ScanOptions{RequestedCount: 1})
	require.NoError(t, err)
	assert.True(t, r.Busy())

	_, err = r.Scan(sender.ScanOptions{RequestedCount: 1})
	assert.ErrorIs(t, err, ErrBusy)

	close(opener.gate)
	msg, _ := await(t, r)
	require.NoError(t, msg.(ScanResultMsg).Error)

	_, err = r.Apply([]string{"a@x.com"}, sender.LabelOptions{Label: "L"})
	require.NoError(t, err)
	_, err = r.Apply([]string{"a@x.com"}, sender.LabelOptions{Label: "L"})
	assert.ErrorIs(t, err, ErrBusy)
	msg, _ = await(t, r)
	require.NoError(t, msg.(LabelResultMsg).Error)
}

func TestRunnerReportsAuthFailure(t *testing.T) {
	opener := &fakeOpener{err: &mailbox.OpError{Op: mailbox.OpAuth, Target: "me", Err: errors.New("NO bad credentials")}}
	r := newRunner(t, opener)

	_, err := r.Scan(sender.ScanOptions{RequestedCount: 1})
	require.NoError(t, err)

	msg, _ := await(t, r)
	scan := msg.(ScanResultMsg)
	assert.True(t, scan.AuthError)
	assert.Error(t, scan.Error)
	assert.False(t, r.Connected())
}

func TestRunnerDropsSessionAfterTransportFailure(t *testing.T) {
	broken := testutil.NewFakeSession("a@x.com")
	broken.SelectErr = map[string]error{"INBOX": errors.New("connection reset")}
	opener := &fakeOpener{sessions: []*testutil.FakeSession{broken}}
	r := newRunner(t, opener)

	_, err := r.Scan(sender.ScanOptions{RequestedCount: 1})
	require.NoError(t, err)

	msg, _ := await(t, r)
	scan := msg.(ScanResultMsg)
	assert.Equal(t, mailbox.OpSelect, mailbox.OpOf(scan.Error))
	assert.False(t, scan.AuthError)
	assert.True(t, broken.LoggedOut)
	assert.False(t, r.Connected())
}

func TestRunnerCloseLogsOut(t *testing.T) {
	session := testutil.NewFakeSession("a@x.com")
	opener := &fakeOpener{sessions: []*testutil.FakeSession{session}}
	r := newRunner(t, opener)

	_, err := r.Scan(sender.ScanOptions{RequestedCount: 1})
	require.NoError(t, err)
	_, _ = await(t, r)

	require.NoError(t, r.Close())
	assert.True(t, session.LoggedOut)
	assert.False(t, r.Connected())

	_, err = r.Scan(sender.ScanOptions{RequestedCount: 1})
	assert.Error(t, err)
}

func TestRunnerCloseCancelsPendingConnect(t *testing.T) {
	opener := &fakeOpener{gate: make(chan struct{})}
	r := newRunner(t, opener)

	_, err := r.Scan(sender.ScanOptions{RequestedCount: 1})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}
