package sender

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/tests/testutil"
)

func addresses(spec string) []string {
	var out []string
	for _, letter := range strings.Split(spec, ",") {
		out = append(out, letter+"@x.com")
	}
	return out
}

func TestTopSenders(t *testing.T) {
	ctx := context.Background()
	sweeper := NewSweeper(testutil.NewTestLogger(t))

	t.Run("ranks by count and truncates to top N", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,b,a,c,a,c,b,a,a")...)

		table, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 10, TopN: 2})
		require.NoError(t, err)

		assert.Equal(t, []model.SenderCount{
			{Sender: "a@x.com", Count: 5},
			{Sender: "b@x.com", Count: 3},
		}, table.Senders)
		assert.Equal(t, 10, table.Scanned)
		assert.Equal(t, 0, table.Skipped)
	})

	t.Run("ties keep first-seen order", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("c,b,a,a,b,c")...)

		table, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 6, TopN: 3})
		require.NoError(t, err)

		assert.Equal(t, []string{"c@x.com", "b@x.com", "a@x.com"}, table.Addresses())
	})

	t.Run("fewer messages than requested scans them all", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,a")...)

		table, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 500})
		require.NoError(t, err)

		assert.Equal(t, 3, table.Scanned)
		assert.Len(t, session.Fetched, 3)
		assert.Equal(t, []model.SenderCount{
			{Sender: "a@x.com", Count: 2},
			{Sender: "b@x.com", Count: 1},
		}, table.Senders)
	})

	t.Run("only the most recent messages are fetched", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("old,old,old,new,new")...)

		table, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 2})
		require.NoError(t, err)

		assert.Equal(t, []mailbox.MessageID{4, 5}, session.Fetched)
		assert.Equal(t, []model.SenderCount{{Sender: "new@x.com", Count: 2}}, table.Senders)
	})

	t.Run("top N larger than distinct senders", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b")...)

		table, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 5, TopN: 10})
		require.NoError(t, err)

		assert.Equal(t, 2, table.Len())
	})

	t.Run("empty folder", func(t *testing.T) {
		session := testutil.NewFakeSession()

		_, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 5})
		assert.ErrorIs(t, err, ErrNoMessages)
	})

	t.Run("no readable senders", func(t *testing.T) {
		session := testutil.NewFakeSession("nobody", "undisclosed")

		_, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 5})
		assert.ErrorIs(t, err, ErrNoMessages)
	})

	t.Run("fetch failures are skipped", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,a")...)
		session.FetchErr = map[mailbox.MessageID]error{2: errors.New("connection reset")}

		table, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 3})
		require.NoError(t, err)

		assert.Equal(t, []model.SenderCount{{Sender: "a@x.com", Count: 2}}, table.Senders)
		assert.Equal(t, 3, table.Scanned)
		assert.Equal(t, 1, table.Skipped)
	})

	t.Run("progress is reported after every message", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,c,d")...)

		var seen [][2]int
		_, err := sweeper.TopSenders(ctx, session, ScanOptions{
			RequestedCount: 3,
			Progress: func(processed, total int) {
				seen = append(seen, [2]int{processed, total})
			},
		})
		require.NoError(t, err)

		assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, seen)
	})

	t.Run("select failure is tagged", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)
		session.SelectErr = map[string]error{"INBOX": errors.New("NO access denied")}

		_, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 1})
		require.Error(t, err)
		assert.Equal(t, mailbox.OpSelect, mailbox.OpOf(err))
	})

	t.Run("search failure is tagged", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)
		session.SearchErr = map[string]error{"ALL": errors.New("BAD")}

		_, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 1})
		require.Error(t, err)
		assert.Equal(t, mailbox.OpSearch, mailbox.OpOf(err))
	})

	t.Run("custom folder", func(t *testing.T) {
		session := testutil.NewFakeSession()
		session.Folders["Archive"] = []testutil.FakeMessage{
			{ID: 7, Header: testutil.Header("arch@x.com")},
		}

		table, err := sweeper.TopSenders(ctx, session, ScanOptions{Folder: "Archive", RequestedCount: 1})
		require.NoError(t, err)

		assert.Equal(t, []string{"arch@x.com"}, table.Addresses())
		assert.Equal(t, "SELECT Archive", session.Calls[0])
	})

	t.Run("invalid options", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)

		_, err := sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 0})
		assert.Error(t, err)

		_, err = sweeper.TopSenders(ctx, session, ScanOptions{RequestedCount: 1, TopN: -1})
		assert.Error(t, err)
		assert.Empty(t, session.Calls)
	})

	t.Run("cancelled context stops the scan", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,c")...)
		cctx, cancel := context.WithCancel(ctx)

		_, err := sweeper.TopSenders(cctx, session, ScanOptions{
			RequestedCount: 3,
			Progress: func(processed, _ int) {
				if processed == 1 {
					cancel()
				}
			},
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, session.Fetched, 1)
	})
}
