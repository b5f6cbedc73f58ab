package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/tests/testutil"
)

type MockSession struct {
	mock.Mock
}

func (m *MockSession) SelectFolder(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockSession) Search(ctx context.Context, criteria mailbox.Criteria) ([]mailbox.MessageID, error) {
	args := m.Called(ctx, criteria)
	ids, _ := args.Get(0).([]mailbox.MessageID)
	return ids, args.Error(1)
}

func (m *MockSession) FetchHeader(ctx context.Context, id mailbox.MessageID) ([]byte, error) {
	args := m.Called(ctx, id)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Error(1)
}

func (m *MockSession) StoreLabel(ctx context.Context, id mailbox.MessageID, label string) error {
	return m.Called(ctx, id, label).Error(0)
}

func (m *MockSession) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestApplyLabel(t *testing.T) {
	ctx := context.Background()
	sweeper := NewSweeper(testutil.NewTestLogger(t))

	t.Run("labels every message of each sender", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,a,c,a")...)

		outcomes, err := sweeper.ApplyLabel(ctx, session, []string{"a@x.com", "c@x.com"}, LabelOptions{Label: "ToDelete"})
		require.NoError(t, err)

		require.Len(t, outcomes, 2)
		assert.Equal(t, model.LabelingOutcome{Sender: "a@x.com", Status: model.OutcomeLabeled, Matched: 3}, outcomes[0])
		assert.Equal(t, model.LabelingOutcome{Sender: "c@x.com", Status: model.OutcomeLabeled, Matched: 1}, outcomes[1])
		assert.Equal(t, []mailbox.MessageID{1, 3, 4, 5}, session.LabeledIDs("ToDelete"))
	})

	t.Run("search failure for one sender does not stop the others", func(t *testing.T) {
		session := testutil.NewFakeSession("a@x.com", "a@x.com", "bad@y.com")
		session.SearchErr = map[string]error{`FROM "bad@y.com"`: errors.New("BAD parse error")}

		outcomes, err := sweeper.ApplyLabel(ctx, session, []string{"a@x.com", "bad@y.com"}, LabelOptions{Label: "ToDelete"})
		require.NoError(t, err)

		require.Len(t, outcomes, 2)
		assert.Equal(t, model.OutcomeLabeled, outcomes[0].Status)
		assert.Equal(t, 2, outcomes[0].Labeled())
		assert.True(t, outcomes[0].OK())

		assert.Equal(t, "bad@y.com", outcomes[1].Sender)
		assert.Equal(t, model.OutcomeSearchFailed, outcomes[1].Status)
		assert.False(t, outcomes[1].OK())
		assert.Equal(t, mailbox.OpSearch, mailbox.OpOf(outcomes[1].Err))

		assert.Equal(t, []mailbox.MessageID{1, 2}, session.LabeledIDs("ToDelete"))
	})

	t.Run("select failure is reported per sender", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)
		session.SelectErr = map[string]error{"INBOX": errors.New("NO mailbox locked")}

		outcomes, err := sweeper.ApplyLabel(ctx, session, []string{"a@x.com", "b@x.com"}, LabelOptions{Label: "ToDelete"})
		require.NoError(t, err)

		require.Len(t, outcomes, 2)
		for _, outcome := range outcomes {
			assert.Equal(t, model.OutcomeSelectFailed, outcome.Status)
			assert.Equal(t, mailbox.OpSelect, mailbox.OpOf(outcome.Err))
		}
	})

	t.Run("sender with no messages is labeled with zero matches", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)

		outcomes, err := sweeper.ApplyLabel(ctx, session, []string{"ghost@x.com"}, LabelOptions{Label: "ToDelete"})
		require.NoError(t, err)

		assert.Equal(t, []model.LabelingOutcome{{Sender: "ghost@x.com", Status: model.OutcomeLabeled}}, outcomes)
		assert.Empty(t, session.Labels)
	})

	t.Run("store failures are counted and the rest continue", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,a,a")...)
		session.StoreErr = map[mailbox.MessageID]error{2: errors.New("NO read-only")}

		outcomes, err := sweeper.ApplyLabel(ctx, session, []string{"a@x.com"}, LabelOptions{Label: "ToDelete"})
		require.NoError(t, err)

		require.Len(t, outcomes, 1)
		assert.Equal(t, 3, outcomes[0].Matched)
		assert.Equal(t, 1, outcomes[0].Failed)
		assert.Equal(t, 2, outcomes[0].Labeled())
		assert.False(t, outcomes[0].OK())
		assert.Equal(t, mailbox.OpStore, mailbox.OpOf(outcomes[0].Err))
		assert.Equal(t, []mailbox.MessageID{1, 3}, session.LabeledIDs("ToDelete"))
	})

	t.Run("applying twice leaves the same labels", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,a")...)
		opts := LabelOptions{Label: "ToDelete"}

		_, err := sweeper.ApplyLabel(ctx, session, []string{"a@x.com"}, opts)
		require.NoError(t, err)
		first := session.LabeledIDs("ToDelete")

		_, err = sweeper.ApplyLabel(ctx, session, []string{"a@x.com"}, opts)
		require.NoError(t, err)

		assert.Equal(t, first, session.LabeledIDs("ToDelete"))
		assert.Equal(t, map[string]bool{"ToDelete": true}, session.Labels[1])
	})

	t.Run("duplicate senders yield one outcome", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b")...)

		outcomes, err := sweeper.ApplyLabel(ctx, session,
			[]string{"b@x.com", "a@x.com", "b@x.com"},
			LabelOptions{Label: "ToDelete"},
		)
		require.NoError(t, err)

		require.Len(t, outcomes, 2)
		assert.Equal(t, "b@x.com", outcomes[0].Sender)
		assert.Equal(t, "a@x.com", outcomes[1].Sender)
	})

	t.Run("empty address gets an invalid outcome", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)

		var progress []int
		outcomes, err := sweeper.ApplyLabel(ctx, session, []string{"", "a@x.com", " ", ""}, LabelOptions{
			Label:    "ToDelete",
			Progress: func(done, _ int) { progress = append(progress, done) },
		})
		require.NoError(t, err)

		require.Len(t, outcomes, 3)
		assert.Equal(t, "", outcomes[0].Sender)
		assert.Equal(t, model.OutcomeInvalid, outcomes[0].Status)
		assert.Error(t, outcomes[0].Err)
		assert.False(t, outcomes[0].OK())
		assert.True(t, outcomes[1].OK())
		assert.Equal(t, 1, outcomes[1].Matched)
		assert.Equal(t, model.OutcomeInvalid, outcomes[2].Status)
		assert.Equal(t, []int{1, 2, 3}, progress)
		assert.Equal(t, []mailbox.MessageID{1}, session.LabeledIDs("ToDelete"))
	})

	t.Run("empty selection is a no-op", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)

		outcomes, err := sweeper.ApplyLabel(ctx, session, nil, LabelOptions{Label: "ToDelete"})
		require.NoError(t, err)

		assert.Empty(t, outcomes)
		assert.Empty(t, session.Calls)
	})

	t.Run("label name is required", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a")...)

		_, err := sweeper.ApplyLabel(ctx, session, []string{"a@x.com"}, LabelOptions{})
		assert.Error(t, err)
		assert.Empty(t, session.Calls)
	})

	t.Run("cancelled context skips remaining senders", func(t *testing.T) {
		session := testutil.NewFakeSession(addresses("a,b,c")...)
		cctx, cancel := context.WithCancel(ctx)

		var progress [][2]int
		outcomes, err := sweeper.ApplyLabel(cctx, session, addresses("a,b,c"), LabelOptions{
			Label: "ToDelete",
			Progress: func(done, total int) {
				progress = append(progress, [2]int{done, total})
				if done == 1 {
					cancel()
				}
			},
		})
		require.NoError(t, err)

		require.Len(t, outcomes, 3)
		assert.Equal(t, model.OutcomeLabeled, outcomes[0].Status)
		assert.Equal(t, model.OutcomeSkipped, outcomes[1].Status)
		assert.ErrorIs(t, outcomes[2].Err, context.Canceled)
		assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	})

	t.Run("commands are issued in order per sender", func(t *testing.T) {
		session := new(MockSession)
		session.On("SelectFolder", ctx, "Archive").Return(nil).Twice()
		session.On("Search", ctx, mailbox.From("a@x.com")).Return([]mailbox.MessageID{4, 9}, nil).Once()
		session.On("Search", ctx, mailbox.From("b@x.com")).Return([]mailbox.MessageID{}, nil).Once()
		session.On("StoreLabel", ctx, mailbox.MessageID(4), "Junk").Return(nil).Once()
		session.On("StoreLabel", ctx, mailbox.MessageID(9), "Junk").Return(nil).Once()

		var progress []int
		outcomes, err := sweeper.ApplyLabel(ctx, session, []string{"a@x.com", "b@x.com"}, LabelOptions{
			Folder:   "Archive",
			Label:    "Junk",
			Progress: func(done, _ int) { progress = append(progress, done) },
		})
		require.NoError(t, err)

		assert.Equal(t, 2, outcomes[0].Labeled())
		assert.Equal(t, 0, outcomes[1].Matched)
		assert.Equal(t, []int{1, 2}, progress)
		session.AssertExpectations(t)
		session.AssertNotCalled(t, "Logout", mock.Anything)
	})
}
