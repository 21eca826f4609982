package pinstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pinworld/internal/apperror"
	"pinworld/internal/feed"
	"pinworld/internal/model"
	"pinworld/internal/repository/memory"
	repoMocks "pinworld/internal/repository/mocks"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// chanFeed is a ChangeFeed driven by the test.
type chanFeed struct {
	events chan feed.Event
}

func newChanFeed() *chanFeed {
	return &chanFeed{events: make(chan feed.Event, 8)}
}

func (f *chanFeed) Watch(ctx context.Context) <-chan feed.Event {
	out := make(chan feed.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func newStore(t *testing.T, clock *time.Time) (*Store, *memory.Collection) {
	t.Helper()
	coll := memory.NewCollection()
	s := New(coll, coll, zap.NewNop())
	s.now = func() time.Time { return *clock }
	return s, coll
}

func nextSnapshot(t *testing.T, sub *Subscription) []model.Pin {
	t.Helper()
	select {
	case pins, ok := <-sub.Snapshots():
		require.True(t, ok, "snapshots closed")
		return pins
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

// waitFor reads snapshots until one satisfies cond.
func waitFor(t *testing.T, sub *Subscription, cond func([]model.Pin) bool) []model.Pin {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case pins, ok := <-sub.Snapshots():
			require.True(t, ok, "snapshots closed")
			if cond(pins) {
				return pins
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
			return nil
		}
	}
}

func TestStore_AddPinAppearsInNextSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s, _ := newStore(t, &clock)

	sub := s.Subscribe(ctx)
	defer sub.Close()
	assert.Empty(t, nextSnapshot(t, sub))

	payload := model.Fields{"title": "Harbour", "lat": 22.3, "images": []any{"https://x/1.png"}}
	id, err := s.AddPin(ctx, payload)
	require.NoError(t, err)

	pins := waitFor(t, sub, func(p []model.Pin) bool { return len(p) == 1 })
	assert.Equal(t, id, pins[0].ID)
	assert.Equal(t, payload, pins[0].Fields)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", pins[0].CreatedAt)
	assert.Empty(t, pins[0].UpdatedAt)
}

func TestStore_AddPinStripsCallerID(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s, coll := newStore(t, &clock)

	id, err := s.AddPin(ctx, model.Fields{"id": "client-id", "createdAt": "1999-01-01T00:00:00.000Z", "title": "t"})
	require.NoError(t, err)
	assert.NotEqual(t, "client-id", id)

	pins, _ := coll.List(ctx)
	require.Len(t, pins, 1)
	assert.Equal(t, model.Fields{"title": "t"}, pins[0].Fields)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", pins[0].CreatedAt)
}

func TestStore_SnapshotOrderIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s, _ := newStore(t, &clock)

	first, _ := s.AddPin(ctx, model.Fields{"n": 1})
	clock = clock.Add(time.Second)
	second, _ := s.AddPin(ctx, model.Fields{"n": 2})
	clock = clock.Add(time.Second)
	third, _ := s.AddPin(ctx, model.Fields{"n": 3})

	sub := s.Subscribe(ctx)
	defer sub.Close()

	pins := nextSnapshot(t, sub)
	require.Len(t, pins, 3)
	assert.Equal(t, []string{third, second, first}, []string{pins[0].ID, pins[1].ID, pins[2].ID})
}

func TestStore_SnapshotIDOverridesPayloadID(t *testing.T) {
	repo := new(repoMocks.MockPinRepository)
	f := newChanFeed()
	s := New(repo, f, zap.NewNop())

	repo.On("List", mock.Anything).Return([]model.Pin{{
		ID:        "doc-key",
		Fields:    model.Fields{"id": "stale-id", "title": "x"},
		CreatedAt: "2024-01-01T00:00:00.000Z",
	}}, nil)

	sub := s.Subscribe(context.Background())
	defer sub.Close()

	pins := nextSnapshot(t, sub)
	require.Len(t, pins, 1)
	assert.Equal(t, "doc-key", pins[0].ID)
	assert.NotContains(t, pins[0].Fields, "id")
}

func TestStore_UpdatePinKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s, coll := newStore(t, &clock)

	id, err := s.AddPin(ctx, model.Fields{"title": "before"})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	err = s.UpdatePin(ctx, id, model.Fields{"id": "other", "title": "after", "createdAt": "2000-01-01T00:00:00.000Z"})
	require.NoError(t, err)

	pins, _ := coll.List(ctx)
	require.Len(t, pins, 1)
	assert.Equal(t, id, pins[0].ID)
	assert.Equal(t, "after", pins[0].Fields["title"])
	assert.Equal(t, "2024-05-01T12:00:00.000Z", pins[0].CreatedAt)
	assert.Equal(t, "2024-05-01T13:00:00.000Z", pins[0].UpdatedAt)

	clock = clock.Add(time.Hour)
	require.NoError(t, s.UpdatePin(ctx, id, model.Fields{}))
	pins, _ = coll.List(ctx)
	assert.Equal(t, "2024-05-01T14:00:00.000Z", pins[0].UpdatedAt)
}

func TestStore_UpdateMissingPin(t *testing.T) {
	clock := fixedNow
	s, _ := newStore(t, &clock)

	err := s.UpdatePin(context.Background(), "nope", model.Fields{"a": 1})

	var wErr *WriteError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, "update", wErr.Op)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestStore_MissingIDIsLoggedNoop(t *testing.T) {
	repo := new(repoMocks.MockPinRepository)
	core, logs := observer.New(zap.WarnLevel)
	s := New(repo, newChanFeed(), zap.New(core))

	assert.NoError(t, s.UpdatePin(context.Background(), "", model.Fields{"a": 1}))
	assert.NoError(t, s.DeletePin(context.Background(), ""))

	repo.AssertNotCalled(t, "Merge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	assert.Equal(t, 1, logs.FilterMessage("pin_update_skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("pin_delete_skipped").Len())
}

func TestStore_WriteErrors(t *testing.T) {
	ctx := context.Background()
	denied := errors.New("permission denied")

	tests := []struct {
		name  string
		setup func(repo *repoMocks.MockPinRepository)
		call  func(s *Store) error
		op    string
	}{
		{
			name: "add",
			setup: func(repo *repoMocks.MockPinRepository) {
				repo.On("Insert", ctx, mock.Anything, mock.Anything).Return("", denied)
			},
			call: func(s *Store) error {
				_, err := s.AddPin(ctx, model.Fields{"a": 1})
				return err
			},
			op: "add",
		},
		{
			name: "update",
			setup: func(repo *repoMocks.MockPinRepository) {
				repo.On("Merge", ctx, "p1", mock.Anything, mock.Anything).Return(denied)
			},
			call: func(s *Store) error { return s.UpdatePin(ctx, "p1", model.Fields{"a": 1}) },
			op:   "update",
		},
		{
			name:  "delete",
			setup: func(repo *repoMocks.MockPinRepository) { repo.On("Delete", ctx, "p1").Return(denied) },
			call:  func(s *Store) error { return s.DeletePin(ctx, "p1") },
			op:    "delete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(repoMocks.MockPinRepository)
			tt.setup(repo)
			s := New(repo, newChanFeed(), zap.NewNop())

			err := tt.call(s)

			var wErr *WriteError
			require.ErrorAs(t, err, &wErr)
			assert.Equal(t, tt.op, wErr.Op)
			assert.ErrorIs(t, err, denied)
			repo.AssertExpectations(t)
		})
	}
}

func TestStore_AddPinRejectsUnencodableFields(t *testing.T) {
	repo := new(repoMocks.MockPinRepository)
	s := New(repo, newChanFeed(), zap.NewNop())

	_, err := s.AddPin(context.Background(), model.Fields{"fn": func() {}})

	assert.ErrorIs(t, err, apperror.ErrValidation)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_DeletePinRemovesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s, _ := newStore(t, &clock)

	id, _ := s.AddPin(ctx, model.Fields{"title": "gone soon"})
	sub := s.Subscribe(ctx)
	defer sub.Close()
	waitFor(t, sub, func(p []model.Pin) bool { return len(p) == 1 })

	require.NoError(t, s.DeletePin(ctx, id))
	waitFor(t, sub, func(p []model.Pin) bool { return len(p) == 0 })
}

func TestSubscription_FanOutToAllSubscribers(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s, _ := newStore(t, &clock)

	a := s.Subscribe(ctx)
	defer a.Close()
	b := s.Subscribe(ctx)
	defer b.Close()

	id, err := s.AddPin(ctx, model.Fields{"title": "shared"})
	require.NoError(t, err)

	for _, sub := range []*Subscription{a, b} {
		pins := waitFor(t, sub, func(p []model.Pin) bool { return len(p) == 1 })
		assert.Equal(t, id, pins[0].ID)
	}
}

func TestSubscription_LoadingFlag(t *testing.T) {
	repo := new(repoMocks.MockPinRepository)
	release := make(chan time.Time)
	repo.On("List", mock.Anything).WaitUntil(release).Return([]model.Pin{}, nil)

	s := New(repo, newChanFeed(), zap.NewNop())
	sub := s.Subscribe(context.Background())
	defer sub.Close()

	assert.True(t, sub.Loading())
	close(release)

	nextSnapshot(t, sub)
	assert.False(t, sub.Loading())
	assert.NoError(t, sub.Err())
}

func TestSubscription_FirstSnapshotFailure(t *testing.T) {
	repo := new(repoMocks.MockPinRepository)
	denied := errors.New("missing or insufficient permissions")
	repo.On("List", mock.Anything).Return(nil, denied)

	s := New(repo, newChanFeed(), zap.NewNop())
	sub := s.Subscribe(context.Background())
	defer sub.Close()

	assert.Eventually(t, func() bool { return !sub.Loading() }, 2*time.Second, 10*time.Millisecond)
	var subErr *SubscriptionError
	require.ErrorAs(t, sub.Err(), &subErr)
	assert.ErrorIs(t, sub.Err(), denied)
}

func TestSubscription_FeedErrorKeepsStreaming(t *testing.T) {
	repo := new(repoMocks.MockPinRepository)
	repo.On("List", mock.Anything).Return([]model.Pin{}, nil)
	f := newChanFeed()

	s := New(repo, f, zap.NewNop())
	sub := s.Subscribe(context.Background())
	defer sub.Close()
	nextSnapshot(t, sub)

	f.events <- feed.Event{Err: errors.New("permission revoked")}
	assert.Eventually(t, func() bool { return sub.Err() != nil }, 2*time.Second, 10*time.Millisecond)

	f.events <- feed.Event{Op: feed.OpResync}
	nextSnapshot(t, sub)
	assert.NoError(t, sub.Err())
}

func TestSubscription_LatestSnapshotWins(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s, _ := newStore(t, &clock)

	sub := s.Subscribe(ctx)
	defer sub.Close()
	nextSnapshot(t, sub)

	for i := 0; i < 5; i++ {
		_, err := s.AddPin(ctx, model.Fields{"n": i})
		require.NoError(t, err)
	}

	pins := waitFor(t, sub, func(p []model.Pin) bool { return len(p) == 5 })
	assert.Len(t, pins, 5)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	clock := fixedNow
	s, _ := newStore(t, &clock)

	sub := s.Subscribe(context.Background())
	sub.Close()
	sub.Close()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Snapshots():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("snapshots channel not closed")
		}
	}
}

func TestSubscription_EndsWithContext(t *testing.T) {
	clock := fixedNow
	s, _ := newStore(t, &clock)
	ctx, cancel := context.WithCancel(context.Background())

	sub := s.Subscribe(ctx)
	cancel()

	select {
	case <-sub.done:
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
	sub.Close()
}
