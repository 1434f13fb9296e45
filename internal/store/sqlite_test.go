package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ghnotify/internal/model"
)

// newTestStore creates a file-backed store in a temp dir with all
// migrations applied and closes it when the test completes.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err, "creating test store")

	t.Cleanup(func() {
		assert.NoError(t, s.Close(), "closing test store")
	})
	return s
}

func testItem(id string, updatedAt time.Time) model.Item {
	return model.Item{
		ID:           id,
		Title:        "thread " + id,
		RepoFullName: "acme/widgets",
		Kind:         model.KindIssue,
		UpdatedAt:    updatedAt,
		Number:       42,
		Reason:       "mention",
		Unread:       true,
		URL:          "https://api.github.example/repos/acme/widgets/issues/42",
		RepoURL:      "https://github.example/acme/widgets",
		Subscribed:   true,
	}
}

func TestSnapshotReplaceAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Absent snapshot reads as nil.
	items, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, items)

	now := time.Now().UTC().Truncate(time.Second)
	first := []model.Item{
		testItem("t1", now),
		testItem("t2", now.Add(-time.Minute)),
	}
	require.NoError(t, s.ReplaceSnapshot(ctx, first))

	items, err = s.GetSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "t1", items[0].ID)
	assert.Equal(t, model.KindIssue, items[0].Kind)
	assert.True(t, items[0].Unread)
	assert.True(t, items[0].Subscribed)
	assert.Equal(t, 42, items[0].Number)
	assert.WithinDuration(t, now, items[0].UpdatedAt, time.Second)

	// Replace is wholesale: previous rows are gone.
	require.NoError(t, s.ReplaceSnapshot(ctx, []model.Item{testItem("t3", now)}))

	items, err = s.GetSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t3", items[0].ID)
}

func TestUpdateItemUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	item := testItem("t1", now)
	require.NoError(t, s.ReplaceSnapshot(ctx, []model.Item{item}))

	item.Unread = false
	item.Subscribed = false
	require.NoError(t, s.UpdateItem(ctx, item))

	items, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Unread)
	assert.False(t, items[0].Subscribed)

	// Upserting an id not in the snapshot inserts it.
	require.NoError(t, s.UpdateItem(ctx, testItem("t9", now)))
	items, err = s.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMarkDoneIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done, err := s.IsDone(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkDone(ctx, "t1"))
	require.NoError(t, s.MarkDone(ctx, "t1"))

	done, err = s.IsDone(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, done)

	ids, err := s.DoneIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Contains(t, ids, "t1")
}

func TestHiddenGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.HideGroup(ctx, "acme"))
	require.NoError(t, s.HideGroup(ctx, "acme"))
	require.NoError(t, s.HideGroup(ctx, "globex"))

	hidden, err := s.HiddenGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, hidden, 2)
	assert.Contains(t, hidden, "acme")
	assert.Contains(t, hidden, "globex")

	require.NoError(t, s.UnhideGroup(ctx, "acme"))
	require.NoError(t, s.UnhideGroup(ctx, "acme"))

	hidden, err = s.HiddenGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, hidden, 1)
	assert.Contains(t, hidden, "globex")
}

func TestMarkersRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// No row yet: zero markers.
	markers, err := s.GetMarkers(ctx)
	require.NoError(t, err)
	assert.True(t, markers.LastFetchAt.IsZero())
	assert.True(t, markers.LastSeenUpdatedAt.IsZero())

	now := time.Now().UTC().Truncate(time.Second)

	// A zero LastSeenUpdatedAt persists as NULL and reads back zero.
	require.NoError(t, s.SetMarkers(ctx, model.Markers{LastFetchAt: now}))
	markers, err = s.GetMarkers(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, now, markers.LastFetchAt, time.Second)
	assert.True(t, markers.LastSeenUpdatedAt.IsZero())

	seen := now.Add(-time.Hour)
	require.NoError(t, s.SetMarkers(ctx, model.Markers{
		LastFetchAt:       now,
		LastSeenUpdatedAt: seen,
	}))
	markers, err = s.GetMarkers(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, seen, markers.LastSeenUpdatedAt, time.Second)
}

func TestResetAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.ReplaceSnapshot(ctx, []model.Item{testItem("t1", now)}))
	require.NoError(t, s.MarkDone(ctx, "t1"))
	require.NoError(t, s.HideGroup(ctx, "acme"))
	require.NoError(t, s.SetMarkers(ctx, model.Markers{LastFetchAt: now}))

	require.NoError(t, s.ResetAll(ctx))

	items, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, items)

	done, err := s.DoneIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, done)

	hidden, err := s.HiddenGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	markers, err := s.GetMarkers(ctx)
	require.NoError(t, err)
	assert.True(t, markers.LastFetchAt.IsZero())
}
