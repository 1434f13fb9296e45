package store

import (
	"context"

	"github.com/nhle/ghnotify/internal/model"
)

// Store defines the persistence contract for the cached snapshot, done
// tombstones, hidden groups, and sync markers. Implementations are not
// required to be internally synchronized: all mutating calls must come
// from the single sync engine (see internal/sync).
type Store interface {
	// GetSnapshot returns the last persisted snapshot, or nil when
	// nothing has been cached yet.
	GetSnapshot(ctx context.Context) ([]model.Item, error)

	// ReplaceSnapshot atomically replaces the whole cached snapshot.
	ReplaceSnapshot(ctx context.Context, items []model.Item) error

	// UpdateItem upserts a single item in the cached snapshot.
	UpdateItem(ctx context.Context, item model.Item) error

	// MarkDone inserts id into the done set. Idempotent.
	MarkDone(ctx context.Context, id string) error

	// IsDone reports whether id is in the done set.
	IsDone(ctx context.Context, id string) (bool, error)

	// DoneIDs returns the full done set.
	DoneIDs(ctx context.Context) (map[string]struct{}, error)

	// HideGroup adds a group name to the hidden set. Idempotent.
	HideGroup(ctx context.Context, name string) error

	// UnhideGroup removes a group name from the hidden set.
	UnhideGroup(ctx context.Context, name string) error

	// HiddenGroups returns the set of hidden group names.
	HiddenGroups(ctx context.Context) (map[string]struct{}, error)

	// GetMarkers returns the persisted sync markers. Zero-valued
	// markers mean no sync has completed yet.
	GetMarkers(ctx context.Context) (model.Markers, error)

	// SetMarkers persists the sync markers.
	SetMarkers(ctx context.Context, markers model.Markers) error

	// ResetAll clears the snapshot, done set, hidden groups, and
	// markers together. Used on sign-out.
	ResetAll(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
