package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/ghnotify/internal/github"
	"github.com/nhle/ghnotify/internal/logging"
	"github.com/nhle/ghnotify/internal/model"
	"github.com/nhle/ghnotify/internal/store"
)

var _ Upstream = (*github.Adapter)(nil)

// State represents the engine's sync state.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Engine keeps the local cache in sync with the upstream inbox. It is the
// single writer to the store: syncs are serialized through a singleflight
// group (overlapping callers join the in-flight sync), and single-item
// mutations are gated per item id.
type Engine struct {
	store    store.Store
	upstream Upstream
	log      zerolog.Logger

	group singleflight.Group

	mu       gosync.Mutex
	state    State
	lastErr  error
	snapshot map[string]model.Item
	done     map[string]struct{}
	hidden   map[string]struct{}
	markers  model.Markers
	inflight map[string]struct{}
	subs     []chan []model.Item
}

// New creates an Engine and loads the persisted snapshot, tombstones,
// hidden groups, and markers from the store.
func New(s store.Store, upstream Upstream) (*Engine, error) {
	ctx := context.Background()

	items, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	done, err := s.DoneIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading done set: %w", err)
	}

	hidden, err := s.HiddenGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading hidden groups: %w", err)
	}

	markers, err := s.GetMarkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sync markers: %w", err)
	}

	snapshot := make(map[string]model.Item, len(items))
	for _, item := range items {
		snapshot[item.ID] = item
	}

	return &Engine{
		store:    s,
		upstream: upstream,
		log:      logging.Component("sync"),
		state:    StateIdle,
		snapshot: snapshot,
		done:     done,
		hidden:   hidden,
		markers:  markers,
		inflight: make(map[string]struct{}),
	}, nil
}

// Sync runs one full sync and returns the resulting visible set. A call
// made while a sync is already in flight does not start a second fetch:
// it blocks and receives the in-flight sync's result. Abandoning the
// caller's context does not abort the fetch or the cache commit.
func (e *Engine) Sync(ctx context.Context) ([]model.Item, error) {
	v, err, _ := e.group.Do("sync", func() (interface{}, error) {
		return e.syncOnce(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Item), nil
}

// syncOnce drives the paginated fetch loop and commits the result.
func (e *Engine) syncOnce(ctx context.Context) ([]model.Item, error) {
	e.mu.Lock()
	e.state = StateSyncing
	e.lastErr = nil
	markers := e.markers
	prior := make(map[string]model.Item, len(e.snapshot))
	for id, item := range e.snapshot {
		prior[id] = item
	}
	e.mu.Unlock()

	started := time.Now()

	var fetched []model.Item
	pages := 0
	for page := 1; ; page++ {
		items, err := e.upstream.FetchPage(ctx, page)
		if err != nil {
			e.fail(err)
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		pages++
		fetched = append(fetched, items...)

		// An under-sized page is the last one.
		if len(items) < github.PageSize {
			break
		}

		// Incremental bound: once the oldest item of a full page is at
		// or below the high-water mark, deeper pages hold nothing new.
		oldest := items[len(items)-1].UpdatedAt
		if !markers.LastSeenUpdatedAt.IsZero() && !oldest.After(markers.LastSeenUpdatedAt) {
			break
		}
	}

	// Page 1's first item is the globally newest. The marker never
	// moves backwards.
	if len(fetched) > 0 {
		if newest := fetched[0].UpdatedAt; newest.After(markers.LastSeenUpdatedAt) {
			markers.LastSeenUpdatedAt = newest
		}
	}
	markers.LastFetchAt = time.Now().UTC()

	// Union merge: fetched items win by id, items older than the
	// termination point are carried over from the prior snapshot.
	merged := mergeSnapshot(prior, fetched)

	if err := e.store.ReplaceSnapshot(ctx, merged); err != nil {
		e.fail(err)
		return nil, err
	}
	if err := e.store.SetMarkers(ctx, markers); err != nil {
		e.fail(err)
		return nil, err
	}

	e.mu.Lock()
	e.snapshot = make(map[string]model.Item, len(merged))
	for _, item := range merged {
		e.snapshot[item.ID] = item
	}
	e.markers = markers
	e.state = StateIdle
	visible := e.visibleLocked()
	e.mu.Unlock()

	e.log.Debug().
		Int("pages", pages).
		Int("fetched", len(fetched)).
		Int("cached", len(merged)).
		Int("visible", len(visible)).
		Dur("took", time.Since(started)).
		Msg("sync complete")

	e.publish(visible)
	return visible, nil
}

// MarkDone archives an item upstream and, only after the remote call
// succeeds, records the local tombstone. A second call for an id already
// done or already in flight is a no-op.
func (e *Engine) MarkDone(ctx context.Context, id string) error {
	if !e.beginItemOp(id) {
		return nil
	}
	defer e.endItemOp(id)

	e.mu.Lock()
	_, alreadyDone := e.done[id]
	e.mu.Unlock()
	if alreadyDone {
		return nil
	}

	if err := e.upstream.DeleteThread(ctx, id); err != nil {
		return err
	}
	if err := e.store.MarkDone(ctx, id); err != nil {
		return err
	}

	e.mu.Lock()
	e.done[id] = struct{}{}
	visible := e.visibleLocked()
	e.mu.Unlock()

	e.publish(visible)
	return nil
}

// MarkRead marks one item as read upstream, then patches the cached copy.
// Failure leaves the cached item untouched.
func (e *Engine) MarkRead(ctx context.Context, id string) error {
	if !e.beginItemOp(id) {
		return nil
	}
	defer e.endItemOp(id)

	e.mu.Lock()
	item, ok := e.snapshot[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown item %s", id)
	}
	if !item.Unread {
		return nil
	}

	if err := e.upstream.MarkThreadRead(ctx, id); err != nil {
		return err
	}

	unread := false
	return e.patchItem(ctx, model.Patch{Unread: &unread}.Apply(item))
}

// ToggleSubscription flips an item's subscription state upstream, then
// patches the cached copy. Failure leaves the cached item untouched.
func (e *Engine) ToggleSubscription(ctx context.Context, id string) error {
	if !e.beginItemOp(id) {
		return nil
	}
	defer e.endItemOp(id)

	e.mu.Lock()
	item, ok := e.snapshot[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown item %s", id)
	}

	// Subscribed threads get muted; muted threads get re-subscribed.
	if err := e.upstream.SetThreadSubscription(ctx, id, item.Subscribed); err != nil {
		return err
	}

	// Read the state back rather than assuming the flip took.
	subscribed, err := e.upstream.GetThreadSubscription(ctx, id)
	if err != nil {
		return err
	}
	return e.patchItem(ctx, model.Patch{Subscribed: &subscribed}.Apply(item))
}

// patchItem persists a single updated item and refreshes the cached copy.
func (e *Engine) patchItem(ctx context.Context, item model.Item) error {
	if err := e.store.UpdateItem(ctx, item); err != nil {
		return err
	}

	e.mu.Lock()
	e.snapshot[item.ID] = item
	visible := e.visibleLocked()
	e.mu.Unlock()

	e.publish(visible)
	return nil
}

// HideGroup excludes a group from the visible set. Takes effect
// immediately, without a new sync.
func (e *Engine) HideGroup(ctx context.Context, name string) error {
	if err := e.store.HideGroup(ctx, name); err != nil {
		return err
	}

	e.mu.Lock()
	e.hidden[name] = struct{}{}
	visible := e.visibleLocked()
	e.mu.Unlock()

	e.publish(visible)
	return nil
}

// UnhideGroup restores a group to the visible set.
func (e *Engine) UnhideGroup(ctx context.Context, name string) error {
	if err := e.store.UnhideGroup(ctx, name); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.hidden, name)
	visible := e.visibleLocked()
	e.mu.Unlock()

	e.publish(visible)
	return nil
}

// HiddenGroups returns the currently hidden group names, sorted.
func (e *Engine) HiddenGroups() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.hidden))
	for name := range e.hidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Visible returns the current visible set: the cached snapshot minus done
// tombstones minus hidden groups, newest first.
func (e *Engine) Visible() []model.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleLocked()
}

// UnreadCount returns the number of visible items that are unread.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, item := range e.visibleLocked() {
		if item.Unread {
			count++
		}
	}
	return count
}

// State returns the current sync state and, when failed, the last error.
func (e *Engine) State() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.lastErr
}

// Markers returns a copy of the current sync markers.
func (e *Engine) Markers() model.Markers {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markers
}

// Subscribe registers a passive observer of the visible set. Every
// committed change publishes the new visible set; slow observers miss
// intermediate states rather than blocking the engine.
func (e *Engine) Subscribe() <-chan []model.Item {
	ch := make(chan []model.Item, 16)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// Reset clears all persisted and in-memory state. Used on sign-out.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.ResetAll(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.snapshot = make(map[string]model.Item)
	e.done = make(map[string]struct{})
	e.hidden = make(map[string]struct{})
	e.markers = model.Markers{}
	e.state = StateIdle
	e.lastErr = nil
	e.mu.Unlock()

	e.publish(nil)
	return nil
}

// fail records a sync failure. The last successful snapshot stays visible.
func (e *Engine) fail(err error) {
	e.mu.Lock()
	e.state = StateFailed
	e.lastErr = err
	e.mu.Unlock()

	e.log.Warn().Err(err).Msg("sync failed")
}

// beginItemOp claims the per-id mutation slot. Returns false when a
// mutation for the same id is already in flight.
func (e *Engine) beginItemOp(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inflight[id]; busy {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Engine) endItemOp(id string) {
	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()
}

// visibleLocked computes the visible set. Caller must hold e.mu.
func (e *Engine) visibleLocked() []model.Item {
	visible := make([]model.Item, 0, len(e.snapshot))
	for id, item := range e.snapshot {
		if _, done := e.done[id]; done {
			continue
		}
		if _, hidden := e.hidden[item.Group()]; hidden {
			continue
		}
		visible = append(visible, item)
	}

	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].UpdatedAt.Equal(visible[j].UpdatedAt) {
			return visible[i].UpdatedAt.After(visible[j].UpdatedAt)
		}
		return visible[i].ID < visible[j].ID
	})
	return visible
}

// publish sends the visible set to all observers without blocking.
func (e *Engine) publish(visible []model.Item) {
	e.mu.Lock()
	subs := make([]chan []model.Item, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- visible:
		default:
			// Observer is behind; it will catch up on the next publish.
		}
	}
}

// mergeSnapshot unions the prior snapshot with the freshly fetched items,
// keyed by id with fetched entries winning. Pages beyond the incremental
// termination point are not re-fetched, so older cached items must be
// carried over rather than dropped.
func mergeSnapshot(prior map[string]model.Item, fetched []model.Item) []model.Item {
	merged := make(map[string]model.Item, len(prior)+len(fetched))
	for id, item := range prior {
		merged[id] = item
	}
	for _, item := range fetched {
		merged[item.ID] = item
	}

	items := make([]model.Item, 0, len(merged))
	for _, item := range merged {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}
