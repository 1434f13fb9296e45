package sync

import (
	"context"

	"github.com/nhle/ghnotify/internal/model"
)

// Upstream is the contract the engine needs from the remote API: one
// bounded page fetch, the single-thread mutations, and the subscription
// read-back.
type Upstream interface {
	// FetchPage retrieves one page of items, newest-updated first.
	// Page numbering starts at 1; an empty page means end of data.
	FetchPage(ctx context.Context, page int) ([]model.Item, error)

	// MarkThreadRead marks one thread as read upstream.
	MarkThreadRead(ctx context.Context, id string) error

	// DeleteThread archives one thread upstream.
	DeleteThread(ctx context.Context, id string) error

	// SetThreadSubscription mutes (ignored=true) or subscribes to a thread.
	SetThreadSubscription(ctx context.Context, id string, ignored bool) error

	// GetThreadSubscription reads a thread's effective subscription state.
	GetThreadSubscription(ctx context.Context, id string) (bool, error)
}
