package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/ghnotify/internal/model"
)

// PageSize is the fixed page size the upstream serves. A page with fewer
// items than this is the last page.
const PageSize = 50

// Adapter maps the upstream notifications API onto the domain model. It
// is the page fetcher and single-thread mutator used by the sync engine.
type Adapter struct {
	client *Client
}

// NewAdapter creates an Adapter talking to baseURL with the given token.
func NewAdapter(baseURL, token string) *Adapter {
	return &Adapter{client: NewClient(baseURL, token)}
}

// FetchPage retrieves one page of notification threads, newest first.
// Page numbering starts at 1. An empty result means end of data.
func (a *Adapter) FetchPage(ctx context.Context, page int) ([]model.Item, error) {
	path := fmt.Sprintf(
		"/notifications?all=true&per_page=%d&page=%d", PageSize, page,
	)

	var threads []Thread
	if err := a.client.Get(ctx, path, &threads); err != nil {
		return nil, fmt.Errorf("fetching page %d: %w", page, err)
	}

	items := make([]model.Item, 0, len(threads))
	for _, t := range threads {
		items = append(items, itemFromThread(t))
	}
	return items, nil
}

// MarkThreadRead marks a single thread as read upstream.
func (a *Adapter) MarkThreadRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/threads/%s", id)
	if err := a.client.Patch(ctx, path, nil); err != nil {
		return fmt.Errorf("marking thread %s read: %w", id, err)
	}
	return nil
}

// DeleteThread archives a thread upstream. This is the remote half of the
// mark-as-done protocol and must succeed before the local tombstone is set.
func (a *Adapter) DeleteThread(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/threads/%s", id)
	if err := a.client.Delete(ctx, path); err != nil {
		return fmt.Errorf("deleting thread %s: %w", id, err)
	}
	return nil
}

// SetThreadSubscription sets the ignored flag on a thread's subscription.
// ignored=true mutes the thread, ignored=false subscribes to it.
func (a *Adapter) SetThreadSubscription(ctx context.Context, id string, ignored bool) error {
	path := fmt.Sprintf("/notifications/threads/%s/subscription", id)
	err := a.client.Put(ctx, path, subscriptionRequest{Ignored: ignored}, nil)
	if err != nil {
		return fmt.Errorf("updating subscription for thread %s: %w", id, err)
	}
	return nil
}

// GetThreadSubscription reads the current subscription state of a thread.
// A missing subscription record reads as not subscribed.
func (a *Adapter) GetThreadSubscription(ctx context.Context, id string) (bool, error) {
	path := fmt.Sprintf("/notifications/threads/%s/subscription", id)

	var sub Subscription
	if err := a.client.Get(ctx, path, &sub); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading subscription for thread %s: %w", id, err)
	}
	return sub.Subscribed && !sub.Ignored, nil
}

// itemFromThread converts an upstream thread to the domain item shape.
func itemFromThread(t Thread) model.Item {
	return model.Item{
		ID:           t.ID,
		Title:        t.Subject.Title,
		RepoFullName: t.Repository.FullName,
		Kind:         model.KindFromSubjectType(t.Subject.Type),
		UpdatedAt:    t.UpdatedAt,
		Number:       numberFromSubjectURL(t.Subject.URL),
		Reason:       t.Reason,
		Unread:       t.Unread,
		URL:          t.Subject.URL,
		RepoURL:      t.Repository.HTMLURL,
		Subscribed:   true,
	}
}

// numberFromSubjectURL extracts the trailing issue/PR number from a
// subject API URL (".../issues/123", ".../pulls/456"). Returns 0 when
// the URL has no numeric tail.
func numberFromSubjectURL(url string) int {
	if url == "" {
		return 0
	}
	idx := strings.LastIndexByte(url, '/')
	if idx < 0 || idx == len(url)-1 {
		return 0
	}
	n, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
