package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ghnotify/internal/model"
)

func TestFetchPageMapsThreads(t *testing.T) {
	updated := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("all"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))

		threads := []Thread{
			{
				ID:        "100",
				Unread:    true,
				Reason:    "review_requested",
				UpdatedAt: updated,
				Subject: Subject{
					Title: "Fix the frobnicator",
					URL:   "https://api.example/repos/acme/widgets/pulls/17",
					Type:  "PullRequest",
				},
				Repository: Repository{
					FullName: "acme/widgets",
					HTMLURL:  "https://example.com/acme/widgets",
				},
			},
			{
				ID:        "101",
				UpdatedAt: updated.Add(-time.Hour),
				Subject: Subject{
					Title: "v1.2.0",
					URL:   "https://api.example/repos/acme/widgets/releases/9001",
					Type:  "Release",
				},
				Repository: Repository{FullName: "acme/widgets"},
			},
			{
				ID:        "102",
				UpdatedAt: updated.Add(-2 * time.Hour),
				Subject: Subject{
					Title: "deadbeef pushed",
					URL:   "https://api.example/repos/acme/widgets/commits/deadbeef",
					Type:  "Commit",
				},
				Repository: Repository{FullName: "acme/widgets"},
			},
		}
		json.NewEncoder(w).Encode(threads)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	items, err := a.FetchPage(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, items, 3)

	pr := items[0]
	assert.Equal(t, "100", pr.ID)
	assert.Equal(t, model.KindPullRequest, pr.Kind)
	assert.Equal(t, "Fix the frobnicator", pr.Title)
	assert.Equal(t, "acme/widgets", pr.RepoFullName)
	assert.Equal(t, "acme", pr.Group())
	assert.Equal(t, 17, pr.Number)
	assert.Equal(t, "review_requested", pr.Reason)
	assert.True(t, pr.Unread)
	assert.True(t, pr.Subscribed)
	assert.True(t, pr.UpdatedAt.Equal(updated))

	assert.Equal(t, model.KindRelease, items[1].Kind)
	assert.Equal(t, 9001, items[1].Number)

	// Commit subject URLs have no numeric tail.
	assert.Equal(t, model.KindCommit, items[2].Kind)
	assert.Equal(t, 0, items[2].Number)
}

func TestFetchPageEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	items, err := a.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, IsAuthError(err))
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var fErr *ForbiddenError
				assert.True(t, errors.As(err, &fErr))
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.True(t, IsNotFound(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var sErr *StatusError
				require.True(t, errors.As(err, &sErr))
				assert.Equal(t, http.StatusInternalServerError, sErr.StatusCode)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			a := NewAdapter(srv.URL, "tok")
			_, err := a.FetchPage(context.Background(), 1)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestTransportErrorOnConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	a := NewAdapter(srv.URL, "tok")
	_, err := a.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestDecodeErrorOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	_, err := a.FetchPage(context.Background(), 1)
	require.Error(t, err)

	var dErr *DecodeError
	assert.True(t, errors.As(err, &dErr))
}

func TestMissingTokenFailsWithoutRequest(t *testing.T) {
	a := NewAdapter("https://api.example", "")
	_, err := a.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestDeleteThread(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	require.NoError(t, a.DeleteThread(context.Background(), "123"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/notifications/threads/123", gotPath)
}

func TestMarkThreadRead(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusResetContent)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	require.NoError(t, a.MarkThreadRead(context.Background(), "123"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/notifications/threads/123", gotPath)
}

func TestSetThreadSubscription(t *testing.T) {
	var gotBody subscriptionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/notifications/threads/123/subscription", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(Subscription{Ignored: true})
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	require.NoError(t, a.SetThreadSubscription(context.Background(), "123", true))
	assert.True(t, gotBody.Ignored)
}

func TestGetThreadSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Subscription{Subscribed: true})
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	subscribed, err := a.GetThreadSubscription(context.Background(), "123")
	require.NoError(t, err)
	assert.True(t, subscribed)
}

func TestGetThreadSubscriptionMissingReadsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	subscribed, err := a.GetThreadSubscription(context.Background(), "123")
	require.NoError(t, err)
	assert.False(t, subscribed)
}

func TestRetryOnRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "tok")
	_, err := a.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestNumberFromSubjectURL(t *testing.T) {
	assert.Equal(t, 17, numberFromSubjectURL("https://api.example/repos/a/b/pulls/17"))
	assert.Equal(t, 0, numberFromSubjectURL("https://api.example/repos/a/b/commits/deadbeef"))
	assert.Equal(t, 0, numberFromSubjectURL("https://api.example/trailing/"))
	assert.Equal(t, 0, numberFromSubjectURL(""))
}
