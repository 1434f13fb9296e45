package model

import (
	"strings"
	"time"
)

// Kind classifies the subject of a notification thread.
type Kind string

const (
	KindIssue       Kind = "issue"
	KindPullRequest Kind = "pull_request"
	KindCommit      Kind = "commit"
	KindRelease     Kind = "release"
	KindCheckSuite  Kind = "check_suite"
	KindDiscussion  Kind = "discussion"
	KindOther       Kind = "other"
)

// KindFromSubjectType maps an upstream subject type string to a Kind.
// Unknown subject types map to KindOther.
func KindFromSubjectType(subjectType string) Kind {
	switch subjectType {
	case "Issue":
		return KindIssue
	case "PullRequest":
		return KindPullRequest
	case "Commit":
		return KindCommit
	case "Release":
		return KindRelease
	case "CheckSuite":
		return KindCheckSuite
	case "Discussion":
		return KindDiscussion
	default:
		return KindOther
	}
}

// Item is the unified representation of one notification thread.
type Item struct {
	// ID is the upstream thread identifier, stable across fetches.
	ID string `json:"id"`

	// Title is the subject line of the thread.
	Title string `json:"title"`

	// RepoFullName is the owning repository in "<group>/<resource>" form.
	RepoFullName string `json:"repo_full_name"`

	// Kind classifies the thread subject (issue, PR, commit, ...).
	Kind Kind `json:"kind"`

	// UpdatedAt is when the thread was last updated upstream.
	UpdatedAt time.Time `json:"updated_at"`

	// Number is the issue/PR number derived from the subject URL,
	// or 0 when the subject has no number (commits, releases).
	Number int `json:"number,omitempty"`

	// Reason is the upstream reason code for receiving the
	// notification (e.g., "mention", "review_requested").
	Reason string `json:"reason,omitempty"`

	// Unread reports whether the thread is unread upstream.
	Unread bool `json:"unread"`

	// URL is the API URL of the thread subject.
	URL string `json:"url,omitempty"`

	// RepoURL is the web URL of the owning repository.
	RepoURL string `json:"repo_url,omitempty"`

	// Subscribed reports whether the user is subscribed to the thread.
	Subscribed bool `json:"subscribed"`
}

// Group returns the owning namespace portion of RepoFullName
// (the part before the first "/"), or the whole name if it has no slash.
func (i Item) Group() string {
	if idx := strings.IndexByte(i.RepoFullName, '/'); idx >= 0 {
		return i.RepoFullName[:idx]
	}
	return i.RepoFullName
}

// Patch holds the mutable fields of an Item. Nil fields are left unchanged.
type Patch struct {
	Unread     *bool
	Subscribed *bool
}

// Apply returns a copy of item with the non-nil patch fields applied.
func (p Patch) Apply(item Item) Item {
	if p.Unread != nil {
		item.Unread = *p.Unread
	}
	if p.Subscribed != nil {
		item.Subscribed = *p.Subscribed
	}
	return item
}
