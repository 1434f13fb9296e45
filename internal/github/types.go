package github

import "time"

// Thread represents a notification thread as returned by the upstream API.
type Thread struct {
	ID         string     `json:"id"`
	Unread     bool       `json:"unread"`
	Reason     string     `json:"reason"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Subject    Subject    `json:"subject"`
	Repository Repository `json:"repository"`
	URL        string     `json:"url"`
}

// Subject describes what a notification thread is about.
type Subject struct {
	Title            string `json:"title"`
	URL              string `json:"url"`
	LatestCommentURL string `json:"latest_comment_url"`
	Type             string `json:"type"` // Issue, PullRequest, Commit, Release, CheckSuite, Discussion
}

// Repository is the owning repository of a thread.
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// Subscription is the subscription state of a single thread.
type Subscription struct {
	Subscribed bool   `json:"subscribed"`
	Ignored    bool   `json:"ignored"`
	Reason     string `json:"reason"`
}

// subscriptionRequest is the body of a PUT subscription call.
type subscriptionRequest struct {
	Ignored bool `json:"ignored"`
}
