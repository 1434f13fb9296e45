package model

import "time"

// Markers records sync progress across runs. Zero times mean "never".
type Markers struct {
	// LastFetchAt is when the last successful sync completed.
	LastFetchAt time.Time `json:"last_fetch_at"`

	// LastSeenUpdatedAt is the high-water mark: the UpdatedAt of the
	// newest item observed across all completed syncs. Once set it
	// only ever moves forward.
	LastSeenUpdatedAt time.Time `json:"last_seen_updated_at"`
}
