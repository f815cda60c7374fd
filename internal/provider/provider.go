// Package provider holds the value types and errors shared by all external
// data-provider resolvers.
package provider

import "time"

// SourceMode tells whether a result was computed from live provider data or
// served from a stored snapshot.
type SourceMode string

const (
	SourceLive             SourceMode = "live"
	SourceSnapshotFallback SourceMode = "snapshot_fallback"
)

// Freshness describes how fresh a resolved result is. SnapshotAt and
// SnapshotAge are zero for live results.
type Freshness struct {
	Mode        SourceMode    `json:"source_mode"`
	SnapshotAt  time.Time     `json:"snapshot_at,omitzero"`
	SnapshotAge time.Duration `json:"snapshot_age,omitempty"`
}

// Live returns freshness metadata for a result computed from live data.
func Live() Freshness {
	return Freshness{Mode: SourceLive}
}

// FromSnapshot returns freshness metadata for a result served from a snapshot
// captured at the given time.
func FromSnapshot(capturedAt, now time.Time) Freshness {
	return Freshness{
		Mode:        SourceSnapshotFallback,
		SnapshotAt:  capturedAt,
		SnapshotAge: now.Sub(capturedAt),
	}
}
