// Package timeline turns sparse per-minute presence snapshots into
// fixed 96-block (15-minute) daily activity timelines.
package timeline

import "time"

// Status is the raw presence reading reported by the collector.
type Status string

const (
	StatusActive Status = "active"
	StatusAway   Status = "away"
)

// BlockStatus is the aggregate classification of one 15-minute block.
type BlockStatus string

const (
	BlockOnline  BlockStatus = "online"
	BlockOffline BlockStatus = "offline"
	BlockNoData  BlockStatus = "no-data"
)

const (
	// BlockDuration is the width of one timeline block.
	BlockDuration = 15 * time.Minute

	// BlocksPerDay is the number of blocks covering a full day.
	BlocksPerDay = 96

	// MinutesPerBlock is the nominal sample capacity of a block,
	// assuming the collector reports roughly once per minute.
	MinutesPerBlock = 15
)

// Snapshot is one observed presence reading for a subject at an
// instant. Snapshots are append-only and immutable; the collector may
// emit more than one per minute under jitter, and duplicates are
// tolerated rather than deduplicated.
type Snapshot struct {
	SubjectID  string
	Status     Status
	ObservedAt time.Time
}

// Valid reports whether the snapshot is well formed enough to take
// part in block assignment. Malformed rows (zero timestamp, unknown
// status) are skipped so that one corrupt row cannot blank out a
// subject's whole day.
func (s Snapshot) Valid() bool {
	if s.ObservedAt.IsZero() {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusAway
}
