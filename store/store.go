// Package store defines the read contracts the aggregation core needs
// from persistence: an append-only presence snapshot log and the
// subject roster. Implementations are injected; nothing in the core
// holds a connection singleton.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/glancehq/pulse/timeline"
)

// ErrNotFound marks a roster lookup for an unknown subject.
var ErrNotFound = errors.New("not found")

// Subject is one monitored workspace member, as synced from the
// external directory.
type Subject struct {
	ID          string
	Name        string
	DisplayName string
	Timezone    string
	TzOffsetSec int
	Deleted     bool
}

// SnapshotStore reads ranges from the append-only snapshot log. Rows
// are returned ordered by ObservedAt ascending. The core never writes
// presence data; ingestion belongs to the external collector.
type SnapshotStore interface {
	// SnapshotsInRange returns all snapshots for the subject set
	// with ObservedAt in [from, to).
	SnapshotsInRange(ctx context.Context, subjectIDs []string, from, to time.Time) ([]timeline.Snapshot, error)
}

// RosterStore reads the subject roster.
type RosterStore interface {
	// ListSubjects returns non-deleted subjects ordered by name.
	ListSubjects(ctx context.Context, limit, offset int) ([]Subject, int, error)

	// GetSubject returns one subject or ErrNotFound.
	GetSubject(ctx context.Context, id string) (Subject, error)
}
