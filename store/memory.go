package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/glancehq/pulse/timeline"
)

// Memory is an in-memory SnapshotStore and RosterStore for tests and
// local development. Appends and reads are safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	snapshots []timeline.Snapshot
	subjects  []Subject

	// FailWith, when set, makes every read return this error. Lets
	// tests verify that store failures propagate instead of turning
	// into empty timelines.
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{}
}

// AddSubject registers a roster record.
func (m *Memory) AddSubject(s Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, s)
	sort.Slice(m.subjects, func(i, j int) bool { return m.subjects[i].Name < m.subjects[j].Name })
}

// Append adds snapshots to the log, preserving append-only semantics.
func (m *Memory) Append(snaps ...timeline.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snaps...)
}

func (m *Memory) SnapshotsInRange(ctx context.Context, subjectIDs []string, from, to time.Time) ([]timeline.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, fmt.Errorf("memory store: %w", m.FailWith)
	}

	want := make(map[string]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		want[id] = true
	}

	var out []timeline.Snapshot
	for _, s := range m.snapshots {
		if !want[s.SubjectID] {
			continue
		}
		if s.ObservedAt.Before(from) || !s.ObservedAt.Before(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

func (m *Memory) ListSubjects(ctx context.Context, limit, offset int) ([]Subject, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, 0, fmt.Errorf("memory store: %w", m.FailWith)
	}

	var live []Subject
	for _, s := range m.subjects {
		if !s.Deleted {
			live = append(live, s)
		}
	}
	total := len(live)
	if offset >= len(live) {
		return []Subject{}, total, nil
	}
	live = live[offset:]
	if limit > 0 && limit < len(live) {
		live = live[:limit]
	}
	return live, total, nil
}

func (m *Memory) GetSubject(ctx context.Context, id string) (Subject, error) {
	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return Subject{}, fmt.Errorf("memory store: %w", m.FailWith)
	}

	for _, s := range m.subjects {
		if s.ID == id && !s.Deleted {
			return s, nil
		}
	}
	return Subject{}, fmt.Errorf("subject %q: %w", id, ErrNotFound)
}
