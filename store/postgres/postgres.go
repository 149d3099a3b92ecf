// Package postgres implements the snapshot and roster store contracts
// on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glancehq/pulse/store"
	"github.com/glancehq/pulse/timeline"
)

// Store reads the presence snapshot log and the subject roster. It
// holds a caller-owned pool; construct one per process and inject it
// (there is no package-global connection).
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SnapshotsInRange returns snapshots for the subject set with
// observed_at in [from, to), ordered ascending.
func (s *Store) SnapshotsInRange(ctx context.Context, subjectIDs []string, from, to time.Time) ([]timeline.Snapshot, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT subject_id, status, observed_at
		FROM presence_snapshots
		WHERE subject_id = ANY($1)
		  AND observed_at >= $2
		  AND observed_at < $3
		ORDER BY observed_at ASC
	`, subjectIDs, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []timeline.Snapshot
	for rows.Next() {
		var snap timeline.Snapshot
		var status string
		if err := rows.Scan(&snap.SubjectID, &status, &snap.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Status = timeline.Status(status)
		snap.ObservedAt = snap.ObservedAt.UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	return out, nil
}

// AppendSnapshots inserts rows into the append-only log. This is the
// external collector's side of the contract; the aggregation core
// never calls it.
func (s *Store) AppendSnapshots(ctx context.Context, snaps []timeline.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	rows := make([][]any, len(snaps))
	for i, sn := range snaps {
		rows[i] = []any{sn.SubjectID, string(sn.Status), sn.ObservedAt.UTC()}
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"presence_snapshots"},
		[]string{"subject_id", "status", "observed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("append snapshots: %w", err)
	}
	return nil
}

// ListSubjects returns non-deleted subjects ordered by name, plus the
// total non-deleted count for pagination.
func (s *Store) ListSubjects(ctx context.Context, limit, offset int) ([]store.Subject, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM subjects WHERE NOT deleted`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, display_name, timezone, tz_offset_sec
		FROM subjects
		WHERE NOT deleted
		ORDER BY name ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var out []store.Subject
	for rows.Next() {
		var sub store.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.DisplayName, &sub.Timezone, &sub.TzOffsetSec); err != nil {
			return nil, 0, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("read subjects: %w", err)
	}
	return out, total, nil
}

// GetSubject returns one subject or store.ErrNotFound.
func (s *Store) GetSubject(ctx context.Context, id string) (store.Subject, error) {
	var sub store.Subject
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, display_name, timezone, tz_offset_sec
		FROM subjects
		WHERE id = $1 AND NOT deleted
	`, id).Scan(&sub.ID, &sub.Name, &sub.DisplayName, &sub.Timezone, &sub.TzOffsetSec)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Subject{}, fmt.Errorf("subject %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Subject{}, fmt.Errorf("query subject: %w", err)
	}
	return sub, nil
}

// UpsertSubject writes a roster record. Like AppendSnapshots, this is
// the directory-sync side of the contract.
func (s *Store) UpsertSubject(ctx context.Context, sub store.Subject) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subjects (id, name, display_name, timezone, tz_offset_sec, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			timezone = EXCLUDED.timezone,
			tz_offset_sec = EXCLUDED.tz_offset_sec,
			deleted = EXCLUDED.deleted,
			updated_at = now()
	`, sub.ID, sub.Name, sub.DisplayName, sub.Timezone, sub.TzOffsetSec, sub.Deleted)
	if err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	return nil
}
