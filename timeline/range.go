package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// CurrentOnlineWindow is the trailing window for the "is currently
// online" predicate. It is deliberately distinct from block
// classification: the two can disagree near a block boundary.
const CurrentOnlineWindow = 15 * time.Minute

// SnapshotSource is the read contract the assembler needs from the
// snapshot store: rows for a subject set within [from, to), ordered by
// ObservedAt ascending. The assembler never writes presence data.
type SnapshotSource interface {
	SnapshotsInRange(ctx context.Context, subjectIDs []string, from, to time.Time) ([]Snapshot, error)
}

// RangeTimeline is the per-subject result of a range assembly.
type RangeTimeline struct {
	SubjectID          string        `json:"subject_id"`
	Days               []DayTimeline `json:"days"` // most recent first
	DayCount           int           `json:"day_count"`
	TotalActiveMinutes int           `json:"total_active_minutes"`
	IsCurrentlyOnline  bool          `json:"is_currently_online"`
	LastActiveTime     *time.Time    `json:"last_active_time,omitempty"`
}

// AssemblerConfig wires an Assembler.
type AssemblerConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Source SnapshotSource
	Policy Policy

	// MaxConcurrency bounds the per-subject assembly workers.
	// Parallelism is a throughput optimization only; results do not
	// depend on it. Defaults to 8.
	MaxConcurrency int
}

func (cfg *AssemblerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.Source == nil {
		return errors.New("snapshot source is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid classification policy: %w", err)
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", cfg.MaxConcurrency)
	}
	return nil
}

// Assembler composes the bucketizer and classifier across day ranges
// and subject sets. It is stateless across requests; every call
// computes fresh output from the store's state at query time.
type Assembler struct {
	log    *slog.Logger
	clock  clockwork.Clock
	source SnapshotSource
	policy Policy
	limit  int
}

func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid assembler config: %w", err)
	}
	return &Assembler{
		log:    cfg.Logger,
		clock:  cfg.Clock,
		source: cfg.Source,
		policy: cfg.Policy,
		limit:  cfg.MaxConcurrency,
	}, nil
}

// AssembleRange computes one RangeTimeline per subject for the
// resolved window. It issues exactly two store reads regardless of day
// or subject count: the range fetch and the trailing current-online
// fetch, run concurrently. Days are returned most recent first; result
// order follows subjectIDs.
func (a *Assembler) AssembleRange(ctx context.Context, subjectIDs []string, window Window) ([]RangeTimeline, error) {
	if len(subjectIDs) == 0 {
		return []RangeTimeline{}, nil
	}

	now := a.clock.Now().UTC()

	var rangeSnaps, recentSnaps []Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snaps, err := a.source.SnapshotsInRange(gctx, subjectIDs, window.RangeStart, window.RangeEnd)
		if err != nil {
			return fmt.Errorf("range snapshot query: %w", err)
		}
		rangeSnaps = snaps
		return nil
	})
	g.Go(func() error {
		snaps, err := a.source.SnapshotsInRange(gctx, subjectIDs, now.Add(-CurrentOnlineWindow), now.Add(time.Second))
		if err != nil {
			return fmt.Errorf("current-online snapshot query: %w", err)
		}
		recentSnaps = snaps
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bySubject := make(map[string][]Snapshot, len(subjectIDs))
	for _, s := range rangeSnaps {
		bySubject[s.SubjectID] = append(bySubject[s.SubjectID], s)
	}
	presence := currentPresence(recentSnaps, rangeSnaps)

	results := make([]RangeTimeline, len(subjectIDs))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i, id := range subjectIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.assembleSubject(id, bySubject[id], window, presence[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.log.Debug("assembled range",
		"subjects", len(subjectIDs),
		"days", window.DayCount(),
		"snapshots", len(rangeSnaps),
	)
	return results, nil
}

func (a *Assembler) assembleSubject(id string, snaps []Snapshot, window Window, p subjectPresence) RangeTimeline {
	rt := RangeTimeline{
		SubjectID:         id,
		Days:              make([]DayTimeline, 0, window.DayCount()),
		DayCount:          window.DayCount(),
		IsCurrentlyOnline: p.online,
	}
	if !p.lastActive.IsZero() {
		t := p.lastActive
		rt.LastActiveTime = &t
	}

	for _, dayStart := range window.DayStarts {
		day := AssembleDay(dayStart, snaps, a.policy)
		rt.TotalActiveMinutes += day.TotalActiveMinutes
		rt.Days = append(rt.Days, day)
	}

	// Display contract: newest day first.
	sort.Slice(rt.Days, func(i, j int) bool {
		return rt.Days[i].DayStart.After(rt.Days[j].DayStart)
	})
	return rt
}

type subjectPresence struct {
	online     bool
	lastActive time.Time
}

// currentPresence derives the trailing-window online predicate and the
// most recent active instant per subject. The recent fetch decides
// "online now"; the range fetch only widens the last-active lookup.
func currentPresence(recent, inRange []Snapshot) map[string]subjectPresence {
	out := make(map[string]subjectPresence)
	for _, s := range recent {
		if s.Status != StatusActive {
			continue
		}
		p := out[s.SubjectID]
		p.online = true
		if s.ObservedAt.After(p.lastActive) {
			p.lastActive = s.ObservedAt.UTC()
		}
		out[s.SubjectID] = p
	}
	for _, s := range inRange {
		if s.Status != StatusActive {
			continue
		}
		p := out[s.SubjectID]
		if s.ObservedAt.UTC().After(p.lastActive) {
			p.lastActive = s.ObservedAt.UTC()
		}
		out[s.SubjectID] = p
	}
	return out
}
