// Package handlers implements the dashboard HTTP API: the today
// presence overview, the subject roster, and per-subject history
// timelines.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/glancehq/pulse/api/metrics"
	"github.com/glancehq/pulse/store"
	"github.com/glancehq/pulse/timeline"
)

const queryTimeout = 15 * time.Second

// ServerConfig wires a Server. Stores are injected so tests run
// against store.Memory and production runs against postgres.
type ServerConfig struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Snapshots store.SnapshotStore
	Roster    store.RosterStore
	Policy    timeline.Policy

	// HistoryDays is the default day count for the history view.
	HistoryDays int

	// OverviewRefresh is the background refresh interval for the
	// today overview cache. Zero disables the cache.
	OverviewRefresh time.Duration
}

func (cfg *ServerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.Snapshots == nil {
		return errors.New("snapshot store is required")
	}
	if cfg.Roster == nil {
		return errors.New("roster store is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid classification policy: %w", err)
	}
	if cfg.HistoryDays == 0 {
		cfg.HistoryDays = timeline.DefaultHistoryDays
	}
	if cfg.HistoryDays < 1 || cfg.HistoryDays > timeline.MaxWindowDays {
		return fmt.Errorf("history days must be 1..%d, got %d", timeline.MaxWindowDays, cfg.HistoryDays)
	}
	return nil
}

// Server holds the handler dependencies.
type Server struct {
	log         *slog.Logger
	clock       clockwork.Clock
	roster      store.RosterStore
	assembler   *timeline.Assembler
	historyDays int
	overview    *OverviewCache
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	assembler, err := timeline.NewAssembler(timeline.AssemblerConfig{
		Logger: cfg.Logger,
		Clock:  cfg.Clock,
		Source: &instrumentedSource{src: cfg.Snapshots},
		Policy: cfg.Policy,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		log:         cfg.Logger,
		clock:       cfg.Clock,
		roster:      cfg.Roster,
		assembler:   assembler,
		historyDays: cfg.HistoryDays,
	}
	if cfg.OverviewRefresh > 0 {
		s.overview = NewOverviewCache(cfg.Logger, cfg.Clock, s, cfg.OverviewRefresh)
	}
	return s, nil
}

// StartOverviewCache warms and starts the background overview refresh,
// if configured.
func (s *Server) StartOverviewCache(ctx context.Context) {
	if s.overview != nil {
		s.overview.Start(ctx)
	}
}

// StopOverviewCache stops the background refresh goroutine.
func (s *Server) StopOverviewCache() {
	if s.overview != nil {
		s.overview.Stop()
	}
}

// instrumentedSource decorates the snapshot store with query metrics.
type instrumentedSource struct {
	src store.SnapshotStore
}

func (s *instrumentedSource) SnapshotsInRange(ctx context.Context, subjectIDs []string, from, to time.Time) ([]timeline.Snapshot, error) {
	start := time.Now()
	snaps, err := s.src.SnapshotsInRange(ctx, subjectIDs, from, to)
	metrics.RecordStoreQuery(time.Since(start), err)
	return snaps, err
}
