package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/glancehq/pulse/api/metrics"
	"github.com/glancehq/pulse/timeline"
)

// OverviewSubject is one roster member's today view.
type OverviewSubject struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	DisplayName        string           `json:"display_name,omitempty"`
	Timezone           string           `json:"timezone"`
	TzOffsetSec        int              `json:"tz_offset_sec"`
	Timeline           []timeline.Block `json:"timeline"`
	TotalActiveMinutes int              `json:"total_active_minutes"`
	IsCurrentlyOnline  bool             `json:"is_currently_online"`
	LastActiveTime     *time.Time       `json:"last_active_time,omitempty"`
}

// OverviewResponse is the today overview: one day, every subject.
type OverviewResponse struct {
	GeneratedAt time.Time         `json:"generated_at"`
	WindowStart time.Time         `json:"window_start"`
	WindowEnd   time.Time         `json:"window_end"`
	Subjects    []OverviewSubject `json:"subjects"`
}

// GetOverview serves GET /api/presence: the rolling 24-hour timeline
// for every roster subject. Served from the background cache when it
// is warm; the freshness window is advertised to HTTP caches.
func (s *Server) GetOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "max-age=30")

	if s.overview != nil {
		if cached := s.overview.Get(); cached != nil {
			metrics.RecordOverviewCache(true)
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}
	metrics.RecordOverviewCache(false)
	w.Header().Set("X-Cache", "MISS")

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	resp, err := s.computeOverview(ctx)
	if err != nil {
		s.writeError(w, "failed to compute presence overview", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// computeOverview assembles the today window for the whole roster.
func (s *Server) computeOverview(ctx context.Context) (*OverviewResponse, error) {
	// Rosters are workspace-sized; a single max-limit page covers them.
	subjects, _, err := s.roster.ListSubjects(ctx, MaxLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	window, err := timeline.ResolveWindow(timeline.WindowRequest{
		Mode:                 timeline.WindowToday,
		IncludeCurrentMoment: true,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(subjects))
	for i, sub := range subjects {
		ids[i] = sub.ID
	}

	results, err := s.assembler.AssembleRange(ctx, ids, window)
	if err != nil {
		return nil, err
	}

	resp := &OverviewResponse{
		GeneratedAt: s.clock.Now().UTC(),
		WindowStart: window.RangeStart,
		WindowEnd:   window.RangeEnd,
		Subjects:    make([]OverviewSubject, 0, len(subjects)),
	}
	for i, sub := range subjects {
		rt := results[i]
		resp.Subjects = append(resp.Subjects, OverviewSubject{
			ID:                 sub.ID,
			Name:               sub.Name,
			DisplayName:        sub.DisplayName,
			Timezone:           sub.Timezone,
			TzOffsetSec:        sub.TzOffsetSec,
			Timeline:           rt.Days[0].Blocks,
			TotalActiveMinutes: rt.TotalActiveMinutes,
			IsCurrentlyOnline:  rt.IsCurrentlyOnline,
			LastActiveTime:     rt.LastActiveTime,
		})
	}
	return resp, nil
}
