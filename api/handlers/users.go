package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glancehq/pulse/timeline"
)

// SubjectListItem is one roster entry.
type SubjectListItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Timezone    string `json:"timezone"`
	TzOffsetSec int    `json:"tz_offset_sec"`
}

// GetSubjects serves GET /api/users: the paginated roster.
func (s *Server) GetSubjects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	pagination := ParsePagination(r, DefaultLimit)
	subjects, total, err := s.roster.ListSubjects(ctx, pagination.Limit, pagination.Offset)
	if err != nil {
		s.writeError(w, "failed to list subjects", err)
		return
	}

	items := make([]SubjectListItem, 0, len(subjects))
	for _, sub := range subjects {
		items = append(items, SubjectListItem{
			ID:          sub.ID,
			Name:        sub.Name,
			DisplayName: sub.DisplayName,
			Timezone:    sub.Timezone,
			TzOffsetSec: sub.TzOffsetSec,
		})
	}

	writeJSON(w, http.StatusOK, PaginatedResponse[SubjectListItem]{
		Items:  items,
		Total:  total,
		Limit:  pagination.Limit,
		Offset: pagination.Offset,
	})
}

// SubjectResponse is GET /api/users/{id}.
type SubjectResponse struct {
	SubjectListItem
	IsCurrentlyOnline bool       `json:"is_currently_online"`
	LastActiveTime    *time.Time `json:"last_active_time,omitempty"`
}

// GetSubject serves GET /api/users/{id}.
func (s *Server) GetSubject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	sub, err := s.roster.GetSubject(ctx, id)
	if err != nil {
		s.writeError(w, "failed to load subject", err)
		return
	}

	// A minimal today window carries the current-online predicate.
	window, err := timeline.ResolveWindow(timeline.WindowRequest{Mode: timeline.WindowToday}, s.clock.Now())
	if err != nil {
		s.writeError(w, "failed to resolve window", err)
		return
	}
	results, err := s.assembler.AssembleRange(ctx, []string{id}, window)
	if err != nil {
		s.writeError(w, "failed to compute subject presence", err)
		return
	}

	writeJSON(w, http.StatusOK, SubjectResponse{
		SubjectListItem: SubjectListItem{
			ID:          sub.ID,
			Name:        sub.Name,
			DisplayName: sub.DisplayName,
			Timezone:    sub.Timezone,
			TzOffsetSec: sub.TzOffsetSec,
		},
		IsCurrentlyOnline: results[0].IsCurrentlyOnline,
		LastActiveTime:    results[0].LastActiveTime,
	})
}

// HistoryResponse is GET /api/users/{id}/history: many days, one
// subject, newest day first.
type HistoryResponse struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	DisplayName        string                 `json:"display_name,omitempty"`
	Timezone           string                 `json:"timezone"`
	TzOffsetSec        int                    `json:"tz_offset_sec"`
	Days               []timeline.DayTimeline `json:"days"`
	DayCount           int                    `json:"day_count"`
	TotalActiveMinutes int                    `json:"total_active_minutes"`
	IsCurrentlyOnline  bool                   `json:"is_currently_online"`
	LastActiveTime     *time.Time             `json:"last_active_time,omitempty"`
}

// GetSubjectHistory serves GET /api/users/{id}/history. The window is
// either ?days=N (calendar days ending today) or an explicit
// ?start=RFC3339&end=RFC3339 pair taken verbatim as day boundaries.
func (s *Server) GetSubjectHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	sub, err := s.roster.GetSubject(ctx, id)
	if err != nil {
		s.writeError(w, "failed to load subject", err)
		return
	}

	req, err := s.historyWindowRequest(r)
	if err != nil {
		s.writeError(w, "failed to parse history window", err)
		return
	}
	window, err := timeline.ResolveWindow(req, s.clock.Now())
	if err != nil {
		s.writeError(w, "failed to resolve history window", err)
		return
	}

	results, err := s.assembler.AssembleRange(ctx, []string{id}, window)
	if err != nil {
		s.writeError(w, "failed to compute subject history", err)
		return
	}
	rt := results[0]

	// Historical ranges are stable; allow transport caches a longer
	// freshness window than the today overview.
	w.Header().Set("Cache-Control", "max-age=300")

	writeJSON(w, http.StatusOK, HistoryResponse{
		ID:                 sub.ID,
		Name:               sub.Name,
		DisplayName:        sub.DisplayName,
		Timezone:           sub.Timezone,
		TzOffsetSec:        sub.TzOffsetSec,
		Days:               rt.Days,
		DayCount:           rt.DayCount,
		TotalActiveMinutes: rt.TotalActiveMinutes,
		IsCurrentlyOnline:  rt.IsCurrentlyOnline,
		LastActiveTime:     rt.LastActiveTime,
	})
}

func (s *Server) historyWindowRequest(r *http.Request) (timeline.WindowRequest, error) {
	q := r.URL.Query()

	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr != "" || endStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return timeline.WindowRequest{}, fmt.Errorf("%w: invalid start %q", timeline.ErrInvalidRange, startStr)
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return timeline.WindowRequest{}, fmt.Errorf("%w: invalid end %q", timeline.ErrInvalidRange, endStr)
		}
		return timeline.WindowRequest{Mode: timeline.WindowExplicit, Start: start, End: end}, nil
	}

	days := s.historyDays
	if d := q.Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return timeline.WindowRequest{}, fmt.Errorf("%w: invalid days %q", timeline.ErrInvalidRange, d)
		}
		days = n
	}
	return timeline.WindowRequest{Mode: timeline.WindowLastNDays, Days: days}, nil
}
