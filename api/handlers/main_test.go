package handlers_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/glancehq/pulse/api/handlers"
	"github.com/glancehq/pulse/store"
	"github.com/glancehq/pulse/timeline"
)

var now = time.Date(2026, 3, 9, 14, 37, 12, 0, time.UTC)

func newTestServer(t *testing.T, mem *store.Memory, opts ...func(*handlers.ServerConfig)) (*handlers.Server, chi.Router) {
	t.Helper()

	cfg := handlers.ServerConfig{
		Logger:    slog.Default(),
		Clock:     clockwork.NewFakeClockAt(now),
		Snapshots: mem,
		Roster:    mem,
		Policy:    timeline.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := handlers.NewServer(cfg)
	require.NoError(t, err)
	return s, testRouter(s)
}

func testRouter(s *handlers.Server) chi.Router {
	r := chi.NewRouter()
	r.Get("/api/presence", s.GetOverview)
	r.Get("/api/users", s.GetSubjects)
	r.Get("/api/users/{id}", s.GetSubject)
	r.Get("/api/users/{id}/history", s.GetSubjectHistory)
	return r
}

func countSubjects(body []byte) int {
	var resp handlers.OverviewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return -1
	}
	return len(resp.Subjects)
}

func doRequest(r chi.Router, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func seedSubject(mem *store.Memory, id, name string) {
	mem.AddSubject(store.Subject{ID: id, Name: name, Timezone: "UTC"})
}

func activeSnap(id string, at time.Time) timeline.Snapshot {
	return timeline.Snapshot{SubjectID: id, Status: timeline.StatusActive, ObservedAt: at}
}

func awaySnap(id string, at time.Time) timeline.Snapshot {
	return timeline.Snapshot{SubjectID: id, Status: timeline.StatusAway, ObservedAt: at}
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rr.Code, "body: %s", rr.Body.String())
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}
