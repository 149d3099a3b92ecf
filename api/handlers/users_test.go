package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glancehq/pulse/api/handlers"
	"github.com/glancehq/pulse/store"
	"github.com/glancehq/pulse/timeline"
)

func TestGetSubjects_Pagination(t *testing.T) {
	mem := store.NewMemory()
	for _, name := range []string{"ada", "brendan", "carol"} {
		seedSubject(mem, name, name)
	}

	_, r := newTestServer(t, mem)
	rr := doRequest(r, "/api/users?limit=2&offset=1")
	requireStatus(t, rr, http.StatusOK)

	var resp handlers.PaginatedResponse[handlers.SubjectListItem]
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "brendan", resp.Items[0].Name)
	assert.Equal(t, "carol", resp.Items[1].Name)
}

func TestGetSubject(t *testing.T) {
	mem := store.NewMemory()
	seedSubject(mem, "u1", "ada")
	mem.Append(activeSnap("u1", now.Add(-time.Minute)))

	_, r := newTestServer(t, mem)
	rr := doRequest(r, "/api/users/u1")
	requireStatus(t, rr, http.StatusOK)

	var resp handlers.SubjectResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "u1", resp.ID)
	assert.True(t, resp.IsCurrentlyOnline)
}

func TestGetSubject_NotFound(t *testing.T) {
	_, r := newTestServer(t, store.NewMemory())
	rr := doRequest(r, "/api/users/ghost")
	requireStatus(t, rr, http.StatusNotFound)
}

func TestGetSubjectHistory_DefaultSevenDays(t *testing.T) {
	mem := store.NewMemory()
	seedSubject(mem, "u1", "ada")
	// One active minute on each of the last three days.
	for i := 0; i < 3; i++ {
		mem.Append(activeSnap("u1", now.Add(-time.Duration(i)*24*time.Hour)))
	}

	_, r := newTestServer(t, mem)
	rr := doRequest(r, "/api/users/u1/history")
	requireStatus(t, rr, http.StatusOK)
	assert.Equal(t, "max-age=300", rr.Header().Get("Cache-Control"))

	var resp handlers.HistoryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, timeline.DefaultHistoryDays, resp.DayCount)
	require.Len(t, resp.Days, timeline.DefaultHistoryDays)
	assert.Equal(t, 3, resp.TotalActiveMinutes)

	// Newest day first, consecutive dates.
	assert.Equal(t, "2026-03-09", resp.Days[0].Date)
	assert.Equal(t, "2026-03-08", resp.Days[1].Date)
	assert.Equal(t, "Monday", resp.Days[0].DayName)
	assert.Equal(t, "Mon", resp.Days[0].DayShort)
	for _, d := range resp.Days {
		require.Len(t, d.Blocks, timeline.BlocksPerDay)
	}
}

func TestGetSubjectHistory_ExplicitRange(t *testing.T) {
	mem := store.NewMemory()
	seedSubject(mem, "u1", "ada")

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * 24 * time.Hour)
	mem.Append(activeSnap("u1", start.Add(90*time.Minute)))

	_, r := newTestServer(t, mem)
	rr := doRequest(r, fmt.Sprintf("/api/users/u1/history?start=%s&end=%s",
		start.Format(time.RFC3339), end.Format(time.RFC3339)))
	requireStatus(t, rr, http.StatusOK)

	var resp handlers.HistoryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.DayCount)
	assert.Equal(t, 1, resp.TotalActiveMinutes)
	// Explicit boundaries are used verbatim as day starts.
	assert.Equal(t, start.Add(24*time.Hour), resp.Days[0].DayStart)
	assert.Equal(t, start, resp.Days[1].DayStart)
}

func TestGetSubjectHistory_InvalidWindows(t *testing.T) {
	mem := store.NewMemory()
	seedSubject(mem, "u1", "ada")
	_, r := newTestServer(t, mem)

	tests := []struct {
		name   string
		target string
	}{
		{"unparseable days", "/api/users/u1/history?days=soon"},
		{"zero days", "/api/users/u1/history?days=-2"},
		{"too many days", fmt.Sprintf("/api/users/u1/history?days=%d", timeline.MaxWindowDays+1)},
		{"bad start", "/api/users/u1/history?start=yesterday&end=2026-03-09T00:00:00Z"},
		{"inverted range", "/api/users/u1/history?start=2026-03-09T00:00:00Z&end=2026-03-01T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(r, tt.target)
			requireStatus(t, rr, http.StatusBadRequest)
		})
	}
}

func TestGetSubjectHistory_UnknownSubject(t *testing.T) {
	_, r := newTestServer(t, store.NewMemory())
	rr := doRequest(r, "/api/users/ghost/history")
	requireStatus(t, rr, http.StatusNotFound)
}
