package timeline_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/glancehq/pulse/store"
	"github.com/glancehq/pulse/timeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssembler(t *testing.T, src timeline.SnapshotSource, at time.Time) *timeline.Assembler {
	t.Helper()
	a, err := timeline.NewAssembler(timeline.AssemblerConfig{
		Logger: slog.Default(),
		Clock:  clockwork.NewFakeClockAt(at),
		Source: src,
		Policy: timeline.DefaultPolicy(),
	})
	require.NoError(t, err)
	return a
}

func TestAssembleRange_SevenDaysNewestFirst(t *testing.T) {
	mem := store.NewMemory()
	mem.Append(
		snap("u1", timeline.StatusActive, now.Add(-2*time.Hour)),
		snap("u1", timeline.StatusActive, now.Add(-3*24*time.Hour)),
	)

	w, err := timeline.ResolveWindow(timeline.WindowRequest{Mode: timeline.WindowLastNDays, Days: 7}, now)
	require.NoError(t, err)

	a := newAssembler(t, mem, now)
	results, err := a.AssembleRange(t.Context(), []string{"u1"}, w)
	require.NoError(t, err)
	require.Len(t, results, 1)

	rt := results[0]
	require.Len(t, rt.Days, 7)
	assert.Equal(t, 7, rt.DayCount)

	// Dates run D, D-1, ..., D-6 and each day satisfies the grid.
	for i, d := range rt.Days {
		wantStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC).Add(-time.Duration(i) * 24 * time.Hour)
		assert.Equal(t, wantStart, d.DayStart)
		require.Len(t, d.Blocks, timeline.BlocksPerDay)
		assert.Equal(t, wantStart, d.Blocks[0].BlockStart)
		assert.Equal(t, wantStart.Add(24*time.Hour), d.Blocks[95].BlockEnd)
	}
	assert.Equal(t, 2, rt.TotalActiveMinutes)
}

func TestAssembleRange_CurrentOnlinePredicate(t *testing.T) {
	w, err := timeline.ResolveWindow(timeline.WindowRequest{Mode: timeline.WindowToday, IncludeCurrentMoment: true}, now)
	require.NoError(t, err)

	t.Run("active inside trailing window", func(t *testing.T) {
		mem := store.NewMemory()
		mem.Append(snap("u1", timeline.StatusActive, now.Add(-5*time.Minute)))

		results, err := newAssembler(t, mem, now).AssembleRange(t.Context(), []string{"u1"}, w)
		require.NoError(t, err)
		assert.True(t, results[0].IsCurrentlyOnline)
		require.NotNil(t, results[0].LastActiveTime)
		assert.Equal(t, now.Add(-5*time.Minute), *results[0].LastActiveTime)
	})

	t.Run("active just outside trailing window", func(t *testing.T) {
		mem := store.NewMemory()
		mem.Append(snap("u1", timeline.StatusActive, now.Add(-16*time.Minute)))

		results, err := newAssembler(t, mem, now).AssembleRange(t.Context(), []string{"u1"}, w)
		require.NoError(t, err)
		// The block aggregate can say online while the predicate says
		// not-currently-online; they are different questions.
		assert.False(t, results[0].IsCurrentlyOnline)
		require.NotNil(t, results[0].LastActiveTime)
	})

	t.Run("away inside trailing window", func(t *testing.T) {
		mem := store.NewMemory()
		mem.Append(snap("u1", timeline.StatusAway, now.Add(-2*time.Minute)))

		results, err := newAssembler(t, mem, now).AssembleRange(t.Context(), []string{"u1"}, w)
		require.NoError(t, err)
		assert.False(t, results[0].IsCurrentlyOnline)
		assert.Nil(t, results[0].LastActiveTime)
	})
}

func TestAssembleRange_Idempotent(t *testing.T) {
	mem := store.NewMemory()
	for i := 0; i < 500; i++ {
		st := timeline.StatusActive
		if i%3 == 0 {
			st = timeline.StatusAway
		}
		mem.Append(snap("u1", st, now.Add(-time.Duration(i)*7*time.Minute)))
		mem.Append(snap("u2", st, now.Add(-time.Duration(i)*11*time.Minute)))
	}

	w, err := timeline.ResolveWindow(timeline.WindowRequest{Mode: timeline.WindowLastNDays, Days: 5}, now)
	require.NoError(t, err)
	a := newAssembler(t, mem, now)

	first, err := a.AssembleRange(t.Context(), []string{"u1", "u2"}, w)
	require.NoError(t, err)
	second, err := a.AssembleRange(t.Context(), []string{"u1", "u2"}, w)
	require.NoError(t, err)

	fj, err := json.Marshal(first)
	require.NoError(t, err)
	sj, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(fj), string(sj), "same store state yields byte-identical output")
}

func TestAssembleRange_SubjectWithNoData(t *testing.T) {
	w, err := timeline.ResolveWindow(timeline.WindowRequest{Mode: timeline.WindowToday}, now)
	require.NoError(t, err)

	results, err := newAssembler(t, store.NewMemory(), now).AssembleRange(t.Context(), []string{"ghost"}, w)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].TotalActiveMinutes)
	assert.False(t, results[0].IsCurrentlyOnline)
	for _, b := range results[0].Days[0].Blocks {
		assert.Equal(t, timeline.BlockNoData, b.Status)
	}
}

func TestAssembleRange_StoreFailurePropagates(t *testing.T) {
	mem := store.NewMemory()
	mem.FailWith = errors.New("connection refused")

	w, err := timeline.ResolveWindow(timeline.WindowRequest{Mode: timeline.WindowToday}, now)
	require.NoError(t, err)

	_, err = newAssembler(t, mem, now).AssembleRange(t.Context(), []string{"u1"}, w)
	require.Error(t, err, "store failure must not degrade to an empty timeline")
}

func TestAssembleRange_ResultsFollowSubjectOrder(t *testing.T) {
	mem := store.NewMemory()
	ids := []string{"u3", "u1", "u2"}

	w, err := timeline.ResolveWindow(timeline.WindowRequest{Mode: timeline.WindowToday}, now)
	require.NoError(t, err)

	results, err := newAssembler(t, mem, now).AssembleRange(t.Context(), ids, w)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, id := range ids {
		assert.Equal(t, id, results[i].SubjectID)
	}
}
