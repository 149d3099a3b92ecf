package timeline_test

import (
	"testing"
	"time"

	"github.com/glancehq/pulse/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func snap(id string, status timeline.Status, at time.Time) timeline.Snapshot {
	return timeline.Snapshot{SubjectID: id, Status: status, ObservedAt: at}
}

func TestBucketize_GridInvariant(t *testing.T) {
	blocks := timeline.Bucketize(nil, day)

	require.Len(t, blocks, timeline.BlocksPerDay)
	assert.Equal(t, day, blocks[0].Start)
	assert.Equal(t, day.Add(24*time.Hour), blocks[95].End)
	for i := 0; i < 95; i++ {
		assert.Equal(t, blocks[i].End, blocks[i+1].Start, "block %d", i)
		assert.Equal(t, 15*time.Minute, blocks[i].End.Sub(blocks[i].Start))
	}
}

func TestBucketize_CoversEverySnapshotExactlyOnce(t *testing.T) {
	// Unsorted, with duplicates in the same minute and rows outside the day.
	snaps := []timeline.Snapshot{
		snap("u1", timeline.StatusActive, day.Add(23*time.Hour+59*time.Minute)),
		snap("u1", timeline.StatusAway, day.Add(10*time.Minute)),
		snap("u1", timeline.StatusActive, day.Add(10*time.Minute)),
		snap("u1", timeline.StatusActive, day.Add(12*time.Hour+7*time.Minute)),
		snap("u1", timeline.StatusActive, day.Add(-time.Minute)),   // previous day
		snap("u1", timeline.StatusActive, day.Add(24*time.Hour)),   // next day
		snap("u1", timeline.StatusAway, day.Add(3*time.Hour)),
	}

	blocks := timeline.Bucketize(snaps, day)

	total := 0
	for _, b := range blocks {
		for _, s := range b.Snapshots {
			assert.True(t, !s.ObservedAt.Before(b.Start), "snapshot before block start")
			assert.True(t, s.ObservedAt.Before(b.End), "snapshot at or past block end")
			total++
		}
	}
	assert.Equal(t, 5, total, "exactly the in-day snapshots are assigned")
}

func TestBucketize_BoundaryTieBreak(t *testing.T) {
	// A snapshot exactly at a boundary belongs to the block that
	// starts there, never the one that ends there.
	at := day.Add(15 * time.Minute)
	blocks := timeline.Bucketize([]timeline.Snapshot{snap("u1", timeline.StatusActive, at)}, day)

	assert.Empty(t, blocks[0].Snapshots)
	require.Len(t, blocks[1].Snapshots, 1)
	assert.Equal(t, at, blocks[1].Snapshots[0].ObservedAt)
}

func TestBucketize_SkipsMalformedRows(t *testing.T) {
	snaps := []timeline.Snapshot{
		snap("u1", timeline.StatusActive, day.Add(time.Minute)),
		snap("u1", "banana", day.Add(2*time.Minute)),
		{SubjectID: "u1", Status: timeline.StatusActive}, // zero timestamp
	}

	blocks := timeline.Bucketize(snaps, day)
	require.Len(t, blocks[0].Snapshots, 1)
}

func TestBucketize_SortsUnsortedInput(t *testing.T) {
	snaps := []timeline.Snapshot{
		snap("u1", timeline.StatusActive, day.Add(44*time.Minute)),
		snap("u1", timeline.StatusActive, day.Add(1*time.Minute)),
		snap("u1", timeline.StatusActive, day.Add(31*time.Minute)),
	}

	blocks := timeline.Bucketize(snaps, day)
	assert.Len(t, blocks[0].Snapshots, 1)
	assert.Len(t, blocks[2].Snapshots, 2)
}
