package timeline

import (
	"sort"
	"time"
)

// BlockSamples holds the snapshots assigned to one 15-minute block.
type BlockSamples struct {
	Start     time.Time
	End       time.Time // exclusive
	Snapshots []Snapshot
}

// Bucketize partitions the 24 hours starting at dayStart into 96
// contiguous half-open blocks [start, end) and assigns every valid
// snapshot whose ObservedAt falls within [dayStart, dayStart+24h) to
// exactly one of them. A snapshot observed exactly at a block boundary
// belongs to the block that starts there, never the one that ends
// there.
//
// The input does not need to be pre-sorted; Bucketize sorts a copy by
// ObservedAt and assigns with a single cursor pass. Snapshots outside
// the day and malformed snapshots are dropped.
func Bucketize(snapshots []Snapshot, dayStart time.Time) [BlocksPerDay]BlockSamples {
	dayStart = dayStart.UTC()
	dayEnd := dayStart.Add(24 * time.Hour)

	var blocks [BlocksPerDay]BlockSamples
	for i := range blocks {
		blocks[i].Start = dayStart.Add(time.Duration(i) * BlockDuration)
		blocks[i].End = blocks[i].Start.Add(BlockDuration)
	}

	inDay := make([]Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if !s.Valid() {
			continue
		}
		at := s.ObservedAt.UTC()
		if at.Before(dayStart) || !at.Before(dayEnd) {
			continue
		}
		inDay = append(inDay, s)
	}

	sort.Slice(inDay, func(i, j int) bool {
		return inDay[i].ObservedAt.Before(inDay[j].ObservedAt)
	})

	// Single pass: block boundaries and sorted snapshots both increase
	// monotonically, so the cursor never moves backwards.
	cursor := 0
	for i := range blocks {
		end := blocks[i].End
		for cursor < len(inDay) && inDay[cursor].ObservedAt.UTC().Before(end) {
			blocks[i].Snapshots = append(blocks[i].Snapshots, inDay[cursor])
			cursor++
		}
	}

	return blocks
}
