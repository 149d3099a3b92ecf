package timeline

import "time"

// Block is the derived, caller-facing state of one 15-minute window.
// Blocks are never persisted; they are recomputed on every request.
type Block struct {
	Hour             int         `json:"hour"`
	Quarter          int         `json:"quarter"`
	BlockIndex       int         `json:"block_index"`
	Status           BlockStatus `json:"status"`
	OnlinePercentage int         `json:"online_percentage"`
	ActiveMinutes    int         `json:"active_minutes"`
	TotalSnapshots   int         `json:"total_snapshots"`
	TotalMinutes     int         `json:"total_minutes"`
	BlockStart       time.Time   `json:"block_start"`
	BlockEnd         time.Time   `json:"block_end"`
}

// DayTimeline is one subject's classified day: 96 contiguous blocks
// plus the day's totals.
type DayTimeline struct {
	Date               string    `json:"date"` // YYYY-MM-DD
	DayName            string    `json:"day_name"`
	DayShort           string    `json:"day_short"`
	DayStart           time.Time `json:"day_start"`
	Blocks             []Block   `json:"timeline"`
	TotalActiveMinutes int       `json:"total_active_minutes"`
}

// AssembleDay buckets and classifies one subject-day. Snapshots
// outside [dayStart, dayStart+24h) are ignored, so callers may pass a
// subject's full range fetch for every day of a multi-day request.
//
// Weekday labels are derived from the calendar date implied by
// dayStart in UTC, never from the process-local timezone, so the same
// inputs label identically on any host.
func AssembleDay(dayStart time.Time, snapshots []Snapshot, policy Policy) DayTimeline {
	dayStart = dayStart.UTC()
	buckets := Bucketize(snapshots, dayStart)

	day := DayTimeline{
		Date:     dayStart.Format("2006-01-02"),
		DayName:  dayStart.Weekday().String(),
		DayShort: dayStart.Weekday().String()[:3],
		DayStart: dayStart,
		Blocks:   make([]Block, 0, BlocksPerDay),
	}

	for i, b := range buckets {
		c := policy.Classify(b.Snapshots)
		day.Blocks = append(day.Blocks, Block{
			Hour:             i / 4,
			Quarter:          i % 4,
			BlockIndex:       i,
			Status:           c.Status,
			OnlinePercentage: c.OnlinePercentage,
			ActiveMinutes:    c.ActiveMinutes,
			TotalSnapshots:   c.TotalSnapshots,
			TotalMinutes:     MinutesPerBlock,
			BlockStart:       b.Start,
			BlockEnd:         b.End,
		})
		day.TotalActiveMinutes += c.ActiveMinutes
	}

	return day
}
