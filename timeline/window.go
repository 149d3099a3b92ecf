package timeline

import (
	"fmt"
	"time"
)

// WindowMode selects how a request's day range is resolved.
type WindowMode string

const (
	// WindowToday covers the last 24 hours ending now.
	WindowToday WindowMode = "today"

	// WindowLastNDays covers N calendar days ending today.
	WindowLastNDays WindowMode = "last-n-days"

	// WindowExplicit uses caller-supplied boundaries verbatim.
	WindowExplicit WindowMode = "explicit-range"
)

const (
	// DefaultHistoryDays is the window for the multi-day view when
	// the caller does not say otherwise.
	DefaultHistoryDays = 7

	// MaxWindowDays caps any resolved window so a single request
	// cannot force an unbounded store scan.
	MaxWindowDays = 92

	// forwardBuffer keeps the block containing "now" inside a today
	// window even when the request lands mid-block.
	forwardBuffer = time.Hour
)

// Window is a resolved aggregation range. Every day boundary is an
// exact 24-hour multiple of RangeStart, so the 96-block grid lines up
// identically for every day in a multi-day result.
type Window struct {
	Mode       WindowMode
	RangeStart time.Time
	RangeEnd   time.Time // exclusive

	// DayStarts lists each day boundary in the range, oldest first.
	DayStarts []time.Time

	// IncludeCurrentMoment records whether the upper bound was
	// extended past "now" so the in-progress block is populated.
	IncludeCurrentMoment bool
}

// DayCount returns the number of whole days covered by the window.
func (w Window) DayCount() int { return len(w.DayStarts) }

// WindowRequest carries the caller-supplied parameters for ResolveWindow.
type WindowRequest struct {
	Mode  WindowMode
	Start time.Time // WindowExplicit only
	End   time.Time // WindowExplicit only
	Days  int       // WindowLastNDays only; 0 means DefaultHistoryDays

	// IncludeCurrentMoment extends a today window by a forward
	// buffer past "now". Explicit policy, not implicit behavior.
	IncludeCurrentMoment bool
}

// ResolveWindow turns a caller request into concrete UTC day
// boundaries. Explicit boundaries are taken as the caller's intended
// day boundaries and are never re-interpreted against a local
// timezone. It returns ErrInvalidRange (wrapped) for inverted or
// oversized ranges.
func ResolveWindow(req WindowRequest, now time.Time) (Window, error) {
	now = now.UTC()

	switch req.Mode {
	case WindowToday:
		end := now
		if req.IncludeCurrentMoment {
			end = now.Add(forwardBuffer)
		}
		start := end.Add(-24 * time.Hour)
		return Window{
			Mode:                 WindowToday,
			RangeStart:           start,
			RangeEnd:             end,
			DayStarts:            []time.Time{start},
			IncludeCurrentMoment: req.IncludeCurrentMoment,
		}, nil

	case WindowLastNDays:
		days := req.Days
		if days == 0 {
			days = DefaultHistoryDays
		}
		if days < 1 {
			return Window{}, fmt.Errorf("%w: day count %d", ErrInvalidRange, days)
		}
		if days > MaxWindowDays {
			return Window{}, fmt.Errorf("%w: day count %d exceeds maximum %d", ErrInvalidRange, days, MaxWindowDays)
		}
		// Anchor on today's UTC midnight; the range ends at the next
		// midnight so today's in-progress day is the newest entry.
		todayStart := now.Truncate(24 * time.Hour)
		end := todayStart.Add(24 * time.Hour)
		start := end.Add(-time.Duration(days) * 24 * time.Hour)
		return Window{
			Mode:       WindowLastNDays,
			RangeStart: start,
			RangeEnd:   end,
			DayStarts:  dayStarts(start, days),
		}, nil

	case WindowExplicit:
		start := req.Start.UTC()
		end := req.End.UTC()
		if start.IsZero() || end.IsZero() {
			return Window{}, fmt.Errorf("%w: explicit range requires start and end", ErrInvalidRange)
		}
		if !end.After(start) {
			return Window{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange,
				end.Format(time.RFC3339), start.Format(time.RFC3339))
		}
		span := end.Sub(start)
		days := int(span / (24 * time.Hour))
		if span%(24*time.Hour) != 0 {
			days++
		}
		if days > MaxWindowDays {
			return Window{}, fmt.Errorf("%w: %d days exceeds maximum %d", ErrInvalidRange, days, MaxWindowDays)
		}
		return Window{
			Mode:       WindowExplicit,
			RangeStart: start,
			RangeEnd:   end,
			DayStarts:  dayStarts(start, days),
		}, nil

	default:
		return Window{}, fmt.Errorf("%w: unknown window mode %q", ErrInvalidRange, req.Mode)
	}
}

func dayStarts(start time.Time, days int) []time.Time {
	out := make([]time.Time, days)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * 24 * time.Hour)
	}
	return out
}
