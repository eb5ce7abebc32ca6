// Package streak implements the daily activity streak state machine over UTC
// calendar dates.
package streak

import (
	"time"

	"github.com/arena-oj/arena/internal/domain"
)

const day = 24 * time.Hour

// Update folds an activity at now into s.
//
//	same UTC day     -> counters unchanged
//	next UTC day     -> current+1, longest = max(longest, current)
//	anything else    -> current = 1 (gap, clock skew, or never active)
//
// LastUpdated is always refreshed to now.
func Update(s domain.Streak, now time.Time) domain.Streak {
	now = now.UTC()
	out := s
	out.LastUpdated = now

	if s.LastUpdated.IsZero() {
		out.Current = 1
		out.Longest = max(s.Longest, 1)
		return out
	}

	switch DaysBetween(s.LastUpdated, now) {
	case 0:
	case 1:
		out.Current = s.Current + 1
		out.Longest = max(s.Longest, out.Current)
	default:
		out.Current = 1
		out.Longest = max(s.Longest, 1)
	}
	return out
}

// DaysBetween counts calendar days from a to b after truncating both to UTC
// midnight. Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	da := midnight(a)
	db := midnight(b)
	return int(db.Sub(da) / day)
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
