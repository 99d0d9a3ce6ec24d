// internal/engine/quota/window.go
package quota

import (
	"time"

	"autoapply-engine/internal/models"
)

// Window boundaries are aligned to fixed points in UTC: midnight for daily
// windows, Monday 00:00 for weekly, the 1st 00:00 for monthly. Alignment
// keeps resets idempotent: a trigger one second past a boundary and a
// trigger an hour later land in the same window.

// AlignWindowStart returns the start of the window containing now.
func AlignWindowStart(now time.Time, kind models.WindowKind) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch kind {
	case models.WindowWeekly:
		// time.Weekday counts Sunday as 0; shift so Monday opens the window.
		offset := (int(now.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case models.WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return midnight
	}
}

// NextReset returns the boundary that closes the window containing now.
func NextReset(now time.Time, kind models.WindowKind) time.Time {
	start := AlignWindowStart(now, kind)
	switch kind {
	case models.WindowWeekly:
		return start.AddDate(0, 0, 7)
	case models.WindowMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// rolledOver reports whether the stored window start predates the window
// containing now, meaning the row needs a reset before evaluation.
func rolledOver(state models.UserQuotaState, now time.Time) bool {
	return state.WindowStart.Before(AlignWindowStart(now, state.WindowKind))
}
