// AngelaMos | 2026
// status.go

package policy

import (
	"time"
)

// DateOf reduces t to its calendar date, expressed as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ComputeStatus derives a policy's date-based status. Both boundary days
// count as active. today is read as a UTC calendar day whatever its
// location, matching how start and end dates are stored.
func ComputeStatus(start, end, today time.Time) Status {
	day := DateOf(today.UTC())

	switch {
	case day.Before(DateOf(start)):
		return StatusPending
	case day.After(DateOf(end)):
		return StatusExpired
	default:
		return StatusActive
	}
}

// StatusAt is the effective status of p at now. Cancellation is terminal
// and never recomputed.
func StatusAt(p *Policy, now time.Time) Status {
	if p.IsCancelled() {
		return StatusCancelled
	}
	return ComputeStatus(p.StartDate, p.EndDate, now)
}
