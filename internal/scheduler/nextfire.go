package scheduler

import (
	"time"

	"automator/internal/params"
)

// NextFire returns the first instant strictly after now at tod's wall time on an allowed day.
// The wall time is taken in now's location.
func NextFire(now time.Time, tod params.TimeOfDay) time.Time {
	y, m, d := now.Date()
	for i := 0; i <= 7; i++ {
		at := time.Date(y, m, d+i, tod.Hour, tod.Minute, 0, 0, now.Location())
		if at.After(now) && tod.OnDay(at.Weekday()) {
			return at
		}
	}
	// unreachable for a valid day set: eight consecutive days cover every weekday
	return time.Date(y, m, d+1, tod.Hour, tod.Minute, 0, 0, now.Location())
}
