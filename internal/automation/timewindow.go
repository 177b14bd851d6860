package automation

import (
	"fmt"
	"time"
)

// MinuteOfDay returns the wall-clock minute of day of t in its own location
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// InRange reports whether current lies in the window [start, end].
// Both endpoints are inclusive; when start > end the window crosses midnight.
func InRange(current, start, end int) bool {
	if start <= end {
		return current >= start && current <= end
	}
	return current >= start || current <= end
}

// FormatMinutes renders a minute of day as HH:MM
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
