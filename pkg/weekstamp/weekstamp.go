// Package weekstamp formats real-world ISO calendar weeks. The stamp tracks
// wall-clock time only and is unrelated to the logical week counter.
package weekstamp

import (
	"fmt"
	"time"
)

// Current returns the ISO year-week stamp for now, e.g. "2026-W35".
func Current(now time.Time) string {
	year, week := now.ISOWeek()
	return fmt.Sprintf("%d-W%d", year, week)
}

// WeekOf returns the ISO week-of-year for a date; used to default event
// week numbers at creation time.
func WeekOf(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}
