package shared

import (
	"fmt"
	"time"
)

// MonthRange returns the inclusive start and exclusive end of a calendar month in UTC.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MonthKey formats a timestamp as its YYYY-MM bucket.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ParseMonth parses a YYYY-MM period string.
func ParseMonth(period string) (time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse period %q: %w", period, err)
	}
	return t, nil
}

// EnumerateMonths lists the first day of each month between from and to inclusive.
func EnumerateMonths(from, to time.Time) []time.Time {
	if from.After(to) {
		return nil
	}
	var months []time.Time
	current := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !current.After(end) {
		months = append(months, current)
		current = current.AddDate(0, 1, 0)
	}
	return months
}
