package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(2026, time.February)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), end)

	start, end = MonthRange(2026, time.December)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestMonthKeyNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 00:30 local on March 1 is still February in UTC.
	assert.Equal(t, "2026-02", MonthKey(time.Date(2026, 3, 1, 0, 30, 0, 0, loc)))
	assert.Equal(t, "2026-06", MonthKey(time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)))
}

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2026-08")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseMonth("2026-13")
	assert.Error(t, err)

	_, err = ParseMonth("not-a-month")
	assert.Error(t, err)
}

func TestEnumerateMonths(t *testing.T) {
	months := EnumerateMonths(
		time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
	)
	require.Len(t, months, 4)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), months[0])
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), months[3])

	assert.Nil(t, EnumerateMonths(
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	))

	single := EnumerateMonths(
		time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC),
	)
	require.Len(t, single, 1)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), single[0])
}
