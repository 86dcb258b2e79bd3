package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parseNow = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)

func TestParseWallClockValid(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"08:05", time.Date(2026, time.March, 10, 8, 5, 0, 0, time.Local)},
		{"8:05", time.Date(2026, time.March, 10, 8, 5, 0, 0, time.Local)},
		{"  17:01  ", time.Date(2026, time.March, 10, 17, 1, 0, 0, time.Local)},
		{"1701", time.Date(2026, time.March, 10, 17, 1, 0, 0, time.Local)},
		{"905", time.Date(2026, time.March, 10, 9, 5, 0, 0, time.Local)},
		{"0000", time.Date(2026, time.March, 11, 0, 0, 0, 0, time.Local)},
		{"23:59", time.Date(2026, time.March, 10, 23, 59, 0, 0, time.Local)},
		// Already passed today resolves to tomorrow.
		{"07:59", time.Date(2026, time.March, 11, 7, 59, 0, 0, time.Local)},
		{"0730", time.Date(2026, time.March, 11, 7, 30, 0, 0, time.Local)},
		// Exactly now stays today.
		{"08:00", time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWallClock(tt.input, parseNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWallClockProperties(t *testing.T) {
	// For every valid input: time-of-day matches, result is >= now and
	// within 24 hours.
	inputs := []string{"00:00", "0001", "07:59", "08:00", "08:01", "12:30", "23:59", "130", "2359"}
	for _, in := range inputs {
		got, err := ParseWallClock(in, parseNow)
		require.NoError(t, err, in)
		assert.False(t, got.Before(parseNow), "%s resolved into the past", in)
		assert.LessOrEqual(t, got.Sub(parseNow), 24*time.Hour, in)
	}
}

func TestParseWallClockInvalid(t *testing.T) {
	inputs := []string{
		"", "   ", "abc", "25:00", "24:00", "12:60", "9999", "2460",
		"12:5", "123:45", "12345", "12", "1", "+1:30", "12:-5", "1 30",
		"12:3a", "a1:30",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseWallClock(in, parseNow)
			assert.ErrorIs(t, err, ErrInvalidTime)
		})
	}
}

func TestParseWallClockMidnightRollover(t *testing.T) {
	// 23:58 scheduling 00:05 resolves to tomorrow.
	now := time.Date(2026, time.March, 10, 23, 58, 0, 0, time.Local)
	got, err := ParseWallClock("00:05", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 11, 0, 5, 0, 0, time.Local), got)
}

func TestSuggestTime(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 40, 0, 0, time.Local)
	assert.Equal(t, "09:01", SuggestTime(now))

	// Wraps past midnight.
	now = time.Date(2026, time.March, 10, 23, 30, 0, 0, time.Local)
	assert.Equal(t, "00:01", SuggestTime(now))
}
