package calendar

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayNumber(t *testing.T) {
	tests := []struct {
		start string
		date  string
		want  int
	}{
		{"2024-01-01", "2024-01-01", 1},
		{"2024-01-01", "2024-01-05", 5},
		{"2024-01-01", "2024-03-16", 76},
		{"2024-02-28", "2024-03-01", 3},  // leap year
		{"2023-02-28", "2023-03-01", 2},  // non-leap year
		{"2024-03-08", "2024-03-12", 5},  // across US DST spring-forward
		{"2024-10-25", "2024-10-29", 5},  // across EU DST fall-back
		{"2024-12-30", "2025-01-02", 4},  // across year boundary
	}

	for _, tt := range tests {
		got, err := DayNumber(tt.start, tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "DayNumber(%s, %s)", tt.start, tt.date)
	}
}

func TestDayNumberRoundTrip(t *testing.T) {
	// dateForDay(start, dayNumber(start, d)) == d for every date in range
	start := "2024-01-01"
	date := start
	for i := 0; i < 75; i++ {
		n, err := DayNumber(start, date)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)

		back, err := DateForDay(start, n)
		require.NoError(t, err)
		assert.Equal(t, date, back)

		date, err = AddDays(date, 1)
		require.NoError(t, err)
	}
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2024-01-01", 74)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", got)

	got, err = AddDays("2024-03-01", -2)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-28", got)

	got, err = AddDays("2024-01-31", 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", got)
}

func TestDateForDay(t *testing.T) {
	got, err := DateForDay("2024-01-01", 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got)

	got, err = DateForDay("2024-01-01", 75)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", got)
}

func TestToday(t *testing.T) {
	got, err := Today("UTC")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), got)

	_, err = Today("Not/AZone")
	assert.Error(t, err)

	// Kiritimati (UTC+14) and Pago Pago (UTC-11) are 25 hours apart, so the
	// two wall-clock dates can differ by at most one day and never by more.
	east, err := Today("Pacific/Kiritimati")
	require.NoError(t, err)
	west, err := Today("Pacific/Pago_Pago")
	require.NoError(t, err)

	et, err := Parse(east)
	require.NoError(t, err)
	wt, err := Parse(west)
	require.NoError(t, err)
	diff := et.Sub(wt) / (24 * time.Hour)
	assert.True(t, diff >= 0 && diff <= 2, "east %s west %s", east, west)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("01/02/2024")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
}

func TestIsValidTimezone(t *testing.T) {
	assert.True(t, IsValidTimezone("America/New_York"))
	assert.True(t, IsValidTimezone("UTC"))
	assert.False(t, IsValidTimezone(""))
	assert.False(t, IsValidTimezone("Mars/Olympus_Mons"))
}
