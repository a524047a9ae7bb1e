package calendar

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Today returns the current calendar date in the given IANA timezone,
// formatted YYYY-MM-DD. The wall-clock date in the user's zone is what
// matters: a user in Pacific/Auckland can be a full day ahead of UTC.
func Today(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return time.Now().In(loc).Format(dateLayout), nil
}

// Parse reads a YYYY-MM-DD string as a UTC-midnight instant. All day
// arithmetic goes through this normalization so daylight-saving shifts in
// the user's zone cannot skew day counts.
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// DayNumber maps a calendar date onto the challenge's day numbering.
// Day 1 is the start date itself.
func DayNumber(startDate, date string) (int, error) {
	start, err := Parse(startDate)
	if err != nil {
		return 0, err
	}
	d, err := Parse(date)
	if err != nil {
		return 0, err
	}
	return int(d.Sub(start).Hours()/24) + 1, nil
}

// DateForDay is the inverse of DayNumber: the calendar date of day n.
func DateForDay(startDate string, n int) (string, error) {
	return AddDays(startDate, n-1)
}

// AddDays shifts a date by k calendar days. Negative k goes backwards.
func AddDays(date string, k int) (string, error) {
	t, err := Parse(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, k).Format(dateLayout), nil
}

// IsValidTimezone reports whether tz names a loadable IANA timezone.
func IsValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}
