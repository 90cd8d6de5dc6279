package model

import (
	"fmt"
	"time"
)

// DayWindow returns the half-open UTC interval [start, end) covering
// calendar day `day` in IANA timezone `tz`. Metrics and drift for the
// same day in different timezones select different event sets.
func DayWindow(day time.Time, tz string) (start, end time.Time, err error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	startLocal := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	endLocal := startLocal.AddDate(0, 0, 1)
	return startLocal.UTC(), endLocal.UTC(), nil
}

// TodayIn returns the current calendar day in the given timezone as a
// midnight-UTC time value suitable for day columns.
func TodayIn(tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseDay parses a YYYY-MM-DD day value.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}
