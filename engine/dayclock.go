package engine

import (
	"fmt"
	"time"
)

// DayKeyLayout is the canonical calendar-day format used everywhere in the
// engine: a YYYY-MM-DD key in the user's local time zone.
const DayKeyLayout = "2006-01-02"

// Today resolves the current day key in the given IANA time zone.
func Today(timezone string) (string, error) {
	loc, err := loadZone(timezone)
	if err != nil {
		return "", err
	}
	return time.Now().In(loc).Format(DayKeyLayout), nil
}

// Yesterday resolves yesterday's day key in the given IANA time zone.
func Yesterday(timezone string) (string, error) {
	loc, err := loadZone(timezone)
	if err != nil {
		return "", err
	}
	return time.Now().In(loc).AddDate(0, 0, -1).Format(DayKeyLayout), nil
}

// NextDay returns the day key immediately after the given one.
func NextDay(dayKey string) (string, error) {
	t, err := ParseDayKey(dayKey)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, 1).Format(DayKeyLayout), nil
}

// PrevDay returns the day key immediately before the given one.
func PrevDay(dayKey string) (string, error) {
	t, err := ParseDayKey(dayKey)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(DayKeyLayout), nil
}

// DaysBetween returns b minus a in whole calendar days. Positive when b is
// after a.
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDayKey(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDayKey(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// ParseDayKey validates a day key and returns it as a UTC midnight instant.
func ParseDayKey(dayKey string) (time.Time, error) {
	t, err := time.ParseInLocation(DayKeyLayout, dayKey, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", dayKey, err)
	}
	return t, nil
}

func loadZone(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}
	return loc, nil
}
