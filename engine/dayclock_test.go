package engine

import (
	"errors"
	"testing"
)

func TestNextPrevDay(t *testing.T) {
	cases := []struct {
		day, next string
	}{
		{"2024-03-01", "2024-03-02"},
		{"2024-02-28", "2024-02-29"}, // leap year
		{"2023-02-28", "2023-03-01"},
		{"2024-12-31", "2025-01-01"},
	}
	for _, c := range cases {
		next, err := NextDay(c.day)
		if err != nil {
			t.Fatalf("NextDay(%s): %v", c.day, err)
		}
		if next != c.next {
			t.Errorf("NextDay(%s) = %s, want %s", c.day, next, c.next)
		}
		prev, err := PrevDay(c.next)
		if err != nil {
			t.Fatalf("PrevDay(%s): %v", c.next, err)
		}
		if prev != c.day {
			t.Errorf("PrevDay(%s) = %s, want %s", c.next, prev, c.day)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	n, err := DaysBetween("2024-03-01", "2024-03-05")
	if err != nil {
		t.Fatalf("DaysBetween: %v", err)
	}
	if n != 4 {
		t.Errorf("got %d, want 4", n)
	}

	n, _ = DaysBetween("2024-03-05", "2024-03-01")
	if n != -4 {
		t.Errorf("got %d, want -4", n)
	}

	n, _ = DaysBetween("2024-03-05", "2024-03-05")
	if n != 0 {
		t.Errorf("got %d, want 0", n)
	}
}

func TestParseDayKeyRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "2024-3-1", "03/01/2024", "2024-13-01", "yesterday"} {
		if _, err := ParseDayKey(bad); err == nil {
			t.Errorf("ParseDayKey(%q) accepted", bad)
		}
	}
}

func TestTodayTimezones(t *testing.T) {
	if _, err := Today(""); err != nil {
		t.Fatalf("empty timezone should default to UTC: %v", err)
	}
	if _, err := Today("America/New_York"); err != nil {
		t.Fatalf("valid zone: %v", err)
	}
	if _, err := Today("Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatal("expected ErrInvalidTimezone for unknown zone")
	}

	today, _ := Today("")
	yesterday, _ := Yesterday("")
	n, err := DaysBetween(yesterday, today)
	if err != nil || n != 1 {
		t.Fatalf("today is %d day(s) after yesterday, want 1 (err=%v)", n, err)
	}
}
