package clock

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q): %v", name, err)
	}
	return loc
}

func TestTodayUsesConfiguredZone(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	// 02:30 UTC on Oct 17 is still Oct 16 in New York.
	c := NewFixed(time.Date(2026, 10, 17, 2, 30, 0, 0, time.UTC), loc)

	got := c.Today()
	if got.Year() != 2026 || got.Month() != time.October || got.Day() != 16 {
		t.Fatalf("Today() = %v, want 2026-10-16", got)
	}
	if got.Location() != loc {
		t.Fatalf("Today() location = %v, want %v", got.Location(), loc)
	}
	if d := c.Date(c.Now()); d != "2026-10-16" {
		t.Fatalf("Date() = %s, want 2026-10-16", d)
	}
}

func TestDayBoundsAcrossDST(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	c := New(loc)

	tests := []struct {
		name string
		day  time.Time
		want time.Duration
	}{
		{name: "regular", day: time.Date(2026, 10, 17, 12, 0, 0, 0, loc), want: 24 * time.Hour},
		{name: "spring forward", day: time.Date(2026, 3, 8, 12, 0, 0, 0, loc), want: 23 * time.Hour},
		{name: "fall back", day: time.Date(2026, 11, 1, 12, 0, 0, 0, loc), want: 25 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := c.DayBounds(tt.day)
			if start.Location() != time.UTC || end.Location() != time.UTC {
				t.Fatalf("bounds must be UTC, got %v / %v", start.Location(), end.Location())
			}
			if got := end.Sub(start); got != tt.want {
				t.Fatalf("day length = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFixedClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixed(start, time.UTC)
	c.Advance(90 * time.Minute)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("Now() = %v after Advance", got)
	}
}

func TestLoadLocationInvalid(t *testing.T) {
	if _, err := LoadLocation("Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	loc, err := LoadLocation("")
	if err != nil || loc != time.UTC {
		t.Fatalf("empty zone should be UTC, got %v, %v", loc, err)
	}
}
