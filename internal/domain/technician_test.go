package domain

import (
	"testing"
	"time"
)

func TestDayWindow(t *testing.T) {
	tech := Technician{
		ID:       1,
		HomeBase: Coordinates{Lat: 33.4, Lng: -112.0},
		Hours: WorkingHours{
			time.Monday: {Start: 8 * 60, End: 17 * 60},
		},
	}

	// 2026-01-05 is a Monday.
	monday := time.Date(2026, 1, 5, 12, 30, 0, 0, time.UTC)
	start, end, ok := tech.DayWindow(monday, time.UTC)
	if !ok {
		t.Fatal("expected working hours on Monday")
	}
	if want := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	tuesday := monday.AddDate(0, 0, 1)
	if _, _, ok := tech.DayWindow(tuesday, time.UTC); ok {
		t.Error("expected no working hours on Tuesday")
	}
}

func TestParseMinuteOfDay(t *testing.T) {
	got, err := ParseMinuteOfDay("08:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 510 {
		t.Errorf("got %d, want 510", got)
	}

	for _, bad := range []string{"25:00", "08:61", "garbage"} {
		if _, err := ParseMinuteOfDay(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestJobWindowContains(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 1, 5, h, m, 0, 0, time.UTC) }
	earliest := at(9, 0)
	latest := at(10, 0)

	job := Job{TimeWindow: TimeWindow{EarliestStart: &earliest, LatestStart: &latest}}

	if !job.WindowContains(at(9, 30)) {
		t.Error("9:30 should be inside the window")
	}
	if job.WindowContains(at(8, 59)) {
		t.Error("8:59 should be before the window")
	}
	if job.WindowContains(at(10, 1)) {
		t.Error("10:01 should be after the window")
	}

	open := Job{}
	if !open.WindowContains(at(3, 0)) {
		t.Error("unbounded window should accept any time")
	}
}
