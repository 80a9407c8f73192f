package domain

import (
	"fmt"
	"time"
)

// MinuteOfDay is a local wall-clock time expressed as minutes after midnight.
type MinuteOfDay int

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// ParseMinuteOfDay parses "HH:MM" into a MinuteOfDay.
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	var h, min int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &min); err != nil {
		return 0, fmt.Errorf("parse minute of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || min < 0 || min > 59 {
		return 0, fmt.Errorf("parse minute of day %q: out of range", s)
	}
	return MinuteOfDay(h*60 + min), nil
}

// DayHours is one weekday's working span in technician-local time.
type DayHours struct {
	Start MinuteOfDay `json:"start"`
	End   MinuteOfDay `json:"end"`
}

// WorkingHours maps weekdays to working spans. A weekday with no entry means
// the technician is unavailable that day.
type WorkingHours map[time.Weekday]DayHours

// Represents a field technician with a home base and per-weekday availability.
type Technician struct {
	ID        int          `json:"id"`
	CompanyID int          `json:"companyId"`
	HomeBase  Coordinates  `json:"homeBase"`
	Hours     WorkingHours `json:"workingHours"`
	Skills    []string     `json:"skills,omitempty"`
}

// DayWindow resolves the technician's working span for a calendar date in the
// given location. ok is false when the technician has no hours that weekday.
func (t Technician) DayWindow(date time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	hours, found := t.Hours[day.Weekday()]
	if !found {
		return time.Time{}, time.Time{}, false
	}

	start = day.Add(time.Duration(hours.Start) * time.Minute)
	end = day.Add(time.Duration(hours.End) * time.Minute)
	return start, end, true
}
