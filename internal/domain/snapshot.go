package domain

import "time"

// DateRange is an inclusive calendar date span.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns every calendar date in the range, in order.
func (r DateRange) Days() []time.Time {
	if r.End.Before(r.Start) {
		return nil
	}
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ScheduleSnapshot is the complete point-in-time view of a schedule handed
// to the calendar UI. It is immutable once produced: an edit yields a new
// snapshot that replaces the previous one wholesale, never an in-place
// mutation visible to consumers.
type ScheduleSnapshot struct {
	SnapshotID      string           `json:"snapshotId"`
	CompanyID       int              `json:"companyId"`
	DateRange       DateRange        `json:"dateRange"`
	Jobs            []Job            `json:"jobs"`
	Technicians     []Technician     `json:"technicians"`
	RouteStops      []RouteStop      `json:"routeStops"`
	UnscheduledJobs []Job            `json:"unscheduledJobs"`
	Overflow        []OverflowEntry  `json:"overflow"`
	Conflicts       []ConflictRecord `json:"conflicts"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

// UnscheduledPage is one page of the unscheduled-job backlog query.
type UnscheduledPage struct {
	Jobs       []Job `json:"jobs"`
	TotalCount int   `json:"totalCount"`
	HasMore    bool  `json:"hasMore"`
}
