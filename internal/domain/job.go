package domain

import "time"

type JobStatus string

const (
	JobStatusUnscheduled JobStatus = "unscheduled"
	JobStatusScheduled   JobStatus = "scheduled"
	JobStatusLocked      JobStatus = "locked"
)

// TimeWindow is the range within which a job's visit must begin.
// A nil bound means unconstrained on that side.
type TimeWindow struct {
	EarliestStart *time.Time `json:"earliestStart,omitempty"`
	LatestStart   *time.Time `json:"latestStart,omitempty"`
}

// Assignment pins a job to a technician on a specific date. Locked
// assignments carry a manual sequence position that the optimizer must not
// reorder relative to other locked assignments.
type Assignment struct {
	TechnicianID  int       `json:"technicianId"`
	ScheduledDate string    `json:"scheduledDate"` // YYYY-MM-DD, technician-local
	Locked        bool      `json:"locked"`
	Sequence      int       `json:"sequence"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Represents a single unit of field work with a service location and an
// optional arrival time window. Scheduling state lives on the Assignment;
// Status is derived from it by the aggregator.
type Job struct {
	ID              int         `json:"id"`
	CompanyID       int         `json:"companyId"`
	Description     string      `json:"description,omitempty"`
	Location        Coordinates `json:"location"`
	DurationMinutes int         `json:"estimatedDurationMinutes"`
	TimeWindow      TimeWindow  `json:"timeWindow"`
	Priority        int         `json:"priority"`
	Status          JobStatus   `json:"status"`
	Assignment      *Assignment `json:"assignment,omitempty"`
	RequiredSkills  []string    `json:"requiredSkills,omitempty"`
}

// ServiceDuration returns the on-site time for the job.
func (j Job) ServiceDuration() time.Duration {
	return time.Duration(j.DurationMinutes) * time.Minute
}

// AssignedTechnicianID returns the assigned technician, or 0 when the job is
// unscheduled.
func (j Job) AssignedTechnicianID() int {
	if j.Assignment == nil {
		return 0
	}
	return j.Assignment.TechnicianID
}

// WindowContains reports whether an arrival at t satisfies the job's time
// window. Unbounded sides always pass.
func (j Job) WindowContains(t time.Time) bool {
	if j.TimeWindow.EarliestStart != nil && t.Before(*j.TimeWindow.EarliestStart) {
		return false
	}
	if j.TimeWindow.LatestStart != nil && t.After(*j.TimeWindow.LatestStart) {
		return false
	}
	return true
}
