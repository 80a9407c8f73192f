package ports

import (
	"context"

	"technician-dispatch-service/internal/domain"
)

// Raw jobs and technicians for a company and date range, as loaded from the
// persistence collaborator before aggregation.
type ScheduleData struct {
	Jobs        []domain.Job
	Technicians []domain.Technician
}

// Port: boundary for loading scheduling entities from the data source.
// Implementations must exclude soft-deleted and archived rows.
type ScheduleRepository interface {
	// LoadSchedule returns all jobs touching the date range (scheduled on a
	// date inside it, or unscheduled) plus the company's technicians.
	LoadSchedule(ctx context.Context, companyID int, rng domain.DateRange) (ScheduleData, error)
	// ListUnscheduled returns one backlog page matching the free-text
	// search, with the total match count for paging.
	ListUnscheduled(ctx context.Context, companyID int, search string, limit, offset int) ([]domain.Job, int, error)
}
