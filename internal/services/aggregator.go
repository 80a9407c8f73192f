package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/platform/obs"
	"technician-dispatch-service/internal/ports"
)

// Aggregator loads raw jobs and technicians from the persistence
// collaborator and produces the working in-memory model the optimizer
// consumes. It owns canonicalization: join-shape normalization happens at
// this boundary so downstream components never do shape detection.
type Aggregator struct {
	repo ports.ScheduleRepository
	log  zerolog.Logger
}

func NewAggregator(repo ports.ScheduleRepository, log zerolog.Logger) *Aggregator {
	return &Aggregator{repo: repo, log: log}
}

// Load fetches all jobs and technicians for the company and date range.
// Persistence errors propagate; partial data is never returned silently.
func (a *Aggregator) Load(ctx context.Context, companyID int, rng domain.DateRange) (_ ports.ScheduleData, err error) {
	defer obs.Time(a.log, "aggregator.Load")(&err)

	if companyID <= 0 {
		return ports.ScheduleData{}, errors.New("load schedule: companyID must be positive")
	}
	if rng.End.Before(rng.Start) {
		return ports.ScheduleData{}, errors.New("load schedule: date range end is before start")
	}

	data, err := a.repo.LoadSchedule(ctx, companyID, rng)
	if err != nil {
		return ports.ScheduleData{}, fmt.Errorf("load schedule: %w", err)
	}

	jobs := make([]domain.Job, 0, len(data.Jobs))
	seen := make(map[int]struct{}, len(data.Jobs))
	for _, j := range data.Jobs {
		// Joined result sets can repeat a job row per related entity;
		// the first occurrence wins after normalization.
		if _, dup := seen[j.ID]; dup {
			continue
		}
		seen[j.ID] = struct{}{}
		jobs = append(jobs, canonicalizeJob(j))
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })

	techs := make([]domain.Technician, 0, len(data.Technicians))
	seenTech := make(map[int]struct{}, len(data.Technicians))
	for _, t := range data.Technicians {
		if _, dup := seenTech[t.ID]; dup {
			continue
		}
		seenTech[t.ID] = struct{}{}
		techs = append(techs, t)
	}
	sort.Slice(techs, func(i, j int) bool { return techs[i].ID < techs[j].ID })

	return ports.ScheduleData{Jobs: jobs, Technicians: techs}, nil
}

// canonicalizeJob derives Status from the assignment so downstream code
// reads one field instead of re-checking the join.
func canonicalizeJob(j domain.Job) domain.Job {
	switch {
	case j.Assignment == nil:
		j.Status = domain.JobStatusUnscheduled
	case j.Assignment.Locked:
		j.Status = domain.JobStatusLocked
	default:
		j.Status = domain.JobStatusScheduled
	}
	return j
}

// LoadMoreUnscheduled returns one page of the unscheduled backlog matching
// the free-text search. IDs are unique within a page; overlap with
// previously fetched pages is the caller's merge responsibility.
func (a *Aggregator) LoadMoreUnscheduled(ctx context.Context, companyID int, search string, limit, offset int) (_ domain.UnscheduledPage, err error) {
	defer obs.Time(a.log, "aggregator.LoadMoreUnscheduled")(&err)

	if companyID <= 0 {
		return domain.UnscheduledPage{}, errors.New("load unscheduled: companyID must be positive")
	}
	if limit <= 0 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := a.repo.ListUnscheduled(ctx, companyID, search, limit, offset)
	if err != nil {
		return domain.UnscheduledPage{}, fmt.Errorf("load unscheduled: %w", err)
	}

	jobs := make([]domain.Job, 0, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for _, j := range rows {
		if _, dup := seen[j.ID]; dup {
			continue
		}
		seen[j.ID] = struct{}{}
		jobs = append(jobs, canonicalizeJob(j))
	}

	return domain.UnscheduledPage{
		Jobs:       jobs,
		TotalCount: total,
		HasMore:    offset+len(jobs) < total,
	}, nil
}
