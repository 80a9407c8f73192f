package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/ports"
)

// Planner orchestrates one full pass: aggregate, optimize per
// technician-day, detect conflicts, and package the snapshot.
//
// Technician-days are independent state, so technicians are optimized in
// parallel behind a bounded semaphore; days within one technician run
// serially to keep per-technician state race-free.
type Planner struct {
	agg         *Aggregator
	opt         *Optimizer
	estimator   ports.TravelEstimator
	loc         *time.Location
	maxParallel int
	clock       func() time.Time
	newID       func() string
	log         zerolog.Logger
}

func NewPlanner(agg *Aggregator, opt *Optimizer, estimator ports.TravelEstimator, loc *time.Location, maxParallel int, log zerolog.Logger) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	if maxParallel <= 0 {
		maxParallel = 5
	}
	return &Planner{
		agg:         agg,
		opt:         opt,
		estimator:   estimator,
		loc:         loc,
		maxParallel: maxParallel,
		clock:       time.Now,
		newID:       uuid.NewString,
		log:         log,
	}
}

type technicianResult struct {
	techID    int
	stops     []domain.RouteStop
	overflow  []domain.OverflowEntry
	conflicts []domain.ConflictRecord
	err       error
}

// BuildSchedule produces the bootstrap snapshot for a company and date
// range. The UI always receives a snapshot (possibly with overflow and
// conflicts populated); the only hard failure is the underlying data load.
func (p *Planner) BuildSchedule(ctx context.Context, companyID int, rng domain.DateRange) (*domain.ScheduleSnapshot, error) {
	data, err := p.agg.Load(ctx, companyID, rng)
	if err != nil {
		return nil, fmt.Errorf("build schedule: %w", err)
	}

	// Range dates arrive as UTC midnights; rebuild each at local midnight so
	// the date keys below match assignment dates and DayWindow resolves the
	// same calendar day.
	days := rng.Days()
	for i, d := range days {
		days[i] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, p.loc)
	}

	byTechDay := make(map[int]map[string][]domain.Job)
	knownTech := make(map[int]struct{}, len(data.Technicians))
	for _, t := range data.Technicians {
		knownTech[t.ID] = struct{}{}
		byTechDay[t.ID] = make(map[string][]domain.Job)
	}

	var orphaned []domain.OverflowEntry
	for _, j := range data.Jobs {
		if j.Assignment == nil {
			continue
		}
		if _, ok := knownTech[j.Assignment.TechnicianID]; !ok {
			// Assigned to a removed or archived technician.
			orphaned = append(orphaned, domain.OverflowEntry{Job: j, Reason: domain.OverflowTechnicianUnavailable})
			continue
		}
		byTechDay[j.Assignment.TechnicianID][j.Assignment.ScheduledDate] = append(
			byTechDay[j.Assignment.TechnicianID][j.Assignment.ScheduledDate], j,
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, p.maxParallel)
	resultsCh := make(chan technicianResult, len(data.Technicians))
	var wg sync.WaitGroup

	for _, tech := range data.Technicians {
		wg.Add(1)
		go func(tech domain.Technician) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			res := technicianResult{techID: tech.ID}
			for _, day := range days {
				jobs := byTechDay[tech.ID][day.Format("2006-01-02")]
				if len(jobs) == 0 {
					continue
				}

				opt, err := p.opt.Optimize(ctx, tech, day, jobs)
				if err != nil {
					res.err = fmt.Errorf("optimize technician %d: %w", tech.ID, err)
					cancel()
					break
				}

				jobsByID := make(map[int]domain.Job, len(jobs))
				for _, j := range jobs {
					jobsByID[j.ID] = j
				}

				res.stops = append(res.stops, opt.Stops...)
				res.overflow = append(res.overflow, opt.Overflow...)
				res.conflicts = append(res.conflicts,
					DetectConflicts(ctx, tech, day, p.loc, opt.Stops, jobsByID, p.estimator)...)
			}
			resultsCh <- res
		}(tech)
	}

	wg.Wait()
	close(resultsCh)

	var stops []domain.RouteStop
	overflow := orphaned
	var conflicts []domain.ConflictRecord
	for res := range resultsCh {
		if res.err != nil {
			return nil, fmt.Errorf("build schedule: %w", res.err)
		}
		stops = append(stops, res.stops...)
		overflow = append(overflow, res.overflow...)
		conflicts = append(conflicts, res.conflicts...)
	}

	snap := BuildSnapshot(SnapshotInput{
		SnapshotID:  p.newID(),
		CompanyID:   companyID,
		DateRange:   rng,
		Jobs:        data.Jobs,
		Technicians: data.Technicians,
		Stops:       stops,
		Overflow:    overflow,
		Conflicts:   conflicts,
		GeneratedAt: p.clock(),
	})
	return &snap, nil
}

// EditKind names a manual schedule edit re-entering the optimizer.
type EditKind string

const (
	// EditReorder pins an explicit job order for the technician-day; the
	// listed jobs become locked in that sequence.
	EditReorder EditKind = "reorder"
	// EditAssign moves a job onto the technician-day as a free job.
	EditAssign EditKind = "assign_job"
	// EditUnassign returns a job to the unscheduled backlog.
	EditUnassign EditKind = "unassign_job"
	// EditRemoveTechnician drops the technician for the day; their jobs
	// overflow rather than disappear.
	EditRemoveTechnician EditKind = "remove_technician"
)

// Edit is a dispatcher's intent for one technician-day. Edits are applied to
// the in-memory model before recomputing; persisting the underlying CRUD
// change is the external collaborator's job.
type Edit struct {
	Kind   EditKind `json:"kind"`
	JobID  int      `json:"jobId,omitempty"`
	JobIDs []int    `json:"jobIds,omitempty"`
}

// RecomputeTechnicianDay re-optimizes a single technician-day after an edit
// and returns the authoritative replacement snapshot scoped to that day.
// The client discards its optimistic state wholesale in favor of it.
func (p *Planner) RecomputeTechnicianDay(ctx context.Context, companyID, technicianID int, date time.Time, edit Edit) (*domain.ScheduleSnapshot, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, p.loc)
	dateKey := day.Format("2006-01-02")
	rng := domain.DateRange{Start: day, End: day}

	data, err := p.agg.Load(ctx, companyID, rng)
	if err != nil {
		return nil, fmt.Errorf("recompute technician day: %w", err)
	}

	var tech *domain.Technician
	for i := range data.Technicians {
		if data.Technicians[i].ID == technicianID {
			tech = &data.Technicians[i]
			break
		}
	}

	jobs := applyEdit(data.Jobs, technicianID, dateKey, edit)

	dayJobs := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Assignment != nil && j.Assignment.TechnicianID == technicianID && j.Assignment.ScheduledDate == dateKey {
			dayJobs = append(dayJobs, j)
		}
	}

	var stops []domain.RouteStop
	var overflow []domain.OverflowEntry
	var conflicts []domain.ConflictRecord

	if tech == nil || edit.Kind == EditRemoveTechnician {
		for _, j := range dayJobs {
			overflow = append(overflow, domain.OverflowEntry{Job: j, Reason: domain.OverflowTechnicianUnavailable})
		}
	} else {
		opt, err := p.opt.Optimize(ctx, *tech, day, dayJobs)
		if err != nil {
			return nil, fmt.Errorf("recompute technician day: %w", err)
		}
		stops = opt.Stops
		overflow = opt.Overflow

		jobsByID := make(map[int]domain.Job, len(dayJobs))
		for _, j := range dayJobs {
			jobsByID[j.ID] = j
		}
		conflicts = DetectConflicts(ctx, *tech, day, p.loc, stops, jobsByID, p.estimator)
	}

	var techs []domain.Technician
	if tech != nil && edit.Kind != EditRemoveTechnician {
		techs = []domain.Technician{*tech}
	}

	snap := BuildSnapshot(SnapshotInput{
		SnapshotID:  p.newID(),
		CompanyID:   companyID,
		DateRange:   rng,
		Jobs:        dayJobs,
		Technicians: techs,
		Stops:       stops,
		Overflow:    overflow,
		Conflicts:   conflicts,
		GeneratedAt: p.clock(),
	})
	return &snap, nil
}

// applyEdit rewrites assignments in the working copy of the job list.
func applyEdit(jobs []domain.Job, technicianID int, dateKey string, edit Edit) []domain.Job {
	out := make([]domain.Job, len(jobs))
	copy(out, jobs)

	switch edit.Kind {
	case EditReorder:
		pos := make(map[int]int, len(edit.JobIDs))
		for i, id := range edit.JobIDs {
			pos[id] = i
		}
		for i := range out {
			seq, listed := pos[out[i].ID]
			if !listed {
				continue
			}
			out[i].Assignment = &domain.Assignment{
				TechnicianID:  technicianID,
				ScheduledDate: dateKey,
				Locked:        true,
				Sequence:      seq,
			}
			out[i].Status = domain.JobStatusLocked
		}
	case EditAssign:
		for i := range out {
			if out[i].ID == edit.JobID {
				out[i].Assignment = &domain.Assignment{
					TechnicianID:  technicianID,
					ScheduledDate: dateKey,
				}
				out[i].Status = domain.JobStatusScheduled
			}
		}
	case EditUnassign:
		for i := range out {
			if out[i].ID == edit.JobID {
				out[i].Assignment = nil
				out[i].Status = domain.JobStatusUnscheduled
			}
		}
	}

	return out
}
