package services

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/platform/obs"
	"technician-dispatch-service/internal/ports"
)

// Optimizer produces an ordered visit sequence per technician-day.
//
// Construction is greedy nearest-neighbor insertion honoring time windows;
// improvement is a bounded 2-opt local search over free positions. Locked
// jobs keep their relative order and are only re-timed. Every decision point
// breaks ties by job ID ascending, making output deterministic for identical
// inputs.
//
// The algorithm minimizes travel at each step; it does not attempt global
// optimization (e.g., VRP solvers with capacity constraints). Determinism
// and bounded runtime win over optimality.
type Optimizer struct {
	estimator ports.TravelEstimator
	maxPasses int
	loc       *time.Location
	log       zerolog.Logger
	metrics   *obs.Metrics
}

func NewOptimizer(estimator ports.TravelEstimator, maxPasses int, loc *time.Location, log zerolog.Logger, metrics *obs.Metrics) *Optimizer {
	if maxPasses <= 0 {
		maxPasses = 3
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Optimizer{
		estimator: estimator,
		maxPasses: maxPasses,
		loc:       loc,
		log:       log,
		metrics:   metrics,
	}
}

// OptimizeResult is one technician-day's planned stops plus the jobs that
// could not be placed. Overflow jobs stay unscheduled; they are never
// silently dropped.
type OptimizeResult struct {
	Stops    []domain.RouteStop
	Overflow []domain.OverflowEntry
}

// Optimize plans one technician-day. Locked jobs (by assignment) keep their
// manual relative order; free jobs are sequenced around them. The whole
// day's timing is recomputed since an upstream change shifts every
// downstream arrival.
//
// The only error returned is context cancellation (a superseded recompute);
// provider failures degrade inside the estimator and never surface here.
func (o *Optimizer) Optimize(ctx context.Context, tech domain.Technician, date time.Time, jobs []domain.Job) (OptimizeResult, error) {
	start := time.Now()
	defer func() { o.metrics.ObserveOptimize(time.Since(start).Seconds()) }()

	var res OptimizeResult

	dayStart, _, available := tech.DayWindow(date, o.loc)
	if !available {
		res.Overflow = overflowAll(jobs, domain.OverflowTechnicianUnavailable)
		return res, nil
	}
	if !tech.HomeBase.Valid() {
		res.Overflow = overflowAll(jobs, domain.OverflowInvalidLocation)
		return res, nil
	}

	var locked, free []domain.Job
	for _, j := range jobs {
		if !j.Location.Valid() {
			res.Overflow = append(res.Overflow, domain.OverflowEntry{Job: j, Reason: domain.OverflowInvalidLocation})
			continue
		}
		if j.Assignment != nil && j.Assignment.Locked {
			locked = append(locked, j)
		} else {
			free = append(free, j)
		}
	}
	sort.Slice(res.Overflow, func(i, j int) bool { return res.Overflow[i].Job.ID < res.Overflow[j].Job.ID })
	sort.Slice(locked, func(i, j int) bool {
		if locked[i].Assignment.Sequence != locked[j].Assignment.Sequence {
			return locked[i].Assignment.Sequence < locked[j].Assignment.Sequence
		}
		return locked[i].ID < locked[j].ID
	})
	sort.Slice(free, func(i, j int) bool { return free[i].ID < free[j].ID })

	seq, err := o.construct(ctx, tech, dayStart, locked, free, &res.Overflow)
	if err != nil {
		return OptimizeResult{}, err
	}

	seq, err = o.improve(ctx, tech, dayStart, seq)
	if err != nil {
		return OptimizeResult{}, err
	}

	res.Stops = o.timeRoute(ctx, tech, date, dayStart, seq)
	return res, nil
}

func overflowAll(jobs []domain.Job, reason domain.OverflowReason) []domain.OverflowEntry {
	sorted := make([]domain.Job, len(jobs))
	copy(sorted, jobs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := make([]domain.OverflowEntry, 0, len(sorted))
	for _, j := range sorted {
		out = append(out, domain.OverflowEntry{Job: j, Reason: reason})
	}
	return out
}

// arrivalAt applies travel from the route tail and waits out an early
// arrival: the visit cannot begin before the window opens.
func arrivalAt(tail time.Time, est domain.TravelEstimate, j domain.Job) time.Time {
	arr := tail.Add(est.TravelDuration())
	if j.TimeWindow.EarliestStart != nil && arr.Before(*j.TimeWindow.EarliestStart) {
		arr = *j.TimeWindow.EarliestStart
	}
	return arr
}

func startFeasible(j domain.Job, arrival time.Time) bool {
	return j.TimeWindow.LatestStart == nil || !arrival.After(*j.TimeWindow.LatestStart)
}

// construct builds the visit sequence: locked jobs form fixed anchors in
// their manual order, and at every step the nearest feasible free job is
// appended, relaxing to the next-nearest when the closest one's window (or
// the next anchor's window) rules it out. When no free job fits and no
// anchor remains, the rest overflow with no_feasible_slot.
func (o *Optimizer) construct(
	ctx context.Context,
	tech domain.Technician,
	dayStart time.Time,
	locked, free []domain.Job,
	overflow *[]domain.OverflowEntry,
) ([]domain.Job, error) {
	cur := tech.HomeBase
	t := dayStart
	li := 0
	remaining := free

	seq := make([]domain.Job, 0, len(locked)+len(free))

	for len(remaining) > 0 || li < len(locked) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(remaining) > 0 {
			dests := make([]domain.Coordinates, len(remaining))
			for i, j := range remaining {
				dests[i] = j.Location
			}
			ests := o.estimator.EstimateMany(ctx, cur, dests)

			// Nearest first; remaining is ID-sorted so equal durations
			// resolve to the lower job ID.
			order := make([]int, len(remaining))
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool {
				return ests[order[a]].DurationSeconds < ests[order[b]].DurationSeconds
			})

			var nextAnchor *domain.Job
			if li < len(locked) {
				nextAnchor = &locked[li]
			}

			picked := -1
			for _, i := range order {
				j := remaining[i]
				arr := arrivalAt(t, ests[i], j)
				if !startFeasible(j, arr) {
					continue
				}
				if nextAnchor != nil && !o.anchorStillFeasible(ctx, j, arr, *nextAnchor) {
					continue
				}
				picked = i
				break
			}

			if picked >= 0 {
				j := remaining[picked]
				arr := arrivalAt(t, ests[picked], j)
				t = arr.Add(j.ServiceDuration())
				cur = j.Location
				seq = append(seq, j)
				remaining = append(remaining[:picked:picked], remaining[picked+1:]...)
				continue
			}
		}

		if li < len(locked) {
			// Advance to the next anchor. Locked jobs are always placed:
			// a window miss here is a manual decision and surfaces as a
			// conflict, not overflow.
			l := locked[li]
			li++
			est := o.estimator.Estimate(ctx, cur, l.Location)
			arr := arrivalAt(t, est, l)
			t = arr.Add(l.ServiceDuration())
			cur = l.Location
			seq = append(seq, l)
			continue
		}

		// No feasible free job and no anchors left: construction halts.
		for _, j := range remaining {
			*overflow = append(*overflow, domain.OverflowEntry{Job: j, Reason: domain.OverflowNoFeasibleSlot})
		}
		break
	}

	return seq, nil
}

// anchorStillFeasible checks that serving j now does not push the next
// locked anchor past its window.
func (o *Optimizer) anchorStillFeasible(ctx context.Context, j domain.Job, arrival time.Time, anchor domain.Job) bool {
	if anchor.TimeWindow.LatestStart == nil {
		return true
	}
	dep := arrival.Add(j.ServiceDuration())
	est := o.estimator.Estimate(ctx, j.Location, anchor.Location)
	return startFeasible(anchor, arrivalAt(dep, est, anchor))
}

type routeEval struct {
	travelSeconds int
	violations    int
}

// walk times a candidate sequence from the day start, summing travel and
// counting time-window violations.
func (o *Optimizer) walk(ctx context.Context, tech domain.Technician, dayStart time.Time, seq []domain.Job) routeEval {
	cur := tech.HomeBase
	t := dayStart

	var ev routeEval
	for _, j := range seq {
		est := o.estimator.Estimate(ctx, cur, j.Location)
		ev.travelSeconds += est.DurationSeconds

		arr := arrivalAt(t, est, j)
		if !startFeasible(j, arr) {
			ev.violations++
		}
		t = arr.Add(j.ServiceDuration())
		cur = j.Location
	}
	return ev
}

// improve runs a bounded 2-opt pass over free positions only. A swap is
// applied when it strictly reduces total travel time without introducing a
// new time-window violation. The pass count cap keeps recomputes
// interactive even on cold caches.
func (o *Optimizer) improve(ctx context.Context, tech domain.Technician, dayStart time.Time, seq []domain.Job) ([]domain.Job, error) {
	var freePos []int
	for i, j := range seq {
		if j.Assignment == nil || !j.Assignment.Locked {
			freePos = append(freePos, i)
		}
	}
	if len(freePos) < 2 {
		return seq, nil
	}

	base := o.walk(ctx, tech, dayStart, seq)

	for pass := 0; pass < o.maxPasses; pass++ {
		improved := false

		for a := 0; a < len(freePos)-1; a++ {
			for b := a + 1; b < len(freePos); b++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				cand := make([]domain.Job, len(seq))
				copy(cand, seq)
				cand[freePos[a]], cand[freePos[b]] = cand[freePos[b]], cand[freePos[a]]

				ev := o.walk(ctx, tech, dayStart, cand)
				if ev.travelSeconds < base.travelSeconds && ev.violations <= base.violations {
					seq = cand
					base = ev
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return seq, nil
}

// timeRoute converts the final sequence into dense, 0-indexed route stops
// with planned arrival/departure and the travel estimate used per leg.
func (o *Optimizer) timeRoute(ctx context.Context, tech domain.Technician, date, dayStart time.Time, seq []domain.Job) []domain.RouteStop {
	cur := tech.HomeBase
	t := dayStart
	dateKey := date.In(o.loc).Format("2006-01-02")

	stops := make([]domain.RouteStop, 0, len(seq))
	for i, j := range seq {
		est := o.estimator.Estimate(ctx, cur, j.Location)
		arr := arrivalAt(t, est, j)
		dep := arr.Add(j.ServiceDuration())

		stops = append(stops, domain.RouteStop{
			JobID:              j.ID,
			TechnicianID:       tech.ID,
			Date:               dateKey,
			SequenceIndex:      i,
			PlannedArrival:     arr,
			PlannedDeparture:   dep,
			TravelFromPrevious: est,
		})

		t = dep
		cur = j.Location
	}
	return stops
}
