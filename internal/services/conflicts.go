package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/ports"
)

// DetectConflicts scans one technician-day's stops for double bookings, time
// window violations, and end-of-day overruns. It runs after every optimizer
// pass and after any manual edit that bypasses the optimizer.
//
// Detection never mutates the schedule; it only reports. Records are
// returned in a stable order (type, then first involved job).
func DetectConflicts(
	ctx context.Context,
	tech domain.Technician,
	date time.Time,
	loc *time.Location,
	stops []domain.RouteStop,
	jobsByID map[int]domain.Job,
	estimator ports.TravelEstimator,
) []domain.ConflictRecord {
	if len(stops) == 0 {
		return nil
	}

	sorted := make([]domain.RouteStop, len(stops))
	copy(sorted, stops)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].PlannedArrival.Equal(sorted[j].PlannedArrival) {
			return sorted[i].PlannedArrival.Before(sorted[j].PlannedArrival)
		}
		return sorted[i].JobID < sorted[j].JobID
	})

	var records []domain.ConflictRecord

	// Sweep over arrival-sorted stops: any arrival before the running
	// maximum departure overlaps the stop that set it.
	prev := sorted[0]
	for _, cur := range sorted[1:] {
		if cur.PlannedArrival.Before(prev.PlannedDeparture) {
			records = append(records, domain.ConflictRecord{
				Type:           domain.ConflictDoubleBooking,
				TechnicianID:   tech.ID,
				InvolvedJobIDs: []int{prev.JobID, cur.JobID},
				Detail: fmt.Sprintf(
					"jobs %d and %d overlap: %s arrival is before %s departure",
					prev.JobID, cur.JobID,
					cur.PlannedArrival.Format("15:04"), prev.PlannedDeparture.Format("15:04"),
				),
			})
		}
		if cur.PlannedDeparture.After(prev.PlannedDeparture) {
			prev = cur
		}
	}

	for _, s := range sorted {
		job, ok := jobsByID[s.JobID]
		if !ok {
			continue
		}
		if !job.WindowContains(s.PlannedArrival) {
			records = append(records, domain.ConflictRecord{
				Type:           domain.ConflictTimeWindowViolation,
				TechnicianID:   tech.ID,
				InvolvedJobIDs: []int{s.JobID},
				Detail: fmt.Sprintf(
					"job %d arrival %s is outside its time window",
					s.JobID, s.PlannedArrival.Format("15:04"),
				),
			})
		}
	}

	if _, dayEnd, ok := tech.DayWindow(date, loc); ok {
		last := sorted[len(sorted)-1]
		endAt := last.PlannedDeparture
		if job, found := jobsByID[last.JobID]; found && job.Location.Valid() && tech.HomeBase.Valid() {
			ret := estimator.Estimate(ctx, job.Location, tech.HomeBase)
			endAt = endAt.Add(ret.TravelDuration())
		}
		if endAt.After(dayEnd) {
			records = append(records, domain.ConflictRecord{
				Type:           domain.ConflictEndOfDayOverrun,
				TechnicianID:   tech.ID,
				InvolvedJobIDs: []int{last.JobID},
				Detail: fmt.Sprintf(
					"day ends at %s after return travel, past working hours end %s",
					endAt.Format("15:04"), dayEnd.Format("15:04"),
				),
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Type != records[j].Type {
			return records[i].Type < records[j].Type
		}
		return records[i].InvolvedJobIDs[0] < records[j].InvolvedJobIDs[0]
	})

	return records
}
