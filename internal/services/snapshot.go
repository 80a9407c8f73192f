package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"technician-dispatch-service/internal/domain"
)

// SnapshotInput is everything the serializer packages. It computes no new
// scheduling decisions; it only orders and stamps what the optimizer and
// conflict detector already produced.
type SnapshotInput struct {
	SnapshotID  string
	CompanyID   int
	DateRange   domain.DateRange
	Jobs        []domain.Job
	Technicians []domain.Technician
	Stops       []domain.RouteStop
	Overflow    []domain.OverflowEntry
	Conflicts   []domain.ConflictRecord
	GeneratedAt time.Time
}

// BuildSnapshot assembles a client-hydratable snapshot with stable ordering:
// stops by technician, date, sequence; jobs and technicians by ID; conflicts
// by type, technician, first involved job. All timestamps are normalized to
// UTC at second precision so identical inputs serialize byte-identically.
func BuildSnapshot(in SnapshotInput) domain.ScheduleSnapshot {
	jobs := make([]domain.Job, len(in.Jobs))
	copy(jobs, in.Jobs)
	for i := range jobs {
		jobs[i] = normalizeJobTimes(jobs[i])
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })

	techs := make([]domain.Technician, len(in.Technicians))
	copy(techs, in.Technicians)
	sort.Slice(techs, func(i, j int) bool { return techs[i].ID < techs[j].ID })

	stops := make([]domain.RouteStop, len(in.Stops))
	copy(stops, in.Stops)
	for i := range stops {
		stops[i].PlannedArrival = canonTime(stops[i].PlannedArrival)
		stops[i].PlannedDeparture = canonTime(stops[i].PlannedDeparture)
		stops[i].TravelFromPrevious.FetchedAt = canonTime(stops[i].TravelFromPrevious.FetchedAt)
	}
	sort.Slice(stops, func(i, j int) bool {
		a, b := stops[i], stops[j]
		if a.TechnicianID != b.TechnicianID {
			return a.TechnicianID < b.TechnicianID
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.SequenceIndex != b.SequenceIndex {
			return a.SequenceIndex < b.SequenceIndex
		}
		return a.JobID < b.JobID
	})

	overflow := make([]domain.OverflowEntry, len(in.Overflow))
	copy(overflow, in.Overflow)
	for i := range overflow {
		overflow[i].Job = normalizeJobTimes(overflow[i].Job)
	}
	sort.Slice(overflow, func(i, j int) bool { return overflow[i].Job.ID < overflow[j].Job.ID })

	unscheduled := make([]domain.Job, 0)
	scheduledIDs := make(map[int]struct{}, len(stops))
	for _, s := range stops {
		scheduledIDs[s.JobID] = struct{}{}
	}
	for _, j := range jobs {
		if _, ok := scheduledIDs[j.ID]; !ok {
			unscheduled = append(unscheduled, j)
		}
	}

	conflicts := make([]domain.ConflictRecord, len(in.Conflicts))
	copy(conflicts, in.Conflicts)
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.TechnicianID != b.TechnicianID {
			return a.TechnicianID < b.TechnicianID
		}
		return firstJobID(a) < firstJobID(b)
	})

	return domain.ScheduleSnapshot{
		SnapshotID:      in.SnapshotID,
		CompanyID:       in.CompanyID,
		DateRange:       domain.DateRange{Start: canonTime(in.DateRange.Start), End: canonTime(in.DateRange.End)},
		Jobs:            jobs,
		Technicians:     techs,
		RouteStops:      stops,
		UnscheduledJobs: unscheduled,
		Overflow:        overflow,
		Conflicts:       conflicts,
		GeneratedAt:     canonTime(in.GeneratedAt),
	}
}

// EncodeSnapshot renders the snapshot as canonical JSON. Key order follows
// struct field order, so repeated calls with equal inputs are byte-equal.
func EncodeSnapshot(s domain.ScheduleSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func canonTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

func normalizeJobTimes(j domain.Job) domain.Job {
	if j.TimeWindow.EarliestStart != nil {
		e := canonTime(*j.TimeWindow.EarliestStart)
		j.TimeWindow.EarliestStart = &e
	}
	if j.TimeWindow.LatestStart != nil {
		l := canonTime(*j.TimeWindow.LatestStart)
		j.TimeWindow.LatestStart = &l
	}
	if j.Assignment != nil {
		a := *j.Assignment
		a.UpdatedAt = canonTime(a.UpdatedAt)
		j.Assignment = &a
	}
	return j
}

func firstJobID(c domain.ConflictRecord) int {
	if len(c.InvolvedJobIDs) == 0 {
		return 0
	}
	return c.InvolvedJobIDs[0]
}
