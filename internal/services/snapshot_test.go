package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"technician-dispatch-service/internal/domain"
)

func snapshotFixture() SnapshotInput {
	est := time.Date(2026, 1, 5, 14, 0, 0, 123456789, time.FixedZone("MST", -7*3600))
	return SnapshotInput{
		SnapshotID: "a2e5b8c1-0000-0000-0000-000000000001",
		CompanyID:  7,
		DateRange: domain.DateRange{
			Start: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		},
		Jobs: []domain.Job{
			{ID: 3, CompanyID: 7, Location: siteC, DurationMinutes: 20},
			{ID: 1, CompanyID: 7, Location: siteB, DurationMinutes: 30,
				TimeWindow: domain.TimeWindow{EarliestStart: &est}},
			{ID: 2, CompanyID: 7, Location: siteD, DurationMinutes: 45},
		},
		Technicians: []domain.Technician{
			{ID: 2, CompanyID: 7, HomeBase: homeBase},
			{ID: 1, CompanyID: 7, HomeBase: homeBase},
		},
		Stops: []domain.RouteStop{
			{JobID: 3, TechnicianID: 2, Date: "2026-01-05", SequenceIndex: 0,
				PlannedArrival: at(9, 0), PlannedDeparture: at(9, 20)},
			{JobID: 1, TechnicianID: 1, Date: "2026-01-05", SequenceIndex: 0,
				PlannedArrival: at(8, 30), PlannedDeparture: at(9, 0)},
		},
		Overflow: []domain.OverflowEntry{
			{Job: domain.Job{ID: 2, CompanyID: 7}, Reason: domain.OverflowNoFeasibleSlot},
		},
		Conflicts: []domain.ConflictRecord{
			{Type: domain.ConflictTimeWindowViolation, TechnicianID: 1, InvolvedJobIDs: []int{1}},
			{Type: domain.ConflictDoubleBooking, TechnicianID: 1, InvolvedJobIDs: []int{1, 3}},
		},
		GeneratedAt: time.Date(2026, 1, 5, 12, 0, 0, 999999999, time.UTC),
	}
}

func TestBuildSnapshotStableOrdering(t *testing.T) {
	s := BuildSnapshot(snapshotFixture())

	assert.Equal(t, []int{1, 2, 3}, []int{s.Jobs[0].ID, s.Jobs[1].ID, s.Jobs[2].ID})
	assert.Equal(t, []int{1, 2}, []int{s.Technicians[0].ID, s.Technicians[1].ID})

	require.Len(t, s.RouteStops, 2)
	assert.Equal(t, 1, s.RouteStops[0].TechnicianID)
	assert.Equal(t, 2, s.RouteStops[1].TechnicianID)

	require.Len(t, s.Conflicts, 2)
	assert.Equal(t, domain.ConflictDoubleBooking, s.Conflicts[0].Type)
	assert.Equal(t, domain.ConflictTimeWindowViolation, s.Conflicts[1].Type)
}

func TestBuildSnapshotNormalizesTimes(t *testing.T) {
	s := BuildSnapshot(snapshotFixture())

	assert.Equal(t, time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC), s.GeneratedAt)

	// The earliest-start window was given in a non-UTC zone with sub-second
	// precision; the snapshot carries it as UTC at second precision.
	want := time.Date(2026, 1, 5, 21, 0, 0, 0, time.UTC)
	require.NotNil(t, s.Jobs[0].TimeWindow.EarliestStart)
	assert.True(t, s.Jobs[0].TimeWindow.EarliestStart.Equal(want))
	_, offset := s.Jobs[0].TimeWindow.EarliestStart.Zone()
	assert.Zero(t, offset)
}

func TestBuildSnapshotSplitsUnscheduled(t *testing.T) {
	s := BuildSnapshot(snapshotFixture())

	// Jobs 1 and 3 are on routes; job 2 is not.
	require.Len(t, s.UnscheduledJobs, 1)
	assert.Equal(t, 2, s.UnscheduledJobs[0].ID)
	require.Len(t, s.Overflow, 1)
	assert.Equal(t, 2, s.Overflow[0].Job.ID)
}

func TestEncodeSnapshotIsByteStable(t *testing.T) {
	first := BuildSnapshot(snapshotFixture())

	// Same content, shuffled input order.
	in := snapshotFixture()
	in.Jobs[0], in.Jobs[2] = in.Jobs[2], in.Jobs[0]
	in.Technicians[0], in.Technicians[1] = in.Technicians[1], in.Technicians[0]
	in.Stops[0], in.Stops[1] = in.Stops[1], in.Stops[0]
	in.Conflicts[0], in.Conflicts[1] = in.Conflicts[1], in.Conflicts[0]
	second := BuildSnapshot(in)

	a, err := EncodeSnapshot(first)
	require.NoError(t, err)
	b, err := EncodeSnapshot(second)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildSnapshotDoesNotMutateInput(t *testing.T) {
	in := snapshotFixture()
	origEarliest := *in.Jobs[1].TimeWindow.EarliestStart

	BuildSnapshot(in)

	assert.Equal(t, 3, in.Jobs[0].ID, "input job order must be untouched")
	assert.Equal(t, origEarliest, *in.Jobs[1].TimeWindow.EarliestStart)
}
