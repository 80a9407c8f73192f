package domain

// ConflictType classifies a scheduling conflict.
type ConflictType string

const (
	ConflictDoubleBooking       ConflictType = "double_booking"
	ConflictTimeWindowViolation ConflictType = "time_window_violation"
	ConflictEndOfDayOverrun     ConflictType = "end_of_day_overrun"
)

// ConflictRecord reports one scheduling conflict on a technician-day.
// Records are ephemeral: they are recomputed on every optimizer pass and
// only ever persisted as part of a snapshot.
type ConflictRecord struct {
	Type           ConflictType `json:"type"`
	TechnicianID   int          `json:"technicianId"`
	InvolvedJobIDs []int        `json:"involvedJobIds"`
	Detail         string       `json:"detail"`
}
