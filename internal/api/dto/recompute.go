package dto

// EditPayload carries the edit-specific fields for a recompute trigger.
type EditPayload struct {
	JobID  int   `json:"jobId,omitempty"`
	JobIDs []int `json:"jobIds,omitempty"`
}

// RecomputeRequest identifies the technician-day to re-optimize and the
// manual edit that triggered it.
type RecomputeRequest struct {
	CompanyID    int         `json:"companyId"`
	TechnicianID int         `json:"technicianId"`
	Date         string      `json:"date"` // YYYY-MM-DD
	EditKind     string      `json:"editKind"`
	Payload      EditPayload `json:"payload"`
}
