package domain

import "time"

// TravelSource tells consumers how a travel estimate was obtained.
type TravelSource string

const (
	// TravelSourceLive is a fresh, traffic-aware provider response.
	TravelSourceLive TravelSource = "live"
	// TravelSourceCached is a provider response served from the cache.
	TravelSourceCached TravelSource = "cached"
	// TravelSourceEstimated is a haversine fallback used when the provider
	// is unreachable, rate-limited, or timed out.
	TravelSourceEstimated TravelSource = "estimated"
)

// TravelEstimate is a point-to-point travel duration and distance, keyed by
// rounded coordinates. Entries are immutable once created; expiry is handled
// lazily by the cache on the next lookup.
type TravelEstimate struct {
	OriginKey       string       `json:"originKey"`
	DestinationKey  string       `json:"destinationKey"`
	DurationSeconds int          `json:"durationSeconds"`
	DistanceMeters  int          `json:"distanceMeters"`
	Source          TravelSource `json:"source"`
	FetchedAt       time.Time    `json:"fetchedAt"`
}

// TravelDuration returns the estimate's duration as a time.Duration.
func (e TravelEstimate) TravelDuration() time.Duration {
	return time.Duration(e.DurationSeconds) * time.Second
}

// RouteStop is one planned visit in a technician-day sequence. Stops are
// owned exclusively by the route optimizer for the technician-day they
// belong to; other components treat them as read-only.
type RouteStop struct {
	JobID              int            `json:"jobId"`
	TechnicianID       int            `json:"technicianId"`
	Date               string         `json:"date"` // YYYY-MM-DD
	SequenceIndex      int            `json:"sequenceIndex"`
	PlannedArrival     time.Time      `json:"plannedArrival"`
	PlannedDeparture   time.Time      `json:"plannedDeparture"`
	TravelFromPrevious TravelEstimate `json:"travelFromPrevious"`
}

// OverflowReason explains why a job could not be placed on a route.
type OverflowReason string

const (
	OverflowNoFeasibleSlot        OverflowReason = "no_feasible_slot"
	OverflowTechnicianUnavailable OverflowReason = "technician_unavailable"
	OverflowInvalidLocation       OverflowReason = "invalid_location"
)

// OverflowEntry is a job the optimizer could not schedule, with the reason.
// Overflow jobs stay unscheduled and are never silently dropped.
type OverflowEntry struct {
	Job    Job            `json:"job"`
	Reason OverflowReason `json:"reason"`
}
