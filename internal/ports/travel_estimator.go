package ports

import (
	"context"

	"technician-dispatch-service/internal/domain"
)

// TravelEstimator hands out travel estimates between coordinates.
//
// Implementations never fail the caller: when the underlying provider is
// unavailable they return a lower-confidence estimate with Source set to
// domain.TravelSourceEstimated. Callers must tolerate degraded estimates.
type TravelEstimator interface {
	// Estimate one origin->destination leg.
	Estimate(ctx context.Context, origin, destination domain.Coordinates) domain.TravelEstimate
	// EstimateMany estimates one origin against many destinations in a
	// single planning pass. The result is aligned index-for-index with
	// destinations.
	EstimateMany(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) []domain.TravelEstimate
}
