package ports

import (
	"context"

	"technician-dispatch-service/internal/domain"
)

// Optional extension of DistanceProvider that supports batched lookups.
type DistanceMatrixProvider interface {
	DistanceProvider
	// Return distances from one origin to many destinations. The result
	// slice is aligned index-for-index with destinations.
	GetDistances(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]DistanceResult, error)
}
