package distance

import (
	"context"
	"fmt"
	"sync"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/ports"
)

// Key precision for mock lookups; matches the default cache rounding.
const mockKeyPrecision = 4

type MockPair struct {
	From, To domain.Coordinates
	Meters   int
	Seconds  int
}

// MockDistanceProvider serves fixed pairs for tests. It counts calls and can
// be forced to fail, which exercises the haversine fallback path.
type MockDistanceProvider struct {
	mu    sync.Mutex
	m     map[string]ports.DistanceResult
	calls int
	fail  error
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		k := p.From.CacheKey(mockKeyPrecision) + "|" + p.To.CacheKey(mockKeyPrecision)
		m[k] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (p *MockDistanceProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// Calls returns how many provider calls were made (batched or not).
func (p *MockDistanceProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MockDistanceProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.fail != nil {
		return ports.DistanceResult{}, p.fail
	}

	k := origin.CacheKey(mockKeyPrecision) + "|" + destination.CacheKey(mockKeyPrecision)
	r, ok := p.m[k]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %q", k)
	}
	return r, nil
}

func (p *MockDistanceProvider) GetDistances(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) ([]ports.DistanceResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.fail != nil {
		return nil, p.fail
	}

	out := make([]ports.DistanceResult, 0, len(destinations))
	for _, d := range destinations {
		k := origin.CacheKey(mockKeyPrecision) + "|" + d.CacheKey(mockKeyPrecision)
		r, ok := p.m[k]
		if !ok {
			return nil, fmt.Errorf("missing pair %q", k)
		}
		out = append(out, r)
	}
	return out, nil
}
