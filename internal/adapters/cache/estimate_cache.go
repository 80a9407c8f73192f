package cache

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/domain"
	"technician-dispatch-service/internal/platform/obs"
	"technician-dispatch-service/internal/ports"
)

// SharedCache is an optional warm tier consulted between a memory miss and a
// provider call (e.g., Redis shared across processes). Implementations must
// degrade silently: a miss and a backend failure look the same to the caller.
type SharedCache interface {
	Get(ctx context.Context, originKey, destinationKey string) (domain.TravelEstimate, bool)
	Put(ctx context.Context, est domain.TravelEstimate)
}

type Config struct {
	// Coordinate rounding in decimal degrees for cache keys.
	Precision int
	// LiveTTL bounds the freshness of traffic-aware provider responses.
	LiveTTL time.Duration
	// EstimatedTTL applies to haversine fallbacks. It is deliberately long:
	// re-fetching a fallback has no benefit until the provider recovers.
	EstimatedTTL time.Duration
	// FetchTimeout caps each external call.
	FetchTimeout time.Duration
	// MaxConcurrentFetches bounds the outbound request pool.
	MaxConcurrentFetches int
	// FallbackSpeedKmh converts haversine distance into a duration.
	FallbackSpeedKmh float64
}

func (c *Config) setDefaults() {
	if c.Precision <= 0 {
		c.Precision = 4
	}
	if c.LiveTTL <= 0 {
		c.LiveTTL = 10 * time.Minute
	}
	if c.EstimatedTTL <= 0 {
		c.EstimatedTTL = 6 * time.Hour
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = 5
	}
	if c.FallbackSpeedKmh <= 0 {
		c.FallbackSpeedKmh = 40
	}
}

// EstimateCache memoizes travel estimates by rounded coordinate pair.
//
// Entries are immutable once written and expire lazily: an expired entry is
// replaced on the next lookup, never refreshed proactively. External calls
// run behind a bounded semaphore so a burst of optimizer runs cannot open
// unbounded outbound connections. Provider failures fall back to a haversine
// estimate marked domain.TravelSourceEstimated; lookups never fail.
//
// Safe for concurrent use. Construct one per process and inject it.
type EstimateCache struct {
	cfg      Config
	provider ports.DistanceProvider
	shared   SharedCache

	mu      sync.RWMutex
	entries map[string]domain.TravelEstimate

	sem     chan struct{}
	now     func() time.Time
	log     zerolog.Logger
	metrics *obs.Metrics
}

func NewEstimateCache(cfg Config, provider ports.DistanceProvider, shared SharedCache, log zerolog.Logger, metrics *obs.Metrics) *EstimateCache {
	cfg.setDefaults()

	return &EstimateCache{
		cfg:      cfg,
		provider: provider,
		shared:   shared,
		entries:  make(map[string]domain.TravelEstimate),
		sem:      make(chan struct{}, cfg.MaxConcurrentFetches),
		now:      time.Now,
		log:      log,
		metrics:  metrics,
	}
}

// Keys returns the rounded cache keys for an origin/destination pair.
func (c *EstimateCache) Keys(origin, destination domain.Coordinates) (originKey, destinationKey string) {
	return origin.CacheKey(c.cfg.Precision), destination.CacheKey(c.cfg.Precision)
}

func (c *EstimateCache) fresh(e domain.TravelEstimate) bool {
	ttl := c.cfg.LiveTTL
	if e.Source == domain.TravelSourceEstimated {
		ttl = c.cfg.EstimatedTTL
	}
	return c.now().Sub(e.FetchedAt) < ttl
}

func (c *EstimateCache) lookup(pairKey string) (domain.TravelEstimate, bool) {
	c.mu.RLock()
	e, ok := c.entries[pairKey]
	c.mu.RUnlock()
	if !ok || !c.fresh(e) {
		return domain.TravelEstimate{}, false
	}
	return e, true
}

func (c *EstimateCache) store(pairKey string, e domain.TravelEstimate) {
	c.mu.Lock()
	c.entries[pairKey] = e
	c.mu.Unlock()
}

// asHit marks an entry served from cache so callers can tell a warm read
// from a fresh provider response. Fallback entries keep their source: the
// lower confidence matters more than the tier they came from.
func asHit(e domain.TravelEstimate) domain.TravelEstimate {
	if e.Source == domain.TravelSourceLive {
		e.Source = domain.TravelSourceCached
	}
	return e
}

// Estimate returns a travel estimate for one leg. It never fails: provider
// errors degrade to a haversine fallback.
func (c *EstimateCache) Estimate(ctx context.Context, origin, destination domain.Coordinates) domain.TravelEstimate {
	oKey, dKey := c.Keys(origin, destination)
	pair := oKey + "|" + dKey

	if e, ok := c.lookup(pair); ok {
		c.metrics.CacheHit("memory")
		return asHit(e)
	}

	if c.shared != nil {
		if e, ok := c.shared.Get(ctx, oKey, dKey); ok && c.fresh(e) {
			c.metrics.CacheHit("shared")
			c.store(pair, e)
			return asHit(e)
		}
	}

	c.metrics.CacheMiss()
	e := c.fetch(ctx, origin, destination, oKey, dKey)
	c.store(pair, e)
	if c.shared != nil {
		c.shared.Put(ctx, e)
	}
	return e
}

// EstimateMany estimates one origin against many destinations, batching all
// cache misses into a single matrix request when the provider supports it.
// The result is aligned index-for-index with destinations.
func (c *EstimateCache) EstimateMany(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) []domain.TravelEstimate {
	out := make([]domain.TravelEstimate, len(destinations))

	missIdx := make([]int, 0, len(destinations))
	for i, d := range destinations {
		oKey, dKey := c.Keys(origin, d)
		pair := oKey + "|" + dKey

		if e, ok := c.lookup(pair); ok {
			c.metrics.CacheHit("memory")
			out[i] = asHit(e)
			continue
		}
		if c.shared != nil {
			if e, ok := c.shared.Get(ctx, oKey, dKey); ok && c.fresh(e) {
				c.metrics.CacheHit("shared")
				c.store(pair, e)
				out[i] = asHit(e)
				continue
			}
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) == 0 {
		return out
	}

	mp, hasMatrix := c.provider.(ports.DistanceMatrixProvider)
	if !hasMatrix {
		for _, i := range missIdx {
			out[i] = c.Estimate(ctx, origin, destinations[i])
		}
		return out
	}

	missDests := make([]domain.Coordinates, 0, len(missIdx))
	for _, i := range missIdx {
		missDests = append(missDests, destinations[i])
	}

	results, err := c.fetchMatrix(ctx, mp, origin, missDests)
	for n, i := range missIdx {
		oKey, dKey := c.Keys(origin, destinations[i])

		var e domain.TravelEstimate
		if err != nil {
			e = c.fallback(origin, destinations[i], oKey, dKey)
		} else {
			e = domain.TravelEstimate{
				OriginKey:       oKey,
				DestinationKey:  dKey,
				DurationSeconds: results[n].DurationSeconds,
				DistanceMeters:  results[n].DistanceMeters,
				Source:          domain.TravelSourceLive,
				FetchedAt:       c.now(),
			}
		}

		c.store(oKey+"|"+dKey, e)
		if c.shared != nil {
			c.shared.Put(ctx, e)
		}
		out[i] = e
	}

	return out
}

func (c *EstimateCache) fetch(ctx context.Context, origin, destination domain.Coordinates, oKey, dKey string) domain.TravelEstimate {
	if err := c.acquire(ctx); err != nil {
		return c.fallback(origin, destination, oKey, dKey)
	}
	defer c.release()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	r, err := c.provider.GetDistance(callCtx, origin, destination)
	if err != nil {
		c.log.Warn().Err(err).Str("origin", oKey).Str("destination", dKey).
			Msg("distance provider failed; serving haversine estimate")
		return c.fallback(origin, destination, oKey, dKey)
	}

	return domain.TravelEstimate{
		OriginKey:       oKey,
		DestinationKey:  dKey,
		DurationSeconds: r.DurationSeconds,
		DistanceMeters:  r.DistanceMeters,
		Source:          domain.TravelSourceLive,
		FetchedAt:       c.now(),
	}
}

func (c *EstimateCache) fetchMatrix(ctx context.Context, mp ports.DistanceMatrixProvider, origin domain.Coordinates, destinations []domain.Coordinates) ([]ports.DistanceResult, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	results, err := mp.GetDistances(callCtx, origin, destinations)
	if err != nil {
		c.log.Warn().Err(err).Int("destinations", len(destinations)).
			Msg("matrix provider failed; serving haversine estimates")
		return nil, err
	}
	if len(results) != len(destinations) {
		c.log.Warn().Int("got", len(results)).Int("want", len(destinations)).
			Msg("matrix provider returned short row; serving haversine estimates")
		return nil, errShortMatrixRow
	}
	return results, nil
}

var errShortMatrixRow = errors.New("matrix row shorter than requested destinations")

// acquire takes a slot from the bounded fetch pool, queueing when saturated.
func (c *EstimateCache) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *EstimateCache) release() { <-c.sem }

// fallback builds a haversine great-circle estimate converted to duration by
// the configured average speed. This path keeps the optimizer moving when
// the provider is down; the source marker tells callers it is low
// confidence.
func (c *EstimateCache) fallback(origin, destination domain.Coordinates, oKey, dKey string) domain.TravelEstimate {
	c.metrics.CacheFallback()

	meters := domain.Haversine(origin, destination)
	metersPerSecond := c.cfg.FallbackSpeedKmh / 3.6

	return domain.TravelEstimate{
		OriginKey:       oKey,
		DestinationKey:  dKey,
		DurationSeconds: int(math.Round(meters / metersPerSecond)),
		DistanceMeters:  int(math.Round(meters)),
		Source:          domain.TravelSourceEstimated,
		FetchedAt:       c.now(),
	}
}
