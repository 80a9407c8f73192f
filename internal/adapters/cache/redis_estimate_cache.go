package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/domain"
)

// RedisEstimateCache is a shared warm tier for travel estimates, so multiple
// dispatch processes reuse each other's provider responses. Entries are JSON
// with a TTL matched to the estimate source.
//
// All failures degrade to a miss: the caller falls through to the provider
// (and from there to the haversine fallback), so a Redis outage never blocks
// a recompute.
type RedisEstimateCache struct {
	rdb          *redis.Client
	liveTTL      time.Duration
	estimatedTTL time.Duration
	log          zerolog.Logger
}

func NewRedisEstimateCache(rdb *redis.Client, liveTTL, estimatedTTL time.Duration, log zerolog.Logger) *RedisEstimateCache {
	if liveTTL <= 0 {
		liveTTL = 10 * time.Minute
	}
	if estimatedTTL <= 0 {
		estimatedTTL = 6 * time.Hour
	}
	return &RedisEstimateCache{
		rdb:          rdb,
		liveTTL:      liveTTL,
		estimatedTTL: estimatedTTL,
		log:          log,
	}
}

func redisKey(originKey, destinationKey string) string {
	return "travel:" + originKey + "|" + destinationKey
}

func (r *RedisEstimateCache) Get(ctx context.Context, originKey, destinationKey string) (domain.TravelEstimate, bool) {
	raw, err := r.rdb.Get(ctx, redisKey(originKey, destinationKey)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Msg("redis estimate cache read failed")
		}
		return domain.TravelEstimate{}, false
	}

	var e domain.TravelEstimate
	if err := json.Unmarshal(raw, &e); err != nil {
		r.log.Warn().Err(err).Msg("redis estimate cache entry is corrupt")
		return domain.TravelEstimate{}, false
	}
	return e, true
}

func (r *RedisEstimateCache) Put(ctx context.Context, e domain.TravelEstimate) {
	raw, err := json.Marshal(e)
	if err != nil {
		r.log.Warn().Err(err).Msg("redis estimate cache encode failed")
		return
	}

	ttl := r.liveTTL
	if e.Source == domain.TravelSourceEstimated {
		ttl = r.estimatedTTL
	}

	if err := r.rdb.Set(ctx, redisKey(e.OriginKey, e.DestinationKey), raw, ttl).Err(); err != nil {
		r.log.Warn().Err(err).Msg("redis estimate cache write failed")
	}
}
