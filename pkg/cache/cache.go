package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache is the read-side TTL cache over entity snapshots. Entries are
// written on read-miss and invalidated, never refreshed, on writes to the
// underlying entity: a cached snapshot must not be trusted to reflect a
// write until the write's deferred invalidation has run.
type Cache struct {
	rdb        *common.RedisClient
	defaultTTL time.Duration
}

func New(rdb *common.RedisClient, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = types.DefaultCacheTTL
	}
	return &Cache{
		rdb:        rdb,
		defaultTTL: defaultTTL,
	}
}

// Invalidate unconditionally deletes the cached snapshot. Deleting an
// absent key is not an error.
func (c *Cache) Invalidate(ctx context.Context, objectType, id string) error {
	key := common.Keys.CacheObject(objectType, id)
	return c.rdb.Del(ctx, key).Err()
}

// Fetch is the read-through path: on hit the cached snapshot is decoded and
// returned; on miss (or when skipCache is set) compute runs and its result
// is stored with the given TTL. A zero ttl falls back to the cache default.
func Fetch[T any](ctx context.Context, c *Cache, objectType, id string, ttl time.Duration, skipCache bool, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	key := common.Keys.CacheObject(objectType, id)

	if !skipCache {
		cached, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var result T
			if err := json.Unmarshal(cached, &result); err == nil {
				return result, nil
			}
			// Corrupt entry: fall through to recompute and overwrite
			log.Warn().Str("cache_key", key).Msg("failed to decode cached snapshot")
		} else if !errors.Is(err, redis.Nil) {
			return zero, err
		}
	}

	result, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(result)
	if err != nil {
		return zero, err
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return zero, err
	}

	return result, nil
}
