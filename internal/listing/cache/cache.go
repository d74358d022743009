// internal/listing/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "premium-listings/internal/common/errors"
	"premium-listings/internal/common/logger"
	"premium-listings/internal/common/metrics"
)

// Options control one lookup's tier behavior.
type Options struct {
	// SkipMemo bypasses the per-request tier. Set when exclude_displayed is
	// active: exclusions change between placements in one request, so a
	// memoized result would replay already-shown cards.
	SkipMemo bool
	// Bypass forces a miss on both tiers. Writes still happen.
	Bypass bool
}

// Cache is the two-tier result cache: a per-request memo map in front of a
// durable Redis tier. Durable faults are logged and metered, never returned;
// a broken cache degrades to a miss.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger

	mu   sync.Mutex
	memo map[string][]byte
}

func New(rdb *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "result-cache"}),
		memo:   make(map[string][]byte),
	}
}

// Get loads a cached value into dest. The memo tier is checked first, then
// Redis; a Redis hit is promoted into the memo so later placements in the
// same request skip the round trip.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}, opts Options) bool {
	if opts.Bypass {
		return false
	}

	if !opts.SkipMemo {
		c.mu.Lock()
		raw, ok := c.memo[key]
		c.mu.Unlock()
		if ok {
			metrics.CacheLookups.WithLabelValues("memo", "hit").Inc()
			return json.Unmarshal(raw, dest) == nil
		}
		metrics.CacheLookups.WithLabelValues("memo", "miss").Inc()
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		metrics.CacheLookups.WithLabelValues("redis", "miss").Inc()
		if !errors.Is(err, redis.Nil) {
			metrics.CacheFaults.WithLabelValues("get").Inc()
			c.logger.Warn("durable cache read failed", map[string]interface{}{
				"error": stderrors.NewCacheUnavailableError("get", err).Error(),
			})
		}
		return false
	}
	metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()

	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("durable cache entry undecodable, treating as miss", map[string]interface{}{
			"key": key,
		})
		return false
	}

	if !opts.SkipMemo {
		c.mu.Lock()
		c.memo[key] = raw
		c.mu.Unlock()
	}
	return true
}

// Put stores the value in both tiers. The durable write is best effort.
func (c *Cache) Put(ctx context.Context, key string, value interface{}, opts Options) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache value not serializable", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
		return
	}

	if !opts.SkipMemo {
		c.mu.Lock()
		c.memo[key] = raw
		c.mu.Unlock()
	}

	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		metrics.CacheFaults.WithLabelValues("set").Inc()
		c.logger.Warn("durable cache write failed", map[string]interface{}{
			"error": stderrors.NewCacheUnavailableError("set", err).Error(),
		})
	}
}
