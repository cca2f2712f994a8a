package external

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TieredCache serves upstream responses from memory first, then Redis, then the loader.
// Concurrent loads of the same key share one upstream call.
type TieredCache struct {
	memory    *lru.Cache
	redis     *CacheClient
	memoryTTL time.Duration
	redisTTL  time.Duration
	group     singleflight.Group
	logger    *logrus.Logger

	memoryHits atomic.Int64
	redisHits  atomic.Int64
	loads      atomic.Int64
}

// TieredCacheConfig configures a TieredCache
type TieredCacheConfig struct {
	MemoryEntries int
	MemoryTTL     time.Duration
	RedisTTL      time.Duration
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// CacheStats reports tier hit counters
type CacheStats struct {
	MemoryHits int64 `json:"memory_hits"`
	RedisHits  int64 `json:"redis_hits"`
	Loads      int64 `json:"loads"`
	Entries    int   `json:"entries"`
}

// NewTieredCache creates a tiered cache. redis may be nil, in which case only the memory tier
// is used.
func NewTieredCache(config TieredCacheConfig, redis *CacheClient, logger *logrus.Logger) (*TieredCache, error) {
	if config.MemoryEntries <= 0 {
		config.MemoryEntries = 1024
	}
	if config.MemoryTTL == 0 {
		config.MemoryTTL = 10 * time.Minute
	}

	memory, err := lru.New(config.MemoryEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &TieredCache{
		memory:    memory,
		redis:     redis,
		memoryTTL: config.MemoryTTL,
		redisTTL:  config.RedisTTL,
		logger:    logger,
	}, nil
}

// Fetch fills dest from the cache or from load. dest must be a pointer to the type load
// returns.
func (c *TieredCache) Fetch(ctx context.Context, key string, dest interface{}, load func(context.Context) (interface{}, error)) error {
	if raw, ok := c.fromMemory(key); ok {
		c.memoryHits.Add(1)
		return json.Unmarshal(raw, dest)
	}

	raw, err, shared := c.group.Do(key, func() (interface{}, error) {
		if c.redis != nil {
			var cached json.RawMessage
			found, err := c.redis.GetJSON(ctx, key, &cached)
			if err != nil {
				c.logger.WithError(err).WithField("key", key).Warn("Redis cache read failed")
			}
			if found {
				c.redisHits.Add(1)
				c.toMemory(key, cached)
				return []byte(cached), nil
			}
		}

		c.loads.Add(1)
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response for cache: %w", err)
		}
		c.toMemory(key, data)
		if c.redis != nil {
			if err := c.redis.SetJSON(ctx, key, json.RawMessage(data), c.redisTTL); err != nil {
				c.logger.WithError(err).WithField("key", key).Warn("Redis cache write failed")
			}
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if shared {
		c.logger.WithField("key", key).Debug("Coalesced upstream request")
	}
	return json.Unmarshal(raw.([]byte), dest)
}

func (c *TieredCache) fromMemory(key string) ([]byte, bool) {
	v, ok := c.memory.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.memory.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *TieredCache) toMemory(key string, value []byte) {
	c.memory.Add(key, memoryEntry{value: value, expiresAt: time.Now().Add(c.memoryTTL)})
}

// Invalidate empties the memory tier and drops the shared Redis entries
func (c *TieredCache) Invalidate(ctx context.Context) error {
	c.memory.Purge()
	if c.redis == nil {
		return nil
	}
	return c.redis.InvalidatePattern(ctx, RequestKeyPrefix+"*")
}

// Health pings the Redis tier. A memory-only cache is always healthy.
func (c *TieredCache) Health(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx)
}

// Stats returns the hit counters
func (c *TieredCache) Stats() CacheStats {
	return CacheStats{
		MemoryHits: c.memoryHits.Load(),
		RedisHits:  c.redisHits.Load(),
		Loads:      c.loads.Load(),
		Entries:    c.memory.Len(),
	}
}
