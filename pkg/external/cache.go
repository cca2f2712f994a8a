package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CacheClient wraps a Redis client with JSON caching of upstream responses
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedEntry is the stored envelope of one cached response
type cachedEntry struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// GetJSON loads a cached value into dest. The boolean is false on a miss.
func (c *CacheClient) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}

	var cached cachedEntry
	if err := json.Unmarshal(val, &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return false, nil
	}

	if err := json.Unmarshal(cached.Data, dest); err != nil {
		c.redis.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON caches value under key. A zero ttl uses the configured default.
func (c *CacheClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	now := time.Now()
	jsonData, err := json.Marshal(cachedEntry{
		Data:      data,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return c.redis.Set(ctx, key, jsonData, ttl).Err()
}

// InvalidatePattern removes all cached data matching a pattern
func (c *CacheClient) InvalidatePattern(ctx context.Context, pattern string) error {
	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...).Err()
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

// RequestKeyPrefix starts every upstream response key
const RequestKeyPrefix = "oncoprint:"

// RequestKey creates a cache key for an upstream request. The parts are hashed so that long
// id lists stay within Redis key limits.
func RequestKey(prefix string, parts ...interface{}) string {
	data, err := json.Marshal(parts)
	if err != nil {
		data = []byte(fmt.Sprint(parts...))
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s%s:%x", RequestKeyPrefix, prefix, hash[:12])
}
