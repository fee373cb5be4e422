package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/ocr-worker/internal/ocr"
)

// cacheKeyPrefix namespaces result cache entries
const cacheKeyPrefix = "ocr:result:"

// ResultCache keeps extraction results keyed by input fingerprint
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache creates a cache on an existing client. A zero ttl keeps entries forever.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

// NewResultCacheFromURL parses redisURL and creates its own client
func NewResultCacheFromURL(redisURL string, ttl time.Duration) (*ResultCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewResultCache(redis.NewClient(opts), ttl), nil
}

// Get returns the cached result for fingerprint; found is false on a miss
func (c *ResultCache) Get(ctx context.Context, fingerprint string) (result *ocr.Result, found bool, err error) {
	data, err := c.client.Get(ctx, cacheKey(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var res ocr.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	return &res, true, nil
}

// Set stores result under fingerprint
func (c *ResultCache) Set(ctx context.Context, fingerprint string, result *ocr.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

// Close closes the underlying client
func (c *ResultCache) Close() error {
	return c.client.Close()
}

func cacheKey(fingerprint string) string {
	return cacheKeyPrefix + fingerprint
}
