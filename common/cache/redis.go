package cache

import (
	"context"
	"errors"
	"time"

	redisWrapper "github.com/versio-data/versio/common/redis"
)

// RedisCache backs the Cache interface with Redis for multi-node deployments
type RedisCache struct {
	client *redisWrapper.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache. All keys are namespaced
// under the given prefix so flushes stay scoped to this service.
func NewRedisCache(client *redisWrapper.Client, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key)
	if errors.Is(err, redisWrapper.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}

// Set stores a value in cache with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.SetWithExpiry(ctx, c.prefix+key, string(value), ttl)
}

// Delete removes a value from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, c.prefix+key)
}

// Close is a no-op; the underlying Redis client is owned by the container
func (c *RedisCache) Close() error {
	return nil
}
