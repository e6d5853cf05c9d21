package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultMetricsKeyPrefix namespaces cached portfolio metrics in Redis
const DefaultMetricsKeyPrefix = "bizdash:portfolio:"

// MetricsCache is a cache-aside store for computed, JSON-serialisable results
type MetricsCache interface {
	// Get decodes the cached value into dest; false means a miss
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Invalidate removes every key with the given prefix
	Invalidate(ctx context.Context, prefix string) error
}

// RedisMetricsCache stores JSON values in Redis
type RedisMetricsCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisMetricsCache creates a cache on client
func NewRedisMetricsCache(client redis.UniversalClient, keyPrefix string) *RedisMetricsCache {
	if keyPrefix == "" {
		keyPrefix = DefaultMetricsKeyPrefix
	}
	return &RedisMetricsCache{client: client, keyPrefix: keyPrefix}
}

// Get implements MetricsCache
func (c *RedisMetricsCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cached metrics: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached metrics: %w", err)
	}
	return true, nil
}

// Set implements MetricsCache
func (c *RedisMetricsCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache metrics: %w", err)
	}
	return nil
}

// Invalidate implements MetricsCache using SCAN so large keyspaces are not blocked
func (c *RedisMetricsCache) Invalidate(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached metrics: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached metrics: %w", err)
	}
	return nil
}

// InMemoryMetricsCache is the single-instance MetricsCache
type InMemoryMetricsCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewInMemoryMetricsCache creates an empty cache
func NewInMemoryMetricsCache() *InMemoryMetricsCache {
	return &InMemoryMetricsCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements MetricsCache
func (c *InMemoryMetricsCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached metrics: %w", err)
	}
	return true, nil
}

// Set implements MetricsCache
func (c *InMemoryMetricsCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Invalidate implements MetricsCache
func (c *InMemoryMetricsCache) Invalidate(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

var (
	_ MetricsCache = (*RedisMetricsCache)(nil)
	_ MetricsCache = (*InMemoryMetricsCache)(nil)
)
