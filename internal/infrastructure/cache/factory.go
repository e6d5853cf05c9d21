package cache

import (
	"context"
	"time"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores bundles the cache-backed stores the application needs
type Stores struct {
	Metrics     MetricsCache
	Idempotency shared.IdempotencyStore
	client      *redis.Client
}

// NewStores builds Redis-backed stores when Redis is enabled and reachable,
// otherwise in-memory ones. A configured but unreachable Redis is logged, not fatal.
func NewStores(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Stores {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Enabled {
		client, err := NewRedisClient(ctx, cfg)
		if err == nil {
			logger.Info("Using Redis cache", zap.String("addr", cfg.Addr()))
			return NewRedisStores(client)
		}
		logger.Warn("Redis unavailable, falling back to in-memory cache", zap.Error(err))
	}

	return &Stores{
		Metrics:     NewInMemoryMetricsCache(),
		Idempotency: NewInMemoryIdempotencyStore(5 * time.Minute),
	}
}

// NewRedisStores builds stores on an existing client; Close closes the client
func NewRedisStores(client *redis.Client) *Stores {
	return &Stores{
		Metrics:     NewRedisMetricsCache(client, ""),
		Idempotency: NewRedisIdempotencyStore(client, ""),
		client:      client,
	}
}

// UsesRedis reports whether the stores are Redis-backed
func (s *Stores) UsesRedis() bool {
	return s.client != nil
}

// Ping checks the Redis connection; in-memory stores are always reachable
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the idempotency store and the Redis client
func (s *Stores) Close() error {
	if err := s.Idempotency.Close(); err != nil {
		return err
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
