package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys so that retried writes are applied once
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed for ttl.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release forgets a key so that a failed write can be retried
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// DefaultIdempotencyTTL is how long ingestion keys are remembered
const DefaultIdempotencyTTL = 24 * time.Hour
