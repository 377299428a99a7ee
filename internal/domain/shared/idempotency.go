package shared

import (
	"context"
	"time"
)

// IdempotencyStore records handled event ids for a limited time
type IdempotencyStore interface {
	// MarkProcessed returns true when eventID was newly recorded and false
	// when it was already present
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	Close() error
}

// IdempotencyConfig controls duplicate suppression for event handlers
type IdempotencyConfig struct {
	Enabled bool
	// TTL is how long a handled id blocks redelivery
	TTL time.Duration
}

// DefaultIdempotencyConfig suppresses duplicates for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{Enabled: true, TTL: 24 * time.Hour}
}
