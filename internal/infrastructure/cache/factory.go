package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// NewIdempotencyStore builds the store selected by ledger.idempotency_backend.
// When Redis is selected but unreachable the error is returned unless
// allowFallback is set, in which case the in-memory store is used.
func NewIdempotencyStore(ctx context.Context, ledgerCfg config.LedgerConfig, redisCfg config.RedisConfig, allowFallback bool, log *zap.Logger) (shared.IdempotencyStore, error) {
	if ledgerCfg.IdempotencyBackend != "redis" {
		log.Info("Using in-memory idempotency store")
		return NewMemoryIdempotencyStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !allowFallback {
			return nil, fmt.Errorf("connect to redis at %s: %w", redisCfg.Addr(), err)
		}
		log.Warn("Redis unavailable, falling back to in-memory idempotency store",
			zap.String("addr", redisCfg.Addr()), zap.Error(err))
		return NewMemoryIdempotencyStore(), nil
	}

	log.Info("Using Redis idempotency store", zap.String("addr", redisCfg.Addr()))
	return NewRedisIdempotencyStore(client, ""), nil
}
