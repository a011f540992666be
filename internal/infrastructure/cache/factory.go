package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreLockFactory builds the carrier.StoreLocker selected by configuration.
type StoreLockFactory struct {
	redisConfig config.RedisConfig
	syncConfig  config.SyncConfig
	logger      *zap.Logger
	pingTimeout time.Duration
}

// StoreLockFactoryOption is a functional option for configuring the factory
type StoreLockFactoryOption func(*StoreLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreLockFactoryOption {
	return func(f *StoreLockFactory) {
		f.logger = logger
	}
}

// NewStoreLockFactory creates a new factory
func NewStoreLockFactory(redisCfg config.RedisConfig, syncCfg config.SyncConfig, opts ...StoreLockFactoryOption) *StoreLockFactory {
	f := &StoreLockFactory{
		redisConfig: redisCfg,
		syncConfig:  syncCfg,
		logger:      zap.NewNop(),
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the locker and a close function for any client it opened.
// The redis backend fails when the server is unreachable.
func (f *StoreLockFactory) Create(ctx context.Context) (carrier.StoreLocker, func() error, error) {
	switch f.syncConfig.LockBackend {
	case config.LockBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     f.redisConfig.Addr(),
			Password: f.redisConfig.Password,
			DB:       f.redisConfig.DB,
		})

		pctx, cancel := context.WithTimeout(ctx, f.pingTimeout)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		f.logger.Info("using Redis store lock", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisStoreLock(client, f.syncConfig.LockTTL, WithLockLogger(f.logger)), client.Close, nil

	case config.LockBackendMemory, "":
		f.logger.Info("using in-memory store lock")
		return NewInMemoryStoreLock(f.syncConfig.LockTTL), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", f.syncConfig.LockBackend)
	}
}
