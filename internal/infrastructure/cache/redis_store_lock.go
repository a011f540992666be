package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock taken over by another process is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// lockClient is the subset of redis.Cmdable used by RedisStoreLock.
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisStoreLock implements carrier.StoreLocker with SET NX PX.
// It is safe across process instances sharing one Redis.
type RedisStoreLock struct {
	client    lockClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// RedisStoreLockOption is a functional option for RedisStoreLock
type RedisStoreLockOption func(*RedisStoreLock)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) RedisStoreLockOption {
	return func(l *RedisStoreLock) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// WithLockLogger sets the logger used for release failures.
func WithLockLogger(logger *zap.Logger) RedisStoreLockOption {
	return func(l *RedisStoreLock) {
		l.logger = logger
	}
}

// NewRedisStoreLock creates a lock on an existing client. The caller keeps ownership of the client.
// ttl bounds how long a crashed holder can block the store.
func NewRedisStoreLock(client lockClient, ttl time.Duration, opts ...RedisStoreLockOption) *RedisStoreLock {
	l := &RedisStoreLock{
		client:    client,
		keyPrefix: defaultLockPrefix,
		ttl:       ttl,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock takes the store's lock without waiting.
func (l *RedisStoreLock) TryLock(ctx context.Context, storeKey string) (func(), error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}

	key := lockKey(l.keyPrefix, storeKey)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for store %s: %w", storeKey, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", carrier.ErrSyncInProgress, storeKey)
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := l.client.Eval(rctx, releaseScript, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release store lock",
				zap.String("store_key", storeKey),
				zap.Error(err),
			)
		}
	}, nil
}

var _ carrier.StoreLocker = (*RedisStoreLock)(nil)
