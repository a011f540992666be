package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
)

type heldLock struct {
	token     uint64
	expiresAt time.Time
}

// InMemoryStoreLock implements carrier.StoreLocker inside one process.
// It does not coordinate multiple instances.
type InMemoryStoreLock struct {
	mu    sync.Mutex
	held  map[string]heldLock
	next  uint64
	ttl   time.Duration
	clock func() time.Time
}

// NewInMemoryStoreLock creates a lock table. A zero ttl never expires locks.
func NewInMemoryStoreLock(ttl time.Duration) *InMemoryStoreLock {
	return &InMemoryStoreLock{
		held:  make(map[string]heldLock),
		ttl:   ttl,
		clock: time.Now,
	}
}

// TryLock takes the store's lock without waiting.
func (l *InMemoryStoreLock) TryLock(_ context.Context, storeKey string) (func(), error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[storeKey]; ok && (h.expiresAt.IsZero() || now.Before(h.expiresAt)) {
		return nil, fmt.Errorf("%w: %s", carrier.ErrSyncInProgress, storeKey)
	}

	l.next++
	h := heldLock{token: l.next}
	if l.ttl > 0 {
		h.expiresAt = now.Add(l.ttl)
	}
	l.held[storeKey] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[storeKey]; ok && cur.token == h.token {
				delete(l.held, storeKey)
			}
		})
	}, nil
}

// Held reports whether storeKey is currently locked.
func (l *InMemoryStoreLock) Held(storeKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.held[storeKey]
	return ok && (h.expiresAt.IsZero() || l.clock().Before(h.expiresAt))
}

var _ carrier.StoreLocker = (*InMemoryStoreLock)(nil)
