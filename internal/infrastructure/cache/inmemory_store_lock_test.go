package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreLock_TryLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second lock on the same store fails", func(t *testing.T) {
		l := NewInMemoryStoreLock(time.Minute)

		unlock, err := l.TryLock(ctx, "STRI")
		require.NoError(t, err)

		_, err = l.TryLock(ctx, "STRI")
		assert.ErrorIs(t, err, carrier.ErrSyncInProgress)

		unlock()
		assert.False(t, l.Held("STRI"))

		unlock2, err := l.TryLock(ctx, "STRI")
		require.NoError(t, err)
		unlock2()
	})

	t.Run("different stores do not contend", func(t *testing.T) {
		l := NewInMemoryStoreLock(time.Minute)

		u1, err := l.TryLock(ctx, "STRI")
		require.NoError(t, err)
		u2, err := l.TryLock(ctx, "ACME")
		require.NoError(t, err)
		u1()
		u2()
	})

	t.Run("empty store key is rejected", func(t *testing.T) {
		_, err := NewInMemoryStoreLock(0).TryLock(ctx, "")
		assert.ErrorIs(t, err, carrier.ErrStoreKeyRequired)
	})

	t.Run("expired lock can be taken over and stale unlock is ignored", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		l := NewInMemoryStoreLock(time.Minute)
		l.clock = func() time.Time { return now }

		stale, err := l.TryLock(ctx, "STRI")
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		fresh, err := l.TryLock(ctx, "STRI")
		require.NoError(t, err)

		stale()
		assert.True(t, l.Held("STRI"))

		fresh()
		assert.False(t, l.Held("STRI"))
	})

	t.Run("only one concurrent caller wins", func(t *testing.T) {
		l := NewInMemoryStoreLock(time.Minute)
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.TryLock(ctx, "STRI"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
