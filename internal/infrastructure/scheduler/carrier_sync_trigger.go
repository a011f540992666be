package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	carrierapp "github.com/fulfillment/backend/internal/application/carrier"
	"go.uber.org/zap"
)

// StoreSyncer runs a sync of every active store
type StoreSyncer interface {
	SyncAllStores(ctx context.Context, concurrency int) (*carrierapp.SyncAllResult, error)
}

// CarrierSyncTriggerConfig holds configuration for the periodic carrier sync
type CarrierSyncTriggerConfig struct {
	// Interval between two runs
	Interval time.Duration
	// Timeout bounds a single run; zero means no bound
	Timeout time.Duration
	// Concurrency is passed to SyncAllStores; <= 0 syncs every store at once
	Concurrency int
	// RunOnStart triggers a run immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultCarrierSyncTriggerConfig returns default trigger configuration
func DefaultCarrierSyncTriggerConfig() CarrierSyncTriggerConfig {
	return CarrierSyncTriggerConfig{
		Interval:    time.Hour,
		Timeout:     30 * time.Minute,
		Concurrency: 0,
	}
}

// Validate validates the configuration
func (c *CarrierSyncTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.Timeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// CarrierSyncTrigger runs SyncAllStores on a fixed interval
type CarrierSyncTrigger struct {
	config CarrierSyncTriggerConfig
	syncer StoreSyncer
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	busy      atomic.Bool

	lastMu     sync.RWMutex
	lastRunAt  time.Time
	lastResult *carrierapp.SyncAllResult
	lastErr    error
}

// NewCarrierSyncTrigger creates a new trigger
func NewCarrierSyncTrigger(config CarrierSyncTriggerConfig, syncer StoreSyncer, logger *zap.Logger) (*CarrierSyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CarrierSyncTrigger{
		config: config,
		syncer: syncer,
		logger: logger,
	}, nil
}

// Start starts the trigger loop
func (t *CarrierSyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Carrier sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Duration("timeout", t.config.Timeout),
		zap.Int("concurrency", t.config.Concurrency),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight run to return
func (t *CarrierSyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Carrier sync trigger stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Carrier sync trigger stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is started
func (t *CarrierSyncTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

func (t *CarrierSyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		_, _ = t.TriggerNow(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = t.TriggerNow(ctx)
		}
	}
}

// TriggerNow runs one sync of all stores. It fails with ErrSyncAlreadyRunning
// when a run is still in progress.
func (t *CarrierSyncTrigger) TriggerNow(ctx context.Context) (*carrierapp.SyncAllResult, error) {
	if !t.busy.CompareAndSwap(false, true) {
		t.logger.Warn("Skipping carrier sync, previous run still in progress")
		return nil, ErrSyncAlreadyRunning
	}
	defer t.busy.Store(false)

	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := t.syncer.SyncAllStores(ctx, t.config.Concurrency)

	t.lastMu.Lock()
	t.lastRunAt = start
	t.lastResult = result
	t.lastErr = err
	t.lastMu.Unlock()

	if err != nil {
		t.logger.Error("Scheduled carrier sync failed", zap.Error(err))
		return nil, err
	}
	t.logger.Info("Scheduled carrier sync finished",
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// LastRun returns the start time and outcome of the most recent run
func (t *CarrierSyncTrigger) LastRun() (time.Time, *carrierapp.SyncAllResult, error) {
	t.lastMu.RLock()
	defer t.lastMu.RUnlock()
	return t.lastRunAt, t.lastResult, t.lastErr
}
