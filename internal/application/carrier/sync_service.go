package carrierapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/fulfillment/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const syncServiceName = "CarrierSyncService"

// Empty upstream policies
const (
	EmptyUpstreamDrop = "drop"
	EmptyUpstreamSkip = "skip"
)

// SyncServiceConfig holds the tunables of the sync engine
type SyncServiceConfig struct {
	// EmptyUpstreamPolicy decides what an empty upstream listing does:
	// "drop" (default) removes every carrier, "skip" leaves the store untouched.
	EmptyUpstreamPolicy string
}

// SyncOption configures a SyncService
type SyncOption func(*SyncService)

// WithSyncMetrics sets the recorder for sync outcomes
func WithSyncMetrics(m MetricsRecorder) SyncOption {
	return func(s *SyncService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// SyncService reconciles stores with the upstream carrier API and maintains
// the per-store priority order.
type SyncService struct {
	repo    carrier.Repository
	stores  carrier.StoreRegistry
	fetcher carrier.Fetcher
	locker  carrier.StoreLocker
	logger  *zap.Logger
	metrics MetricsRecorder
	config  SyncServiceConfig
}

// NewSyncService creates a new SyncService
func NewSyncService(
	repo carrier.Repository,
	stores carrier.StoreRegistry,
	fetcher carrier.Fetcher,
	locker carrier.StoreLocker,
	logger *zap.Logger,
	cfg SyncServiceConfig,
	opts ...SyncOption,
) (*SyncService, error) {
	switch cfg.EmptyUpstreamPolicy {
	case "":
		cfg.EmptyUpstreamPolicy = EmptyUpstreamDrop
	case EmptyUpstreamDrop, EmptyUpstreamSkip:
	default:
		return nil, fmt.Errorf("%w: %q", carrier.ErrInvalidEmptyPolicy, cfg.EmptyUpstreamPolicy)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SyncService{
		repo:    repo,
		stores:  stores,
		fetcher: fetcher,
		locker:  locker,
		logger:  logger,
		metrics: noopMetrics{},
		config:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SyncStore fetches a store's carriers from upstream, reconciles them with
// the persisted ones and replaces the store's partition.
func (s *SyncService) SyncStore(ctx context.Context, storeKey string) (*StoreSyncResult, error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}
	ctx = logger.WithStoreKey(ctx, storeKey)
	ctx, span := telemetry.StartServiceSpan(ctx, syncServiceName, "SyncStore",
		telemetry.WithAttribute(telemetry.SpanAttrStoreKey, storeKey))
	defer span.End()

	start := time.Now()
	log := logger.WithLogger(ctx, s.logger)
	log.Info("Carrier sync started")

	result, err := s.syncStore(ctx, storeKey)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordStoreSync(ctx, storeKey, telemetry.ResultFailure, 0, time.Since(start))
		log.Error("Carrier sync failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	outcome := telemetry.ResultSuccess
	if result.SkippedEmpty {
		outcome = telemetry.ResultSkipped
	}
	s.metrics.RecordStoreSync(ctx, storeKey, outcome, result.CarrierCount, time.Since(start))
	telemetry.SetAttributes(span, telemetry.SpanAttrCarrierCount, result.CarrierCount)
	telemetry.SetOK(span)

	log.Info("Carrier sync completed",
		zap.Int("carrier_count", result.CarrierCount),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("dropped", result.Dropped),
		zap.Strings("skipped_rows", result.SkippedRows),
		zap.Bool("skipped_empty", result.SkippedEmpty),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *SyncService) syncStore(ctx context.Context, storeKey string) (*StoreSyncResult, error) {
	store, err := s.stores.GetStore(ctx, storeKey)
	if err != nil {
		return nil, err
	}
	if !store.IsActive() {
		return nil, fmt.Errorf("%w: %s", carrier.ErrStoreInactive, storeKey)
	}

	unlock, err := s.locker.TryLock(ctx, storeKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	candidates, err := s.fetcher.FetchCarriers(ctx, *store)
	if err != nil {
		return nil, fmt.Errorf("fetch carriers for store %s: %w", storeKey, err)
	}
	if len(candidates) == 0 && s.config.EmptyUpstreamPolicy == EmptyUpstreamSkip {
		logger.WithLogger(ctx, s.logger).Warn("Upstream returned no carriers, leaving store untouched")
		return &StoreSyncResult{StoreKey: storeKey, SkippedEmpty: true}, nil
	}

	existing, err := s.repo.FindByStore(ctx, storeKey)
	if err != nil {
		return nil, fmt.Errorf("load carriers for store %s: %w", storeKey, err)
	}

	rec := carrier.Reconcile(storeKey, existing, candidates)
	replaced, err := s.repo.ReplaceStore(ctx, storeKey, rec.Carriers)
	if err != nil {
		return nil, fmt.Errorf("write carriers for store %s: %w", storeKey, err)
	}
	if len(replaced.Skipped) > 0 {
		logger.WithLogger(ctx, s.logger).Warn("Carrier rows collided with a concurrent write",
			zap.Strings("carrier_ids", replaced.Skipped))
	}

	return &StoreSyncResult{
		StoreKey:     storeKey,
		CarrierCount: replaced.Written,
		Inserted:     rec.Inserted,
		Updated:      rec.Updated,
		Dropped:      len(rec.Dropped),
		SkippedRows:  replaced.Skipped,
	}, nil
}

type storeOutcome struct {
	result *StoreSyncResult
	err    error
}

// SyncAllStores syncs every active store. With concurrency <= 0 all stores
// run at once; otherwise stores run in consecutive batches of that size.
// A failing store never aborts the others.
func (s *SyncService) SyncAllStores(ctx context.Context, concurrency int) (*SyncAllResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, syncServiceName, "SyncAllStores",
		telemetry.WithAttribute(telemetry.SpanAttrConcurrency, concurrency))
	defer span.End()

	stores, err := s.stores.ListActiveStores(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list active stores: %w", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrStoreCount, len(stores))

	start := time.Now()
	log := logger.WithLogger(ctx, s.logger)
	log.Info("Multi-store carrier sync started",
		zap.Int("store_count", len(stores)),
		zap.Int("concurrency", concurrency),
	)

	batch := concurrency
	if batch <= 0 || batch > len(stores) {
		batch = len(stores)
	}

	outcomes := make([]storeOutcome, len(stores))
	for from := 0; from < len(stores); from += batch {
		to := from + batch
		if to > len(stores) {
			to = len(stores)
		}

		var wg sync.WaitGroup
		for i := from; i < to; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = s.runStoreTask(ctx, stores[i].Key)
			}(i)
		}
		wg.Wait()
	}

	result := aggregate(stores, outcomes)
	telemetry.SetAttributes(span, telemetry.SpanAttrCarrierCount, result.TotalCarriers)
	if result.Status == SyncStatusFailed {
		telemetry.RecordError(span, errors.New("every store sync failed"))
	} else {
		telemetry.SetOK(span)
	}

	log.Info("Multi-store carrier sync completed",
		zap.String("status", string(result.Status)),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failed)),
		zap.Int("total_carriers", result.TotalCarriers),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *SyncService) runStoreTask(ctx context.Context, storeKey string) (out storeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithLogger(logger.WithStoreKey(ctx, storeKey), s.logger).
				Error("Carrier sync panicked", zap.Any("panic", r))
			out = storeOutcome{err: fmt.Errorf("sync panicked: %v", r)}
		}
	}()

	res, err := s.SyncStore(ctx, storeKey)
	return storeOutcome{result: res, err: err}
}

func aggregate(stores []carrier.Store, outcomes []storeOutcome) *SyncAllResult {
	result := &SyncAllResult{
		Total:  len(stores),
		Failed: []FailedStore{},
		Stores: []StoreSyncResult{},
	}
	for i, o := range outcomes {
		if o.err != nil {
			result.Failed = append(result.Failed, FailedStore{
				StoreKey: stores[i].Key,
				Code:     shared.CodeOf(o.err),
				Error:    o.err.Error(),
			})
			continue
		}
		result.Succeeded++
		result.TotalCarriers += o.result.CarrierCount
		result.Stores = append(result.Stores, *o.result)
	}

	switch {
	case len(result.Failed) == 0:
		result.Status = SyncStatusSuccess
	case result.Succeeded > 0:
		result.Status = SyncStatusPartial
	default:
		result.Status = SyncStatusFailed
	}
	return result
}

// MoveCarrier swaps an active carrier with its neighbour in the store's
// priority order. Moving past either end leaves the order unchanged.
func (s *SyncService) MoveCarrier(ctx context.Context, storeKey, carrierID, direction string) (*MoveResult, error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}
	dir, err := carrier.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithStoreKey(ctx, storeKey)
	ctx, span := telemetry.StartServiceSpan(ctx, syncServiceName, "MoveCarrier",
		telemetry.WithAttribute(telemetry.SpanAttrStoreKey, storeKey),
		telemetry.WithAttribute(telemetry.SpanAttrCarrierID, carrierID),
		telemetry.WithAttribute(telemetry.SpanAttrDirection, string(dir)),
	)
	defer span.End()

	if _, err := s.stores.GetStore(ctx, storeKey); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	unlock, err := s.locker.TryLock(ctx, storeKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	existing, err := s.repo.FindByStore(ctx, storeKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load carriers for store %s: %w", storeKey, err)
	}

	reordered, moved, err := carrier.Move(existing, carrierID, dir)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if changed := carrier.Changed(existing, reordered); len(changed) > 0 {
		if _, err := s.repo.UpdatePriorities(ctx, storeKey, changed); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("write priorities for store %s: %w", storeKey, err)
		}
	}
	telemetry.SetOK(span)

	logger.WithLogger(ctx, s.logger).Info("Carrier moved",
		zap.String("carrier_id", carrierID),
		zap.String("direction", string(dir)),
		zap.Bool("moved", moved),
	)
	return &MoveResult{
		StoreKey:  storeKey,
		CarrierID: carrierID,
		Direction: string(dir),
		Moved:     moved,
		Carriers:  ToCarrierDTOs(carrier.SortForDisplay(reordered)),
	}, nil
}

// NormalizePriorities renumbers a store's active carriers to 1..K. Running it
// on a dense store writes nothing.
func (s *SyncService) NormalizePriorities(ctx context.Context, storeKey string) (*NormalizeResult, error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}
	ctx = logger.WithStoreKey(ctx, storeKey)
	ctx, span := telemetry.StartServiceSpan(ctx, syncServiceName, "NormalizePriorities",
		telemetry.WithAttribute(telemetry.SpanAttrStoreKey, storeKey))
	defer span.End()

	if _, err := s.stores.GetStore(ctx, storeKey); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	unlock, err := s.locker.TryLock(ctx, storeKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	existing, err := s.repo.FindByStore(ctx, storeKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load carriers for store %s: %w", storeKey, err)
	}

	changed := carrier.Changed(existing, carrier.Renumber(existing))
	updated, err := s.repo.UpdatePriorities(ctx, storeKey, changed)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("write priorities for store %s: %w", storeKey, err)
	}
	telemetry.SetOK(span)

	if updated > 0 {
		logger.WithLogger(ctx, s.logger).Info("Carrier priorities renumbered", zap.Int("updated", updated))
	}
	return &NormalizeResult{StoreKey: storeKey, Updated: updated}, nil
}

// ListStoreCarriers returns a store's carriers, active ones first by priority.
func (s *SyncService) ListStoreCarriers(ctx context.Context, storeKey string) ([]CarrierDTO, error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}
	if _, err := s.stores.GetStore(ctx, storeKey); err != nil {
		return nil, err
	}

	carriers, err := s.repo.FindByStore(ctx, storeKey)
	if err != nil {
		return nil, fmt.Errorf("load carriers for store %s: %w", storeKey, err)
	}
	return ToCarrierDTOs(carrier.SortForDisplay(carriers)), nil
}
