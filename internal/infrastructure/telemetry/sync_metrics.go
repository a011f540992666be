package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Outcome labels for the result attribute.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// SyncMetrics records carrier sync and CSV import instruments.
type SyncMetrics struct {
	syncTotal     *Counter
	syncCarriers  *Counter
	syncDuration  *Histogram
	importTotal   *Counter
	importUpdated *Counter
}

// NewSyncMetrics creates the instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, errors.New("NewSyncMetrics: meter cannot be nil")
	}

	var err error
	m := &SyncMetrics{}
	if m.syncTotal, err = NewCounter(meter, "carrier_sync_total", "Per-store carrier sync runs", "{sync}"); err != nil {
		return nil, err
	}
	if m.syncCarriers, err = NewCounter(meter, "carrier_sync_carriers_total", "Carriers written by successful syncs", "{carrier}"); err != nil {
		return nil, err
	}
	if m.syncDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "carrier_sync_duration_seconds",
		Description: "Duration of a single store sync",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.importTotal, err = NewCounter(meter, "carrier_import_total", "CSV priority imports", "{import}"); err != nil {
		return nil, err
	}
	if m.importUpdated, err = NewCounter(meter, "carrier_import_updated_total", "Carrier rows updated by CSV imports", "{carrier}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordStoreSync records one store sync attempt.
func (m *SyncMetrics) RecordStoreSync(ctx context.Context, storeKey, result string, carriers int, d time.Duration) {
	m.syncTotal.Inc(ctx, AttrStoreKey.String(storeKey), AttrResult.String(result))
	m.syncDuration.RecordDuration(ctx, d, AttrResult.String(result))
	if result == ResultSuccess {
		m.syncCarriers.Add(ctx, int64(carriers), AttrStoreKey.String(storeKey))
	}
}

// RecordImport records one CSV import attempt.
func (m *SyncMetrics) RecordImport(ctx context.Context, result string, updated int) {
	m.importTotal.Inc(ctx, AttrResult.String(result))
	if updated > 0 {
		m.importUpdated.Add(ctx, int64(updated))
	}
}
