package carrierapp

import (
	"context"
	"time"
)

// ArchiveStorage keeps copies of accepted uploads and the state they replaced.
// Put returns the full object key the data was stored under.
type ArchiveStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// MetricsRecorder receives sync and import outcomes.
type MetricsRecorder interface {
	RecordStoreSync(ctx context.Context, storeKey, result string, carriers int, d time.Duration)
	RecordImport(ctx context.Context, result string, updated int)
}

type noopMetrics struct{}

func (noopMetrics) RecordStoreSync(context.Context, string, string, int, time.Duration) {}

func (noopMetrics) RecordImport(context.Context, string, int) {}
