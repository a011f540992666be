package carrierapp

import (
	"context"
	"testing"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/config"
	"github.com/fulfillment/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
)

// MockFetcher is a mock implementation of carrier.Fetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchCarriers(ctx context.Context, store carrier.Store) ([]carrier.Candidate, error) {
	args := m.Called(ctx, store.Key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]carrier.Candidate), args.Error(1)
}

// MockArchive is a mock implementation of ArchiveStorage
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

// MockMetrics is a mock implementation of MetricsRecorder
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordStoreSync(ctx context.Context, storeKey, result string, carriers int, d time.Duration) {
	m.Called(storeKey, result, carriers)
}

func (m *MockMetrics) RecordImport(ctx context.Context, result string, updated int) {
	m.Called(result, updated)
}

type fixture struct {
	carriers *persistence.GormCarrierRepository
	stores   *persistence.GormStoreRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := persistence.Open(sqlite.Open(":memory:"), &config.DatabaseConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return &fixture{
		carriers: persistence.NewGormCarrierRepository(db.DB),
		stores:   persistence.NewGormStoreRepository(db.DB),
	}
}

func (f *fixture) store(t *testing.T, key string, status carrier.StoreStatus) {
	t.Helper()
	require.NoError(t, f.stores.Save(context.Background(), &carrier.Store{
		Key:         key,
		Name:        key + " Shop",
		Status:      status,
		Credentials: carrier.Credentials{Token: "t-" + key},
	}))
}

// seed writes carriers given as id, priority, status triples.
func (f *fixture) seed(t *testing.T, storeKey string, specs ...any) {
	t.Helper()
	var cs []carrier.Carrier
	for i := 0; i+2 < len(specs); i += 3 {
		cs = append(cs, carrier.NewCarrier(storeKey, carrier.Candidate{
			CarrierID: specs[i].(string),
			Name:      specs[i].(string),
			Status:    specs[i+2].(carrier.Status),
		}, specs[i+1].(int)))
	}
	_, err := f.carriers.ReplaceStore(context.Background(), storeKey, cs)
	require.NoError(t, err)
}

// priorities returns carrier_id -> priority for a store.
func (f *fixture) priorities(t *testing.T, storeKey string) map[string]int {
	t.Helper()
	cs, err := f.carriers.FindByStore(context.Background(), storeKey)
	require.NoError(t, err)
	out := make(map[string]int, len(cs))
	for _, c := range cs {
		out[c.CarrierID] = c.Priority
	}
	return out
}

func (f *fixture) statuses(t *testing.T, storeKey string) map[string]carrier.Status {
	t.Helper()
	cs, err := f.carriers.FindByStore(context.Background(), storeKey)
	require.NoError(t, err)
	out := make(map[string]carrier.Status, len(cs))
	for _, c := range cs {
		out[c.CarrierID] = c.Status
	}
	return out
}

func candidates(ids ...string) []carrier.Candidate {
	out := make([]carrier.Candidate, len(ids))
	for i, id := range ids {
		out[i] = carrier.Candidate{
			CarrierID: id,
			Name:      id,
			Status:    carrier.StatusActive,
			Priority:  i + 1,
		}
	}
	return out
}
