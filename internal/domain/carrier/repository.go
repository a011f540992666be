package carrier

import "context"

// ReplaceResult reports the outcome of a full partition replace.
type ReplaceResult struct {
	Written int
	// Skipped rows hit a duplicate key written concurrently by another sync
	// of the same store; the next sync rewrites them.
	Skipped []string
}

// Repository is the Carrier Record Store.
// Every per-store method is scoped to the store_key partition.
type Repository interface {
	// FindByStore returns a store's carriers ordered by priority.
	FindByStore(ctx context.Context, storeKey string) ([]Carrier, error)
	// FindAll returns every carrier ordered by store key then priority.
	FindAll(ctx context.Context) ([]Carrier, error)
	// ReplaceStore atomically replaces a store's whole partition.
	ReplaceStore(ctx context.Context, storeKey string, carriers []Carrier) (*ReplaceResult, error)
	// UpdatePriorities writes priority and status of the given carriers,
	// matched on (carrier_id, store_key).
	UpdatePriorities(ctx context.Context, storeKey string, carriers []Carrier) (int, error)
	// InTransaction runs fn against a repository bound to one transaction.
	InTransaction(ctx context.Context, fn func(repo Repository) error) error
}

// StoreRegistry is the tenant registry consumed by the sync engine.
type StoreRegistry interface {
	ListActiveStores(ctx context.Context) ([]Store, error)
	GetStore(ctx context.Context, storeKey string) (*Store, error)
}

// Fetcher lists a store's carriers from the upstream carrier API.
type Fetcher interface {
	FetchCarriers(ctx context.Context, store Store) ([]Candidate, error)
}

// StoreLocker guards mutations of one store's partition.
// TryLock never blocks; it fails with ErrSyncInProgress when the store is held.
type StoreLocker interface {
	TryLock(ctx context.Context, storeKey string) (unlock func(), err error)
}
