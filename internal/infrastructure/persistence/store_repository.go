package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStoreRepository implements carrier.StoreRegistry using GORM
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GormStoreRepository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// ListActiveStores returns every active store ordered by store key
func (r *GormStoreRepository) ListActiveStores(ctx context.Context) ([]carrier.Store, error) {
	var rows []models.StoreModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(carrier.StoreStatusActive)).
		Order("store_key ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list active stores: %w", err)
	}

	stores := make([]carrier.Store, len(rows))
	for i := range rows {
		stores[i] = *rows[i].ToDomain()
	}
	return stores, nil
}

// GetStore finds a store by key
func (r *GormStoreRepository) GetStore(ctx context.Context, storeKey string) (*carrier.Store, error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}

	var row models.StoreModel
	if err := r.db.WithContext(ctx).Where("store_key = ?", storeKey).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", carrier.ErrStoreNotFound, storeKey)
		}
		return nil, fmt.Errorf("get store %s: %w", storeKey, err)
	}
	return row.ToDomain(), nil
}

// Save creates or updates a store keyed on store_key
func (r *GormStoreRepository) Save(ctx context.Context, store *carrier.Store) error {
	if store.Key == "" {
		return carrier.ErrStoreKeyRequired
	}

	now := time.Now()
	m := models.StoreModelFromDomain(store)
	m.ID = uuid.New()
	m.CreatedAt = now
	m.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "status", "api_token", "api_key", "api_secret", "api_base_url", "updated_at",
		}),
	}).Create(m).Error
}

var _ carrier.StoreRegistry = (*GormStoreRepository)(nil)
