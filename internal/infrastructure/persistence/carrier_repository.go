package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCarrierRepository implements carrier.Repository using GORM
type GormCarrierRepository struct {
	db *gorm.DB
}

// NewGormCarrierRepository creates a new GormCarrierRepository
func NewGormCarrierRepository(db *gorm.DB) *GormCarrierRepository {
	return &GormCarrierRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormCarrierRepository) WithTx(tx *gorm.DB) *GormCarrierRepository {
	return &GormCarrierRepository{db: tx}
}

// FindByStore returns a store's carriers ordered by priority.
func (r *GormCarrierRepository) FindByStore(ctx context.Context, storeKey string) ([]carrier.Carrier, error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}

	var rows []models.CarrierModel
	if err := r.db.WithContext(ctx).
		Where("store_key = ?", storeKey).
		Order("priority ASC, carrier_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find carriers for store %s: %w", storeKey, err)
	}
	return toDomainCarriers(rows), nil
}

// FindAll returns every carrier ordered by store key then priority.
func (r *GormCarrierRepository) FindAll(ctx context.Context) ([]carrier.Carrier, error) {
	var rows []models.CarrierModel
	if err := r.db.WithContext(ctx).
		Order("store_key ASC, priority ASC, carrier_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find all carriers: %w", err)
	}
	return toDomainCarriers(rows), nil
}

// ReplaceStore deletes a store's partition and inserts carriers in a single
// transaction, so readers never see a partially written set. A row that
// collides with one inserted concurrently by another sync of the same store
// is skipped instead of failing the whole replace.
func (r *GormCarrierRepository) ReplaceStore(ctx context.Context, storeKey string, carriers []carrier.Carrier) (*carrier.ReplaceResult, error) {
	if storeKey == "" {
		return nil, carrier.ErrStoreKeyRequired
	}

	result := &carrier.ReplaceResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_key = ?", storeKey).Delete(&models.CarrierModel{}).Error; err != nil {
			return fmt.Errorf("delete carriers for store %s: %w", storeKey, err)
		}

		now := time.Now()
		for i := range carriers {
			m := models.CarrierModelFromDomain(&carriers[i])
			m.StoreKey = storeKey
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			m.UpdatedAt = now

			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
			if res.Error != nil {
				return fmt.Errorf("insert carrier %s for store %s: %w", m.CarrierID, storeKey, res.Error)
			}
			if res.RowsAffected == 0 {
				result.Skipped = append(result.Skipped, m.CarrierID)
				continue
			}
			result.Written++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePriorities writes priority and status for each carrier, matched on
// (carrier_id, store_key). It returns the number of rows updated.
func (r *GormCarrierRepository) UpdatePriorities(ctx context.Context, storeKey string, carriers []carrier.Carrier) (int, error) {
	if storeKey == "" {
		return 0, carrier.ErrStoreKeyRequired
	}
	if len(carriers) == 0 {
		return 0, nil
	}

	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, c := range carriers {
			res := tx.Model(&models.CarrierModel{}).
				Where("store_key = ? AND carrier_id = ?", storeKey, c.CarrierID).
				Updates(map[string]any{
					"priority":   c.Priority,
					"status":     c.Status.String(),
					"updated_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("update carrier %s for store %s: %w", c.CarrierID, storeKey, res.Error)
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// InTransaction runs fn with a repository bound to a single transaction.
func (r *GormCarrierRepository) InTransaction(ctx context.Context, fn func(repo carrier.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func toDomainCarriers(rows []models.CarrierModel) []carrier.Carrier {
	carriers := make([]carrier.Carrier, len(rows))
	for i := range rows {
		carriers[i] = rows[i].ToDomain()
	}
	return carriers
}

var _ carrier.Repository = (*GormCarrierRepository)(nil)
