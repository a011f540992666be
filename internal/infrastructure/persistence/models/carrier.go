package models

import (
	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/shopspring/decimal"
)

// CarrierModel is the persistence model for the Carrier domain entity.
// Rows are partitioned by store_key; (carrier_id, store_key) is unique and
// (store_key, priority) backs ordered per-store reads.
type CarrierModel struct {
	BaseModel
	CarrierID   string              `gorm:"type:varchar(100);not null;uniqueIndex:idx_carriers_carrier_store,priority:1"`
	StoreKey    string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_carriers_carrier_store,priority:2;index:idx_carriers_store_priority,priority:1"`
	Name        string              `gorm:"type:varchar(255);not null"`
	Status      string              `gorm:"type:varchar(20);not null"`
	WeightClass decimal.NullDecimal `gorm:"type:decimal(10,3)"`
	Priority    int                 `gorm:"not null;index:idx_carriers_store_priority,priority:2"`
}

// TableName returns the table name for GORM
func (CarrierModel) TableName() string {
	return "carriers"
}

// ToDomain converts the persistence model to a domain Carrier entity.
func (m *CarrierModel) ToDomain() carrier.Carrier {
	return carrier.Carrier{
		BaseEntity:  m.BaseModel.ToDomain(),
		CarrierID:   m.CarrierID,
		StoreKey:    m.StoreKey,
		Name:        m.Name,
		Status:      carrier.Status(m.Status),
		WeightClass: m.WeightClass,
		Priority:    m.Priority,
	}
}

// CarrierModelFromDomain converts a domain Carrier to its persistence model.
func CarrierModelFromDomain(c *carrier.Carrier) *CarrierModel {
	m := &CarrierModel{
		CarrierID:   c.CarrierID,
		StoreKey:    c.StoreKey,
		Name:        c.Name,
		Status:      c.Status.String(),
		WeightClass: c.WeightClass,
		Priority:    c.Priority,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}
