package carrierapp

import (
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncStatus summarises a multi-store sync run
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// CarrierDTO represents a carrier in API responses
type CarrierDTO struct {
	ID         uuid.UUID        `json:"id"`
	CarrierID  string           `json:"carrier_id"`
	StoreKey   string           `json:"store_key"`
	Name       string           `json:"name"`
	Status     string           `json:"status"`
	WeightInKg *decimal.Decimal `json:"weight_in_kg,omitempty"`
	Priority   int              `json:"priority"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ToCarrierDTO converts a domain carrier to its response form
func ToCarrierDTO(c carrier.Carrier) CarrierDTO {
	dto := CarrierDTO{
		ID:        c.ID,
		CarrierID: c.CarrierID,
		StoreKey:  c.StoreKey,
		Name:      c.Name,
		Status:    c.Status.String(),
		Priority:  c.Priority,
		UpdatedAt: c.UpdatedAt,
	}
	if c.WeightClass.Valid {
		w := c.WeightClass.Decimal
		dto.WeightInKg = &w
	}
	return dto
}

// ToCarrierDTOs converts carriers keeping their order
func ToCarrierDTOs(carriers []carrier.Carrier) []CarrierDTO {
	out := make([]CarrierDTO, len(carriers))
	for i, c := range carriers {
		out[i] = ToCarrierDTO(c)
	}
	return out
}

// StoreSyncResult is the outcome of syncing one store
type StoreSyncResult struct {
	StoreKey     string   `json:"store_key"`
	CarrierCount int      `json:"carrier_count"`
	Inserted     int      `json:"inserted"`
	Updated      int      `json:"updated"`
	Dropped      int      `json:"dropped"`
	SkippedRows  []string `json:"skipped_rows,omitempty"`
	SkippedEmpty bool     `json:"skipped_empty,omitempty"`
}

// FailedStore describes a store whose sync did not complete
type FailedStore struct {
	StoreKey string `json:"store_key"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error"`
}

// SyncAllResult aggregates the per-store outcomes of a multi-store sync
type SyncAllResult struct {
	Total         int               `json:"total"`
	Succeeded     int               `json:"succeeded"`
	Failed        []FailedStore     `json:"failed"`
	TotalCarriers int               `json:"total_carriers"`
	Status        SyncStatus        `json:"status"`
	Stores        []StoreSyncResult `json:"stores"`
}

// MoveResult is the outcome of a single-step reorder
type MoveResult struct {
	StoreKey  string       `json:"store_key"`
	CarrierID string       `json:"carrier_id"`
	Direction string       `json:"direction"`
	Moved     bool         `json:"moved"`
	Carriers  []CarrierDTO `json:"carriers"`
}

// NormalizeResult reports how many carriers a renumbering rewrote
type NormalizeResult struct {
	StoreKey string `json:"store_key"`
	Updated  int    `json:"updated"`
}

// ImportResult is the outcome of an accepted priority upload
type ImportResult struct {
	UpdatedCount    int      `json:"updated_count"`
	StoresProcessed []string `json:"stores_processed"`
	ArchiveKeys     []string `json:"archive_keys,omitempty"`
}
