package dto

// MoveCarrierRequest is the body of a single-step reorder
type MoveCarrierRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

// SyncAllRequest holds the query of a multi-store sync.
// Concurrency <= 0 syncs every store at once.
type SyncAllRequest struct {
	Concurrency int `form:"concurrency"`
}

// ExportRequest holds the query of a CSV export
type ExportRequest struct {
	StoreKey string `form:"store_key"`
}
