// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel shared by every table
// - carrier.go: carriers table, partitioned by store_key
// - store.go: stores table (tenant registry)
package models
