package models

import "github.com/fulfillment/backend/internal/domain/carrier"

// StoreModel is the tenant registry row for one store.
type StoreModel struct {
	BaseModel
	StoreKey   string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name       string `gorm:"type:varchar(200);not null"`
	Status     string `gorm:"type:varchar(20);not null;index"`
	APIToken   string `gorm:"type:text"`
	APIKey     string `gorm:"type:varchar(255)"`
	APISecret  string `gorm:"type:text"`
	APIBaseURL string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (StoreModel) TableName() string {
	return "stores"
}

// ToDomain converts the persistence model to a domain Store.
func (m *StoreModel) ToDomain() *carrier.Store {
	return &carrier.Store{
		Key:    m.StoreKey,
		Name:   m.Name,
		Status: carrier.StoreStatus(m.Status),
		Credentials: carrier.Credentials{
			Token:     m.APIToken,
			APIKey:    m.APIKey,
			APISecret: m.APISecret,
		},
		APIBaseURL: m.APIBaseURL,
	}
}

// StoreModelFromDomain converts a domain Store to its persistence model.
func StoreModelFromDomain(s *carrier.Store) *StoreModel {
	return &StoreModel{
		StoreKey:   s.Key,
		Name:       s.Name,
		Status:     string(s.Status),
		APIToken:   s.Credentials.Token,
		APIKey:     s.Credentials.APIKey,
		APISecret:  s.Credentials.APISecret,
		APIBaseURL: s.APIBaseURL,
	}
}
