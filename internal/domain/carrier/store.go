package carrier

import "strings"

// StoreStatus is the lifecycle state of a store in the tenant registry
type StoreStatus string

const (
	StoreStatusActive   StoreStatus = "active"
	StoreStatusInactive StoreStatus = "inactive"
)

// Credentials is the authentication bundle used against the upstream carrier API.
// Either Token (bearer) or APIKey and APISecret (basic) must be set.
type Credentials struct {
	Token     string
	APIKey    string
	APISecret string
}

// IsEmpty returns true when no usable authentication is configured
func (c Credentials) IsEmpty() bool {
	if strings.TrimSpace(c.Token) != "" {
		return false
	}
	return strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.APISecret) == ""
}

// Store is one tenant partition, identified by its account code.
type Store struct {
	Key         string
	Name        string
	Status      StoreStatus
	Credentials Credentials
	// APIBaseURL overrides the default upstream base URL for this store when set
	APIBaseURL string
}

// IsActive returns true if the store takes part in scheduled syncs
func (s *Store) IsActive() bool {
	return s.Status == StoreStatusActive
}
