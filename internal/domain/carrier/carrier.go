package carrier

import (
	"regexp"
	"strings"
	"time"

	"github.com/fulfillment/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status is the availability of a carrier for a store.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsActive returns true only for the exact active status.
// Free-text statuses carried in through CSV are treated as not active.
func (s Status) IsActive() bool {
	return s == StatusActive
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CoerceUpstreamStatus maps free-text upstream status to a Status.
// Everything except an explicit "inactive" is considered active.
func CoerceUpstreamStatus(raw string) Status {
	if strings.EqualFold(strings.TrimSpace(raw), string(StatusInactive)) {
		return StatusInactive
	}
	return StatusActive
}

// NormalizeStatus normalizes a status supplied by an operator.
// "active" and "inactive" are matched case-insensitively; any other value is
// passed through verbatim.
func NormalizeStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(trimmed, string(StatusInactive)):
		return StatusInactive
	case strings.EqualFold(trimmed, string(StatusActive)):
		return StatusActive
	default:
		return Status(raw)
	}
}

var weightClassPattern = regexp.MustCompile(`(?i)\(\s*(\d+(?:\.\d+)?)\s*kg\s*\)`)

// ParseWeightClass extracts the weight class encoded in a carrier name such
// as "Standard (2kg)" or "Heavy (12.5 kg)". A name without one yields an
// invalid NullDecimal.
func ParseWeightClass(name string) decimal.NullDecimal {
	m := weightClassPattern.FindStringSubmatch(name)
	if m == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// Carrier is one shipping option offered by a store.
type Carrier struct {
	shared.BaseEntity
	CarrierID   string
	StoreKey    string
	Name        string
	Status      Status
	WeightClass decimal.NullDecimal
	Priority    int
}

// NewCarrier creates a carrier for a store from an upstream candidate.
func NewCarrier(storeKey string, c Candidate, priority int) Carrier {
	return Carrier{
		BaseEntity:  shared.NewBaseEntity(),
		CarrierID:   c.CarrierID,
		StoreKey:    storeKey,
		Name:        c.Name,
		Status:      c.Status,
		WeightClass: c.WeightClass,
		Priority:    priority,
	}
}

// IsActive returns true if the carrier is active
func (c *Carrier) IsActive() bool {
	return c.Status.IsActive()
}

// Refresh overwrites the descriptive fields from an upstream candidate.
// Priority is never taken from upstream.
func (c *Carrier) Refresh(from Candidate) {
	c.Name = from.Name
	c.Status = from.Status
	c.WeightClass = from.WeightClass
	c.UpdatedAt = time.Now()
}

// Candidate is a carrier as reported by the upstream carrier API.
// Priority is the 1-based position in the upstream response and is only a
// placeholder until reconciliation assigns the real one.
type Candidate struct {
	CarrierID   string
	Name        string
	Status      Status
	WeightClass decimal.NullDecimal
	Priority    int
}
