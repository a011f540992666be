package carrier

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceUpstreamStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"active", StatusActive},
		{"inactive", StatusInactive},
		{"INACTIVE", StatusInactive},
		{" Inactive ", StatusInactive},
		{"", StatusActive},
		{"enabled", StatusActive},
		{"disabled", StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceUpstreamStatus(tt.raw))
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusInactive, NormalizeStatus("InActive"))
	assert.Equal(t, StatusActive, NormalizeStatus("ACTIVE"))
	assert.Equal(t, Status("paused"), NormalizeStatus("paused"))
	assert.False(t, NormalizeStatus("paused").IsActive())
}

func TestParseWeightClass(t *testing.T) {
	t.Run("integer weight", func(t *testing.T) {
		w := ParseWeightClass("Standard (2kg)")
		require.True(t, w.Valid)
		assert.Equal(t, "2", w.Decimal.String())
	})

	t.Run("decimal weight with space", func(t *testing.T) {
		w := ParseWeightClass("Heavy Parcel (12.5 kg)")
		require.True(t, w.Valid)
		assert.Equal(t, "12.5", w.Decimal.String())
	})

	t.Run("upper case unit", func(t *testing.T) {
		w := ParseWeightClass("Express (0.5KG)")
		require.True(t, w.Valid)
		assert.Equal(t, "0.5", w.Decimal.String())
	})

	t.Run("no weight", func(t *testing.T) {
		assert.False(t, ParseWeightClass("Economy").Valid)
		assert.False(t, ParseWeightClass("Economy 2kg").Valid)
		assert.False(t, ParseWeightClass("").Valid)
	})
}

func TestNewCarrier(t *testing.T) {
	cand := Candidate{
		CarrierID:   "DHL-STD",
		Name:        "DHL Standard (2kg)",
		Status:      StatusActive,
		WeightClass: ParseWeightClass("DHL Standard (2kg)"),
		Priority:    7,
	}

	c := NewCarrier("STRI", cand, 3)

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, "STRI", c.StoreKey)
	assert.Equal(t, "DHL-STD", c.CarrierID)
	assert.Equal(t, 3, c.Priority)
	assert.True(t, c.IsActive())
	assert.True(t, c.WeightClass.Valid)
}

func TestCredentials_IsEmpty(t *testing.T) {
	assert.True(t, Credentials{}.IsEmpty())
	assert.True(t, Credentials{Token: "  "}.IsEmpty())
	assert.True(t, Credentials{APIKey: "key"}.IsEmpty())
	assert.False(t, Credentials{Token: "tok"}.IsEmpty())
	assert.False(t, Credentials{APIKey: "key", APISecret: "secret"}.IsEmpty())
}
