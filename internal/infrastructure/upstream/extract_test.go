package upstream

import (
	"testing"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCarriers_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
	}{
		{"bare array", `[{"id":"A"},{"id":"B"}]`, []string{"A", "B"}},
		{"carriers key", `{"carriers":[{"id":"A"}],"total":1}`, []string{"A"}},
		{"data key", `{"data":[{"id":"A"},{"id":"B"}]}`, []string{"A", "B"}},
		{"result key", `{"result":[{"id":"R"}]}`, []string{"R"}},
		{"message key", `{"message":[{"id":"M"}]}`, []string{"M"}},
		{"carriers wins over data", `{"data":[{"id":"D"}],"carriers":[{"id":"C"}]}`, []string{"C"}},
		{"non-array data falls back to single object", `{"data":{"id":"X"},"id":"TOP"}`, []string{"TOP"}},
		{"plain object", `{"id":"ONLY","name":"Only"}`, []string{"ONLY"}},
		{"scalar", `"hello"`, []string{"CARRIER_1"}},
		{"empty array", `[]`, []string{}},
		{"null", `null`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCarriers([]byte(tt.body))
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.CarrierID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestParseCarriers_FieldResolution(t *testing.T) {
	body := `[
		{"id": "A", "carrier_id": "ignored", "name": "Alpha (2kg)"},
		{"carrier_id": "B", "carrier_name": "Bravo"},
		{"carrierId": 301, "carrierName": "Charlie (0.5 kg)"},
		{"id": "", "name": "  "},
		{"id": 12.5, "status": "INACTIVE", "name": "Echo"},
		{"id": "F", "status": "suspended", "name": "Foxtrot"}
	]`

	got, err := ParseCarriers([]byte(body))
	require.NoError(t, err)
	require.Len(t, got, 6)

	assert.Equal(t, "A", got[0].CarrierID)
	assert.Equal(t, "Alpha (2kg)", got[0].Name)
	assert.Equal(t, "2", got[0].WeightClass.Decimal.String())

	assert.Equal(t, "B", got[1].CarrierID)
	assert.Equal(t, "Bravo", got[1].Name)
	assert.False(t, got[1].WeightClass.Valid)

	assert.Equal(t, "301", got[2].CarrierID)
	assert.Equal(t, "Charlie (0.5 kg)", got[2].Name)
	assert.Equal(t, "0.5", got[2].WeightClass.Decimal.String())

	assert.Equal(t, "CARRIER_4", got[3].CarrierID)
	assert.Equal(t, "Unknown Carrier", got[3].Name)

	assert.Equal(t, "12.5", got[4].CarrierID)
	assert.Equal(t, carrier.StatusInactive, got[4].Status)
	assert.Equal(t, carrier.StatusActive, got[5].Status)

	for i, c := range got {
		assert.Equal(t, i+1, c.Priority, "priority is 1-based response position")
	}
}

func TestParseCarriers_InvalidJSON(t *testing.T) {
	_, err := ParseCarriers([]byte(`<html>oops</html>`))
	assert.Error(t, err)

	_, err = ParseCarriers(nil)
	assert.Error(t, err)
}
