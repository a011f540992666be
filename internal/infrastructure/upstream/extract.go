package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fulfillment/backend/internal/domain/carrier"
)

const unknownCarrierName = "Unknown Carrier"

// listKeys are the object keys known to hold the carrier array, in lookup order.
var listKeys = []string{"carriers", "data", "result", "message"}

var (
	idKeys   = []string{"id", "carrier_id", "carrierId"}
	nameKeys = []string{"name", "carrier_name", "carrierName"}
)

// ParseCarriers decodes a carrier API body into candidates.
//
// The body may be a bare array, an object carrying the array under one of the
// known keys, or anything else, which is treated as a single carrier. Only a
// body that is not JSON at all is an error.
func ParseCarriers(body []byte) ([]carrier.Candidate, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode carrier response: %w", err)
	}

	items := extractItems(doc)
	candidates := make([]carrier.Candidate, 0, len(items))
	for i, item := range items {
		obj, _ := item.(map[string]any)
		position := i + 1

		id := firstString(obj, idKeys)
		if id == "" {
			id = fmt.Sprintf("CARRIER_%d", position)
		}
		name := firstString(obj, nameKeys)
		if name == "" {
			name = unknownCarrierName
		}

		candidates = append(candidates, carrier.Candidate{
			CarrierID:   id,
			Name:        name,
			Status:      carrier.CoerceUpstreamStatus(firstString(obj, []string{"status"})),
			WeightClass: carrier.ParseWeightClass(name),
			Priority:    position,
		})
	}
	return candidates, nil
}

func extractItems(doc any) []any {
	switch v := doc.(type) {
	case nil:
		return nil
	case []any:
		return v
	case map[string]any:
		for _, key := range listKeys {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
		return []any{v}
	default:
		return []any{v}
	}
}

func firstString(obj map[string]any, keys []string) string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok || raw == nil {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case json.Number:
			s = v.String()
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
