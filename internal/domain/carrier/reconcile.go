package carrier

// ReconcileResult is the authoritative carrier list for one store after merging
// an upstream listing into the persisted one.
type ReconcileResult struct {
	// Carriers is the full post-sync set, in priority order.
	Carriers []Carrier
	Inserted int
	Updated  int
	Dropped  []string
}

// Reconcile merges freshly fetched upstream candidates into a store's existing
// carriers.
//
// Carriers present on both sides keep their persisted priority and take name,
// status and weight class from upstream. Carriers only upstream are appended
// after the highest existing priority, in upstream order. Carriers missing
// upstream are dropped regardless of status. The merged list is then
// renumbered, so an empty upstream list yields an empty result.
//
// When upstream repeats a carrier_id, the first occurrence wins.
func Reconcile(storeKey string, existing []Carrier, upstream []Candidate) ReconcileResult {
	incoming := make(map[string]Candidate, len(upstream))
	order := make([]string, 0, len(upstream))
	for _, c := range upstream {
		if _, dup := incoming[c.CarrierID]; dup {
			continue
		}
		incoming[c.CarrierID] = c
		order = append(order, c.CarrierID)
	}

	current := make(map[string]bool, len(existing))
	maxPriority := 0
	for _, c := range existing {
		current[c.CarrierID] = true
		if c.Priority > maxPriority {
			maxPriority = c.Priority
		}
	}

	result := ReconcileResult{}
	merged := make([]Carrier, 0, len(order))
	for _, c := range existing {
		cand, ok := incoming[c.CarrierID]
		if !ok {
			result.Dropped = append(result.Dropped, c.CarrierID)
			continue
		}
		c.Refresh(cand)
		merged = append(merged, c)
		result.Updated++
	}

	next := maxPriority + 1
	for _, id := range order {
		if current[id] {
			continue
		}
		merged = append(merged, NewCarrier(storeKey, incoming[id], next))
		next++
		result.Inserted++
	}

	result.Carriers = Renumber(merged)
	return result
}
