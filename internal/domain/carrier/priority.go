package carrier

import (
	"fmt"
	"sort"
	"strings"
)

// Direction is a single-step reorder direction
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection parses a direction case-insensitively
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, raw)
	}
}

// SortByPriority returns a copy of carriers stably sorted by ascending priority.
func SortByPriority(carriers []Carrier) []Carrier {
	sorted := make([]Carrier, len(carriers))
	copy(sorted, carriers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// SortForDisplay returns a copy of carriers with active carriers first, then
// every other carrier, each group in ascending priority.
func SortForDisplay(carriers []Carrier) []Carrier {
	sorted := SortByPriority(carriers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IsActive() && !sorted[j].IsActive()
	})
	return sorted
}

// Renumber stably sorts carriers by priority and assigns every active carrier
// its 1-based rank among active carriers. Gaps and duplicate priorities are
// closed; ties keep their input order. Non-active carriers keep the value they
// have. The returned slice is in priority order.
func Renumber(carriers []Carrier) []Carrier {
	sorted := SortByPriority(carriers)
	rank := 0
	for i := range sorted {
		if !sorted[i].IsActive() {
			continue
		}
		rank++
		sorted[i].Priority = rank
	}
	return sorted
}

// Changed returns the carriers in after whose priority or status differs from
// the carrier with the same CarrierID in before.
func Changed(before, after []Carrier) []Carrier {
	prev := make(map[string]Carrier, len(before))
	for _, c := range before {
		prev[c.CarrierID] = c
	}
	var changed []Carrier
	for _, c := range after {
		old, ok := prev[c.CarrierID]
		if !ok || old.Priority != c.Priority || old.Status != c.Status {
			changed = append(changed, c)
		}
	}
	return changed
}

// IsDense reports whether the active carriers hold exactly the priorities 1..K.
func IsDense(carriers []Carrier) bool {
	seen := make(map[int]bool)
	active := 0
	for _, c := range carriers {
		if !c.IsActive() {
			continue
		}
		active++
		if seen[c.Priority] {
			return false
		}
		seen[c.Priority] = true
	}
	for p := 1; p <= active; p++ {
		if !seen[p] {
			return false
		}
	}
	return true
}

// Move swaps the active carrier identified by carrierID with its neighbour in
// the active priority sequence and renumbers the store. Moving past either
// end is a no-op and reports moved=false.
func Move(carriers []Carrier, carrierID string, dir Direction) (result []Carrier, moved bool, err error) {
	if dir != DirectionUp && dir != DirectionDown {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}

	sorted := Renumber(carriers)
	activeIdx := make([]int, 0, len(sorted))
	pos := -1
	found := false
	for i := range sorted {
		if sorted[i].CarrierID == carrierID {
			found = true
			if !sorted[i].IsActive() {
				return nil, false, fmt.Errorf("%w: %s", ErrCarrierInactive, carrierID)
			}
			pos = len(activeIdx)
		}
		if sorted[i].IsActive() {
			activeIdx = append(activeIdx, i)
		}
	}
	if !found {
		return nil, false, fmt.Errorf("%w: %s", ErrCarrierNotFound, carrierID)
	}

	neighbour := pos - 1
	if dir == DirectionDown {
		neighbour = pos + 1
	}
	if neighbour < 0 || neighbour >= len(activeIdx) {
		return sorted, false, nil
	}

	a, b := activeIdx[pos], activeIdx[neighbour]
	sorted[a].Priority, sorted[b].Priority = sorted[b].Priority, sorted[a].Priority
	return SortByPriority(sorted), true, nil
}
