package csvimport

import (
	"fmt"
	"strconv"

	"github.com/fulfillment/backend/internal/domain/carrier"
)

// Assignment is a validated row: the new priority and, when the row has one,
// the normalized status for a carrier.
type Assignment struct {
	Line      int
	CarrierID string
	Status    carrier.Status
	Priority  int
}

// HasStatus reports whether the upload supplied a status for this carrier.
func (a Assignment) HasStatus() bool {
	return a.Status != ""
}

// StoreGroup is every row of an upload sharing one account_code.
type StoreGroup struct {
	StoreKey    string
	Assignments []Assignment
}

// UploadValidator runs the read-only checks of a priority upload and collects
// every problem instead of stopping at the first one.
type UploadValidator struct {
	errs *ErrorCollection
}

// NewUploadValidator creates a validator keeping at most maxErrors errors (0 keeps all).
func NewUploadValidator(maxErrors int) *UploadValidator {
	return &UploadValidator{errs: NewErrorCollection(maxErrors)}
}

// Group checks each row on its own and groups them by account_code in order of
// first appearance. Rows without an account_code belong to no group. Rows with
// a bad priority stay in their group with Priority 0 so carrier checks still see them.
func (v *UploadValidator) Group(rows []CarrierRow) []StoreGroup {
	index := make(map[string]int)
	var groups []StoreGroup

	for _, row := range rows {
		if row.StoreKey == "" {
			v.errs.AddRequiredError(row.Line, "", ColumnAccountCode)
			continue
		}
		if row.CarrierID == "" {
			v.errs.AddRequiredError(row.Line, row.StoreKey, ColumnCarrierID)
		}

		priority, err := strconv.Atoi(row.Priority)
		if err != nil || priority <= 0 {
			v.errs.Add(RowError{
				Row:     row.Line,
				Store:   row.StoreKey,
				Column:  ColumnPriority,
				Code:    ErrCodeInvalidPriority,
				Message: "priority must be a positive integer",
				Value:   row.Priority,
			})
			priority = 0
		}

		a := Assignment{
			Line:      row.Line,
			CarrierID: row.CarrierID,
			Priority:  priority,
		}
		if row.Status != "" {
			a.Status = carrier.NormalizeStatus(row.Status)
		}

		i, ok := index[row.StoreKey]
		if !ok {
			i = len(groups)
			index[row.StoreKey] = i
			groups = append(groups, StoreGroup{StoreKey: row.StoreKey})
		}
		groups[i].Assignments = append(groups[i].Assignments, a)
	}
	return groups
}

// UnknownStore records a group whose account_code matches no registered store.
func (v *UploadValidator) UnknownStore(g StoreGroup) {
	line := 0
	if len(g.Assignments) > 0 {
		line = g.Assignments[0].Line
	}
	v.errs.AddReferenceError(line, g.StoreKey, ColumnAccountCode, ErrCodeUnknownStore, g.StoreKey, "store")
}

// ValidateGroup checks a group against the store's persisted carriers: each
// carrier_id appears once, is known to the store, every persisted carrier is
// listed, and priorities of rows that end up active are pairwise distinct.
func (v *UploadValidator) ValidateGroup(g StoreGroup, persisted []carrier.Carrier) {
	known := make(map[string]carrier.Carrier, len(persisted))
	for _, c := range persisted {
		known[c.CarrierID] = c
	}

	firstLine := make(map[string]int, len(g.Assignments))
	priorityLine := make(map[int]int, len(g.Assignments))
	for _, a := range g.Assignments {
		if a.CarrierID == "" {
			continue
		}
		if first, dup := firstLine[a.CarrierID]; dup {
			v.errs.AddDuplicateError(a.Line, g.StoreKey, ColumnCarrierID, ErrCodeDuplicateCarrier, a.CarrierID, first)
			continue
		}
		firstLine[a.CarrierID] = a.Line

		current, ok := known[a.CarrierID]
		if !ok {
			v.errs.AddReferenceError(a.Line, g.StoreKey, ColumnCarrierID, ErrCodeUnknownCarrier, a.CarrierID, "carrier")
			continue
		}

		status := current.Status
		if a.HasStatus() {
			status = a.Status
		}
		if a.Priority == 0 || !status.IsActive() {
			continue
		}
		if first, dup := priorityLine[a.Priority]; dup {
			v.errs.AddDuplicateError(a.Line, g.StoreKey, ColumnPriority, ErrCodeDuplicatePriority, strconv.Itoa(a.Priority), first)
			continue
		}
		priorityLine[a.Priority] = a.Line
	}

	for _, c := range carrier.SortByPriority(persisted) {
		if _, listed := firstLine[c.CarrierID]; !listed {
			v.errs.Add(RowError{
				Store:   g.StoreKey,
				Column:  ColumnCarrierID,
				Code:    ErrCodeMissingCarrier,
				Message: fmt.Sprintf("persisted carrier '%s' is missing from the upload", c.CarrierID),
				Value:   c.CarrierID,
			})
		}
	}
}

// Err returns nil if no check failed, otherwise an *ImportValidationError listing every failure.
func (v *UploadValidator) Err() error {
	return v.errs.Err()
}
