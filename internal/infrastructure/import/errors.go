package csvimport

import (
	"fmt"
	"strings"

	"github.com/fulfillment/backend/internal/domain/shared"
)

// Import error codes
const (
	ErrCodeMissingColumn     = "ERR_IMPORT_MISSING_COLUMN"
	ErrCodeMalformedRow      = "ERR_IMPORT_MALFORMED_ROW"
	ErrCodeRequiredField     = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeInvalidPriority   = "ERR_IMPORT_INVALID_PRIORITY"
	ErrCodeDuplicateCarrier  = "ERR_IMPORT_DUPLICATE_CARRIER"
	ErrCodeDuplicatePriority = "ERR_IMPORT_DUPLICATE_PRIORITY"
	ErrCodeUnknownCarrier    = "ERR_IMPORT_UNKNOWN_CARRIER"
	ErrCodeMissingCarrier    = "ERR_IMPORT_MISSING_CARRIER"
	ErrCodeUnknownStore      = "ERR_IMPORT_UNKNOWN_STORE"
)

// File-level failures. They carry VALIDATION_ERROR so callers map them like row errors.
var (
	ErrEmptyFile       = shared.NewDomainError(shared.CodeValidation, "CSV file is empty")
	ErrInvalidEncoding = shared.NewDomainError(shared.CodeValidation, "CSV file is not valid UTF-8")
	ErrMissingHeader   = shared.NewDomainError(shared.CodeValidation, "CSV file missing header row")
	ErrNoDataRows      = shared.NewDomainError(shared.CodeValidation, "CSV file contains no data rows")
	ErrFileTooLarge    = shared.NewDomainError(shared.CodeValidation, "file exceeds maximum allowed size")

	errImportRejected = shared.NewDomainError(shared.CodeValidation, "CSV import rejected")
)

// RowError is one problem found in an upload. Row is the 1-based line in the file, or 0
// when the problem concerns a whole store group.
type RowError struct {
	Row     int    `json:"row,omitempty"`
	Store   string `json:"store,omitempty"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	var where []string
	if e.Store != "" {
		where = append(where, fmt.Sprintf("store %s", e.Store))
	}
	if e.Row > 0 {
		where = append(where, fmt.Sprintf("row %d", e.Row))
	}
	if e.Column != "" {
		where = append(where, fmt.Sprintf("column '%s'", e.Column))
	}
	if len(where) == 0 {
		return e.Message
	}
	return strings.Join(where, ", ") + ": " + e.Message
}

// NewRowError creates a new RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{
		Row:     row,
		Column:  column,
		Code:    code,
		Message: message,
	}
}

// ErrorCollection accumulates RowErrors. A zero maxErrors keeps everything.
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors < 0 {
		maxErrors = 0
	}
	return &ErrorCollection{maxErrors: maxErrors}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if ec.maxErrors == 0 || len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddRequiredError records an empty mandatory field.
func (ec *ErrorCollection) AddRequiredError(row int, store, column string) {
	ec.Add(RowError{
		Row:     row,
		Store:   store,
		Column:  column,
		Code:    ErrCodeRequiredField,
		Message: fmt.Sprintf("field '%s' is required", column),
	})
}

// AddDuplicateError records a value repeated inside one store group.
func (ec *ErrorCollection) AddDuplicateError(row int, store, column, code, value string, firstRow int) {
	ec.Add(RowError{
		Row:     row,
		Store:   store,
		Column:  column,
		Code:    code,
		Message: fmt.Sprintf("duplicate value '%s' (first seen on row %d)", value, firstRow),
		Value:   value,
	})
}

// AddReferenceError records a value with no persisted counterpart.
func (ec *ErrorCollection) AddReferenceError(row int, store, column, code, value, refType string) {
	ec.Add(RowError{
		Row:     row,
		Store:   store,
		Column:  column,
		Code:    code,
		Message: fmt.Sprintf("%s '%s' not found", refType, value),
		Value:   value,
	})
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount includes errors dropped by the limit.
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.maxErrors > 0 && ec.totalCount > ec.maxErrors
}

// Err returns nil when the collection is empty, otherwise an *ImportValidationError.
func (ec *ErrorCollection) Err() error {
	if !ec.HasErrors() {
		return nil
	}
	out := make([]RowError, len(ec.errors))
	copy(out, ec.errors)
	return &ImportValidationError{Errors: out, Total: ec.totalCount}
}

// ImportValidationError rejects a whole upload. Nothing has been written when it is returned.
type ImportValidationError struct {
	Errors []RowError
	Total  int
}

func (e *ImportValidationError) Error() string {
	total := e.Total
	if total < len(e.Errors) {
		total = len(e.Errors)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "csv import rejected: %d error(s)", total)
	for _, re := range e.Errors {
		sb.WriteString("; ")
		sb.WriteString(re.Error())
	}
	return sb.String()
}

// Unwrap exposes the VALIDATION_ERROR domain code.
func (e *ImportValidationError) Unwrap() error {
	return errImportRejected
}

// Stores returns the distinct store keys named by the errors, in order of appearance.
func (e *ImportValidationError) Stores() []string {
	seen := make(map[string]bool)
	var stores []string
	for _, re := range e.Errors {
		if re.Store != "" && !seen[re.Store] {
			seen[re.Store] = true
			stores = append(stores, re.Store)
		}
	}
	return stores
}
