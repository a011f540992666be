package csvimport

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/fulfillment/backend/internal/domain/carrier"
)

// Carrier exchange columns.
const (
	ColumnStoreName   = "store_name"
	ColumnAccountCode = "account_code"
	ColumnCarrierID   = "carrier_id"
	ColumnCarrierName = "carrier_name"
	ColumnStatus      = "status"
	ColumnWeightInKg  = "weight_in_kg"
	ColumnPriority    = "priority"
)

// ExportColumns is the fixed column order of an export.
var ExportColumns = []string{
	ColumnStoreName,
	ColumnAccountCode,
	ColumnCarrierID,
	ColumnCarrierName,
	ColumnStatus,
	ColumnWeightInKg,
	ColumnPriority,
}

// RequiredImportColumns must all be present in an upload header.
var RequiredImportColumns = []string{
	ColumnAccountCode,
	ColumnCarrierID,
	ColumnCarrierName,
	ColumnStatus,
	ColumnWeightInKg,
	ColumnPriority,
}

// CarrierCSVWriter writes export rows with every field quoted.
type CarrierCSVWriter struct {
	w   *bufio.Writer
	err error
}

// NewCarrierCSVWriter wraps w. Call Flush when done.
func NewCarrierCSVWriter(w io.Writer) *CarrierCSVWriter {
	return &CarrierCSVWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes ExportColumns.
func (cw *CarrierCSVWriter) WriteHeader() error {
	return cw.writeRecord(ExportColumns)
}

// WriteCarrier writes one carrier of the named store.
func (cw *CarrierCSVWriter) WriteCarrier(storeName string, c carrier.Carrier) error {
	weight := ""
	if c.WeightClass.Valid {
		weight = c.WeightClass.Decimal.String()
	}
	return cw.writeRecord([]string{
		storeName,
		c.StoreKey,
		c.CarrierID,
		c.Name,
		c.Status.String(),
		weight,
		strconv.Itoa(c.Priority),
	})
}

// Flush writes any buffered data and returns the first error seen.
func (cw *CarrierCSVWriter) Flush() error {
	if cw.err != nil {
		return cw.err
	}
	cw.err = cw.w.Flush()
	return cw.err
}

func (cw *CarrierCSVWriter) writeRecord(fields []string) error {
	if cw.err != nil {
		return cw.err
	}
	for i, f := range fields {
		if i > 0 {
			cw.w.WriteByte(',')
		}
		cw.w.WriteByte('"')
		cw.w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		cw.w.WriteByte('"')
	}
	_, cw.err = cw.w.WriteString("\r\n")
	return cw.err
}

// CarrierRow is one uploaded data row. Values are trimmed but otherwise unchecked.
type CarrierRow struct {
	Line        int
	StoreName   string
	StoreKey    string
	CarrierID   string
	CarrierName string
	Status      string
	WeightInKg  string
	Priority    string
}

// ReadCarrierRows parses an upload into rows. It fails on file-level problems only:
// encoding, malformed quoting, missing header columns or no data rows.
func ReadCarrierRows(r io.Reader, opts ...ParserOption) ([]CarrierRow, error) {
	p, err := NewCSVParser(r, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.ParseHeader(); err != nil {
		return nil, err
	}

	if missing := p.MissingHeaders(RequiredImportColumns...); len(missing) > 0 {
		errs := NewErrorCollection(0)
		for _, col := range missing {
			errs.Add(NewRowError(1, col, ErrCodeMissingColumn, "required column is missing from the header"))
		}
		return nil, errs.Err()
	}

	rows, err := p.ReadAllRows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}

	out := make([]CarrierRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, CarrierRow{
			Line:        row.LineNumber,
			StoreName:   row.Get(ColumnStoreName),
			StoreKey:    row.Get(ColumnAccountCode),
			CarrierID:   row.Get(ColumnCarrierID),
			CarrierName: row.Get(ColumnCarrierName),
			Status:      row.Get(ColumnStatus),
			WeightInKg:  row.Get(ColumnWeightInKg),
			Priority:    row.Get(ColumnPriority),
		})
	}
	return out, nil
}

// IsValidationError reports whether err rejects the upload content itself.
func IsValidationError(err error) bool {
	var ive *ImportValidationError
	return errors.As(err, &ive)
}
