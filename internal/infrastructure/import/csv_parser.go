package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSize bounds how much of an upload is read into memory.
const DefaultMaxFileSize int64 = 10 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVParser reads RFC4180 CSV content with a header row.
// Header names are matched case-insensitively.
type CSVParser struct {
	delimiter   rune
	lazyQuotes  bool
	maxFileSize int64
	headerMap   map[string]int
	headers     []string
	currentLine int
	reader      *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes relaxes quote handling. Off by default.
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) ParserOption {
	return func(p *CSVParser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// NewCSVParser buffers r, strips a UTF-8 BOM and rejects content that is not valid UTF-8.
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	parser := &CSVParser{
		delimiter:   ',',
		maxFileSize: DefaultMaxFileSize,
		headerMap:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(parser)
	}

	content, err := io.ReadAll(io.LimitReader(r, parser.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(content)) > parser.maxFileSize {
		return nil, ErrFileTooLarge
	}

	content = bytes.TrimPrefix(content, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidEncoding
	}

	parser.reader = csv.NewReader(bytes.NewReader(content))
	parser.reader.Comma = parser.delimiter
	parser.reader.LazyQuotes = parser.lazyQuotes
	parser.reader.FieldsPerRecord = -1

	return parser, nil
}

// ParseFromBytes is NewCSVParser over an in-memory buffer.
func ParseFromBytes(data []byte, opts ...ParserOption) (*CSVParser, error) {
	return NewCSVParser(bytes.NewReader(data), opts...)
}

// ParseHeader reads the first record as the header row.
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return malformed(err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		name := normalizeHeader(h)
		p.headers[i] = name
		if _, seen := p.headerMap[name]; !seen && name != "" {
			p.headerMap[name] = i
		}
	}
	if len(p.headerMap) == 0 {
		return ErrMissingHeader
	}
	p.currentLine, _ = p.reader.FieldPos(0)

	return nil
}

// Headers returns the normalized header names in file order.
func (p *CSVParser) Headers() []string {
	return p.headers
}

// HasHeader reports whether the header row contains name.
func (p *CSVParser) HasHeader(name string) bool {
	_, ok := p.headerMap[normalizeHeader(name)]
	return ok
}

// MissingHeaders returns the names from required absent from the header row, in the given order.
func (p *CSVParser) MissingHeaders(required ...string) []string {
	var missing []string
	for _, name := range required {
		if !p.HasHeader(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Row is one data record keyed by header name.
type Row struct {
	LineNumber int
	Data       map[string]string
	RawFields  []string
}

// Get returns the trimmed value for column, or "" when the row is short.
func (r *Row) Get(column string) string {
	return r.Data[normalizeHeader(column)]
}

// IsEmpty reports whether every field is blank.
func (r *Row) IsEmpty() bool {
	for _, f := range r.RawFields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ReadRow returns the next record, or io.EOF when the input is exhausted.
func (p *CSVParser) ReadRow() (*Row, error) {
	if p.headers == nil {
		return nil, ErrMissingHeader
	}
	record, err := p.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, malformed(err)
	}

	line, _ := p.reader.FieldPos(0)
	p.currentLine = line

	row := &Row{
		LineNumber: line,
		Data:       make(map[string]string, len(p.headerMap)),
		RawFields:  record,
	}
	for name, idx := range p.headerMap {
		if idx < len(record) {
			row.Data[name] = strings.TrimSpace(record[idx])
		}
	}
	return row, nil
}

// ReadAllRows reads every remaining record, skipping blank lines.
func (p *CSVParser) ReadAllRows() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}

// CurrentLine is the line number of the last record read.
func (p *CSVParser) CurrentLine() int {
	return p.currentLine
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func malformed(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ImportValidationError{Errors: []RowError{
			NewRowError(pe.Line, "", ErrCodeMalformedRow, pe.Err.Error()),
		}}
	}
	return fmt.Errorf("failed to read csv: %w", err)
}
