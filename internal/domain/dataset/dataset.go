// Package dataset contains the in-memory tabular representation of an
// uploaded file and its loaders.
package dataset

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind is the inferred scalar type of a column.
type Kind int

// Column kinds, in inference precedence order.
const (
	KindText Kind = iota
	KindNumeric
	KindBoolean
	KindDatetime
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindDatetime:
		return "datetime"
	default:
		return "text"
	}
}

// Column describes one named column and its inferred kind.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"-"`
}

// inferSampleSize bounds how many non-missing values type inference reads
// per column.
const inferSampleSize = 1000

// missingTokens are treated as missing values in addition to the empty string.
var missingTokens = map[string]struct{}{
	"na": {}, "n/a": {}, "null": {}, "nil": {}, "none": {}, "nan": {}, "-": {},
}

// datetimeLayouts are tried in order when parsing datetime cells.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
}

// Dataset is an immutable-once-built table. Cells are kept as raw strings;
// typed access goes through Float/Bool/Time helpers.
type Dataset struct {
	name     string
	columns  []Column
	cells    [][]string // row-major
	checksum uint64
}

// New builds a Dataset from a header and row-major cells. Short rows are
// padded with missing cells so every row has len(header) columns. Column
// kinds are inferred from the data.
func New(name string, header []string, rows [][]string) *Dataset {
	cols := make([]Column, len(header))
	for i, h := range header {
		cols[i] = Column{Name: strings.TrimSpace(h)}
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		} else if len(row) > len(header) {
			row = row[:len(header)]
		}
		cells[r] = row
	}
	d := &Dataset{name: name, columns: cols, cells: cells}
	for i := range d.columns {
		d.columns[i].Kind = d.inferKind(i)
	}
	d.checksum = d.computeChecksum()
	return d
}

// Name returns the dataset's source name (typically the uploaded filename).
func (d *Dataset) Name() string { return d.name }

// Rows returns the number of data rows.
func (d *Dataset) Rows() int { return len(d.cells) }

// Cols returns the number of columns.
func (d *Dataset) Cols() int { return len(d.columns) }

// Columns returns the column descriptors in order.
func (d *Dataset) Columns() []Column { return d.columns }

// Value returns the raw cell string.
func (d *Dataset) Value(row, col int) string { return d.cells[row][col] }

// IsMissing reports whether the cell holds a null-equivalent token.
func (d *Dataset) IsMissing(row, col int) bool {
	return isMissingToken(d.cells[row][col])
}

// Float parses the cell as a number. The second return is false for missing
// or unparseable cells. Thousands separators are stripped the same way the
// kind inference strips them, so a column inferred numeric stays readable
// as numeric.
func (d *Dataset) Float(row, col int) (float64, bool) {
	v := strings.TrimSpace(d.cells[row][col])
	if isMissingToken(v) {
		return 0, false
	}
	f, err := cast.ToFloat64E(normalizeNumeric(v))
	if err != nil {
		return 0, false
	}
	return f, true
}

// normalizeNumeric strips thousands separators so "1,234.5" parses.
func normalizeNumeric(v string) string {
	return strings.ReplaceAll(v, ",", "")
}

// Bool parses the cell as a boolean token.
func (d *Dataset) Bool(row, col int) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(d.cells[row][col]))
	switch v {
	case "true", "t", "yes", "y":
		return true, true
	case "false", "f", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// Time parses the cell against the supported datetime layouts.
func (d *Dataset) Time(row, col int) (time.Time, bool) {
	v := strings.TrimSpace(d.cells[row][col])
	if isMissingToken(v) {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RowKey returns a hash key identifying the full row content, used for
// duplicate-row detection.
func (d *Dataset) RowKey(row int) uint64 {
	h := fnv.New64a()
	for _, cell := range d.cells[row] {
		_, _ = h.Write([]byte(cell))
		_, _ = h.Write([]byte{0x1f})
	}
	return h.Sum64()
}

// Checksum identifies the dataset content, used for upload idempotency.
func (d *Dataset) Checksum() uint64 { return d.checksum }

func (d *Dataset) computeChecksum() uint64 {
	h := fnv.New64a()
	for _, c := range d.columns {
		_, _ = h.Write([]byte(c.Name))
		_, _ = h.Write([]byte{0x1f})
	}
	_, _ = h.Write([]byte{0x1e})
	for r := range d.cells {
		for _, cell := range d.cells[r] {
			_, _ = h.Write([]byte(cell))
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte{0x1e})
	}
	return h.Sum64()
}

// MissingCount returns the number of missing cells in the column.
func (d *Dataset) MissingCount(col int) int {
	n := 0
	for r := range d.cells {
		if d.IsMissing(r, col) {
			n++
		}
	}
	return n
}

// inferKind votes on a sample of non-missing values. A kind wins when it
// parses more than half of the sample; text is the fallback.
func (d *Dataset) inferKind(col int) Kind {
	var sampled, numeric, boolean, datetime int
	for r := 0; r < len(d.cells) && sampled < inferSampleSize; r++ {
		v := strings.TrimSpace(d.cells[r][col])
		if isMissingToken(v) {
			continue
		}
		sampled++
		if _, ok := d.Bool(r, col); ok {
			boolean++
			continue
		}
		if _, err := strconv.ParseFloat(normalizeNumeric(v), 64); err == nil {
			numeric++
			continue
		}
		if _, ok := d.Time(r, col); ok {
			datetime++
		}
	}
	if sampled == 0 {
		return KindText
	}
	half := sampled / 2
	switch {
	case numeric > half:
		return KindNumeric
	case boolean > half:
		return KindBoolean
	case datetime > half:
		return KindDatetime
	default:
		return KindText
	}
}

// ConformsToKind reports whether the cell value parses as the column's
// inferred kind. Missing cells conform vacuously.
func (d *Dataset) ConformsToKind(row, col int) bool {
	if d.IsMissing(row, col) {
		return true
	}
	switch d.columns[col].Kind {
	case KindNumeric:
		_, ok := d.Float(row, col)
		return ok
	case KindBoolean:
		_, ok := d.Bool(row, col)
		return ok
	case KindDatetime:
		_, ok := d.Time(row, col)
		return ok
	default:
		return true
	}
}

func isMissingToken(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	_, ok := missingTokens[v]
	return ok
}
