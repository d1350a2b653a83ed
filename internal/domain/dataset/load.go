package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Option applies a configuration option to the loader.
type Option func(*loader)

// WithMaxRows bounds the number of data rows parsed; 0 means unlimited.
func WithMaxRows(n int) Option {
	return func(l *loader) {
		if n >= 0 {
			l.maxRows = n
		}
	}
}

// WithMaxBytes bounds the accepted input size; 0 means unlimited.
func WithMaxBytes(n int64) Option {
	return func(l *loader) {
		if n >= 0 {
			l.maxBytes = n
		}
	}
}

// WithDelimiter forces the CSV delimiter instead of auto-detecting it.
func WithDelimiter(r rune) Option {
	return func(l *loader) {
		l.delimiter = r
	}
}

type loader struct {
	maxRows   int
	maxBytes  int64
	delimiter rune
}

// Load reads a tabular file into a Dataset, dispatching on the extension:
// .csv/.tsv via encoding/csv, .xlsx via the embedded worksheet reader.
func Load(name string, r io.Reader, opts ...Option) (*Dataset, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	data, err := l.readAll(r)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", "":
		return l.loadCSV(name, data)
	case ".xlsx":
		return l.loadXLSX(name, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func (l *loader) readAll(r io.Reader) ([]byte, error) {
	if l.maxBytes > 0 {
		r = io.LimitReader(r, l.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: body larger than %d bytes", ErrTooLarge, l.maxBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}
	return data, nil
}

func (l *loader) loadCSV(name string, data []byte) (*Dataset, error) {
	delim := l.delimiter
	if delim == 0 {
		delim = detectDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.FieldsPerRecord = -1 // tolerate ragged rows; New() pads them
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		rows = append(rows, record)
		if l.maxRows > 0 && len(rows) >= l.maxRows {
			break
		}
	}

	return New(name, header, rows), nil
}

// detectDelimiter picks the delimiter with the most occurrences on the first
// line, among comma, semicolon and tab.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	if n := bytes.Count(line, []byte{';'}); n > bestCount {
		best, bestCount = ';', n
	}
	if n := bytes.Count(line, []byte{'\t'}); n > bestCount {
		best = '\t'
	}
	return rune(best)
}
