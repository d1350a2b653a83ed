package dataset

import "errors"

// Sentinel kinds for dataset loading errors.
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrMalformedInput    = errors.New("malformed input")
	ErrTooLarge          = errors.New("input exceeds size limit")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
