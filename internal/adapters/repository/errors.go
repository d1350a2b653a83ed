package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("dataset not found")
	ErrClosed   = errors.New("store is closed")
)
