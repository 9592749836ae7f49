// Package storage defines the persistence interfaces shared by the memory,
// file, Postgres, ClickHouse and Redis backends.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record, fit or checkpoint does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a key is already stored. Records are
	// keyed by content hash and fits by (run, pair, feature); neither is
	// ever overwritten.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for nil values or missing keys.
	ErrInvalidInput = errors.New("invalid input")
)
