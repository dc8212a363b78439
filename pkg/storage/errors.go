package storage

import "errors"

var (
	// ErrNotFound is returned by identity lookups that match no record.
	ErrNotFound = errors.New("record not found")
)
