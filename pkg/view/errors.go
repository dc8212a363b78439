package view

import "errors"

var (
	// ErrInvalidID is returned when a record identifier string cannot be
	// parsed into the store's native id type. It is raised at the call that
	// builds the stage, never deferred to materialization.
	ErrInvalidID = errors.New("invalid record id")

	// ErrNotImplemented is returned for selector kinds that are recognized
	// but not yet supported. Callers must treat it as a programming error.
	ErrNotImplemented = errors.New("not implemented")
)
