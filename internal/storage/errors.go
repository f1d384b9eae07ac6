package storage

import "errors"

var (
	// ErrNotFound means no record matched the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means the record's key is already stored. Transition,
	// decision, snapshot and audit logs are append-only.
	ErrDuplicateKey = errors.New("duplicate key in append-only store")

	// ErrInvalidInput means a record failed validation before reaching the backend.
	ErrInvalidInput = errors.New("invalid store input")
)
