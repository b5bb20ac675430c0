package storage

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup key.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a slug is already taken.
	ErrConflict = errors.New("data conflict")

	// ErrTargetNotFound is returned when a link references a missing asset or collection.
	ErrTargetNotFound = errors.New("target not found")
)
