package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write would create a second active session for a plate.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict is returned when a concurrent writer holds the record or the
	// storage engine reports a retryable lock or serialization failure.
	ErrConflict = errors.New("persistence: conflict")
	// ErrConstraintViolation is returned when a record breaks a schema constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
