package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoActiveSession is returned when an exit is registered for a plate that is not parked.
	ErrNoActiveSession = errors.New("application: no active session")
	// ErrDuplicateActiveSession is returned when an entry is registered for a plate that is already parked.
	ErrDuplicateActiveSession = errors.New("application: duplicate active session")
	// ErrNotFound is returned when a record vanished between lookup and write.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// ConflictError reports that a concurrent writer held the data an operation
// needed. The operation had no effect and may be retried.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("application: %s: concurrent modification: %v", e.Op, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
func (e *ConflictError) Retryable() bool {
	return true
}
