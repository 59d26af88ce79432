package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	assert.Equal(t, "", nilErr.Error())
	assert.Equal(t, "validation failed", (&ValidationError{}).Error())

	vErr := &ValidationError{}
	vErr.add("vehicleClass", "bad")
	vErr.add("licensePlate", "missing")
	assert.Equal(t, "validation failed: licensePlate, vehicleClass", vErr.Error())
	assert.True(t, vErr.HasErrors())
	assert.False(t, (&ValidationError{}).HasErrors())
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	cause := errors.New("database is locked")
	err := fmt.Errorf("outer: %w", &ConflictError{Op: "register entry", Err: cause})

	var cErr *ConflictError
	assert.True(t, errors.As(err, &cErr))
	assert.True(t, cErr.Retryable())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "register entry")
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: NewValidationError("field", "bad"), want: "validation"},
		{err: fmt.Errorf("wrap: %w", ErrNoActiveSession), want: "no_active_session"},
		{err: ErrDuplicateActiveSession, want: "duplicate_active_session"},
		{err: &ConflictError{Op: "x", Err: errors.New("busy")}, want: "conflict"},
		{err: ErrNotFound, want: "not_found"},
		{err: errors.New("other"), want: "unexpected"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "error %v", tt.err)
	}
}

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, custom, defaultLogger(custom))
	assert.Same(t, slog.Default(), defaultLogger(nil))
}
