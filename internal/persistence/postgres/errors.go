package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/parking-occupancy/internal/persistence"
)

// SQLSTATE codes mapped to persistence errors.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s: %w", op, persistence.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("postgres: %s: %w: %v", op, persistence.ErrDuplicate, err)
		case codeCheckViolation, codeNotNullViolation:
			return fmt.Errorf("postgres: %s: %w: %v", op, persistence.ErrConstraintViolation, err)
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("postgres: %s: %w: %v", op, persistence.ErrConflict, err)
		}
	}

	return fmt.Errorf("postgres: %s: %w", op, err)
}
