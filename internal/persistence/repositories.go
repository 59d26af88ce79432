package persistence

import (
	"context"
	"time"
)

// SessionRepository stores parking sessions and answers occupancy queries.
//
// Calls made with the context handed to a WithinUnitOfWork or WithinSnapshot
// callback run inside that transaction.
type SessionRepository interface {
	FindActiveByPlate(ctx context.Context, plate string) (ParkingSession, error)
	Insert(ctx context.Context, session ParkingSession) (ParkingSession, error)
	InsertBatch(ctx context.Context, sessions []ParkingSession) (BatchResult, error)
	Update(ctx context.Context, session ParkingSession) (ParkingSession, error)
	CountActive(ctx context.Context) (int64, error)
	CountCompleted(ctx context.Context) (int64, error)
	// AverageDurationSeconds returns ok=false when no completed session entered within [start, end].
	AverageDurationSeconds(ctx context.Context, start, end time.Time) (avg float64, ok bool, err error)
	FindByEntryTimeRange(ctx context.Context, start, end time.Time) ([]ParkingSession, error)

	WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error
	WithinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is a SessionRepository with lifecycle management.
type Store interface {
	SessionRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
