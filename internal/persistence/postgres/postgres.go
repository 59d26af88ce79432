// Package postgres implements the parking session store on PostgreSQL using
// a pgx connection pool. Schema changes are applied with goose.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/example/parking-occupancy/internal/persistence"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var _ persistence.Store = (*Storage)(nil)

var errReadOnlyTransaction = errors.New("postgres: write attempted inside a read-only snapshot")

// Storage is the Postgres-backed persistence.Store.
type Storage struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	lockTimeout time.Duration
	now         func() time.Time
}

// Open connects to Postgres. Call Migrate before use on a fresh database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Storage{
		pool:        pool,
		logger:      logger,
		lockTimeout: cfg.LockTimeout,
		now:         time.Now,
	}, nil
}

// Migrate applies pending goose migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToMigrate, err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToMigrate, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToMigrate, err)
	}
	for _, result := range results {
		s.logger.InfoContext(ctx, "migration applied",
			slog.Int64("version", result.Source.Version),
			slog.Duration("duration", result.Duration),
		)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// WithinUnitOfWork runs fn inside a read-committed write transaction. Calls
// made with the context passed to fn join it; a nested call reuses the outer
// transaction.
func (s *Storage) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error {
	if state, ok := txFromContext(ctx); ok {
		if !state.writable {
			return errReadOnlyTransaction
		}
		return fn(ctx)
	}

	return s.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}, true, fn)
}

// WithinSnapshot runs fn inside a repeatable-read, read-only transaction so
// every query sees the same snapshot.
func (s *Storage) WithinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	return s.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, false, fn)
}

func (s *Storage) runTx(ctx context.Context, opts pgx.TxOptions, writable bool, fn func(ctx context.Context) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return mapError("begin transaction", err)
	}

	if writable && s.lockTimeout > 0 {
		query := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, query); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return mapError("set lock timeout", err)
		}
	}

	if err := fn(withTx(ctx, &txState{tx: tx, writable: writable})); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.WarnContext(ctx, "rollback failed", slog.Any("error", rbErr))
		}
		return err
	}

	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Storage) reader(ctx context.Context) querier {
	if state, ok := txFromContext(ctx); ok {
		return state.tx
	}
	return s.pool
}

func (s *Storage) writer(ctx context.Context) (querier, error) {
	if state, ok := txFromContext(ctx); ok {
		if !state.writable {
			return nil, errReadOnlyTransaction
		}
		return state.tx, nil
	}
	return s.pool, nil
}

// lockRows reports whether reads in ctx should take row locks.
func lockRows(ctx context.Context) bool {
	state, ok := txFromContext(ctx)
	return ok && state.writable
}
