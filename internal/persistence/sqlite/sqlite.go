// Package sqlite implements the parking session store on SQLite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/parking-occupancy/internal/persistence"
	"github.com/example/parking-occupancy/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var _ persistence.Store = (*Storage)(nil)

// Storage is the SQLite-backed persistence.Store.
type Storage struct {
	*SessionRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database described by config. Call Migrate before use
// on a fresh database.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		SessionRepository: NewSessionRepository(pool),
		pool:              pool,
		logger:            logger,
	}, nil
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migrationFS, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
