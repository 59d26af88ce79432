package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/parking-occupancy/internal/config"
	"github.com/example/parking-occupancy/internal/persistence"
	"github.com/example/parking-occupancy/internal/persistence/postgres"
	"github.com/example/parking-occupancy/internal/persistence/sqlite"
	"github.com/example/parking-occupancy/internal/persistence/sqlite/migration"
)

// openStore connects to the configured backend and applies migrations.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	var (
		store persistence.Store
		err   error
	)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig(cfg.PostgresURL)
		pgCfg.MaxConns = cfg.PostgresMaxConns
		pgCfg.LockTimeout = cfg.PostgresLockTimeout
		store, err = postgres.Open(ctx, pgCfg, logger)
	default:
		sqliteCfg := migration.DefaultSQLiteConfig(cfg.SQLitePath)
		sqliteCfg.BusyTimeout = cfg.SQLiteBusyTimeout
		store, err = sqlite.Open(ctx, sqliteCfg, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.StoreDriver, err)
	}
	return store, nil
}
