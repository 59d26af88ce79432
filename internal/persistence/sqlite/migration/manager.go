package migration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

type migrationManager struct {
	scanner  FileScanner
	executor Executor
	logger   *slog.Logger
}

// NewMigrationManager creates a MigrationManager. A nil logger discards output.
func NewMigrationManager(scanner FileScanner, executor Executor, logger *slog.Logger) MigrationManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &migrationManager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With("component", "sqlite_migration"),
	}
}

// RunMigrations executes all pending migrations in sequential order.
func (m *migrationManager) RunMigrations(ctx context.Context) error {
	startTime := time.Now()

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, migration := range pending {
		migrationStart := time.Now()
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"total", len(pending),
		)

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		elapsed := time.Since(migrationStart)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "record migration", err)
		}
	}

	m.logger.InfoContext(ctx, "migrations applied",
		"count", len(pending),
		"duration", time.Since(startTime),
	)
	return nil
}

// GetPendingMigrations returns migrations not yet applied, after checking that
// every applied version still matches its file.
func (m *migrationManager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	return status.PendingMigrations, nil
}

// GetMigrationStatus summarises applied and pending migrations.
func (m *migrationManager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, err
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateApplied(available, applied); err != nil {
		return nil, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	for _, record := range applied {
		appliedSet[record.Version] = struct{}{}
	}

	status := &MigrationStatus{AppliedMigrations: applied}
	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; ok {
			continue
		}
		status.PendingMigrations = append(status.PendingMigrations, migration)
	}
	status.PendingCount = len(status.PendingMigrations)
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}

	return status, nil
}

func validateApplied(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[string]Migration, len(available))
	for _, migration := range available {
		byVersion[migration.Version] = migration
	}

	for _, record := range applied {
		migration, ok := byVersion[record.Version]
		if !ok {
			return NewMigrationError(record.Version, "", "validate sequence", ErrUnknownVersion)
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return NewMigrationError(record.Version, migration.FilePath, "validate checksum", ErrChecksumMismatch)
		}
	}

	return nil
}
