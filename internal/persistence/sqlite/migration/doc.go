// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files are named {version}_{description}.sql and are read from an
// fs.FS, usually an embedded directory. Applied versions are tracked in the
// schema_migrations table together with a checksum of the file contents, so a
// migration that was edited after being applied is reported instead of being
// silently skipped.
//
// Example usage:
//
//	manager := migration.NewMigrationManager(
//		migration.NewFileScanner(migrationFS, "."),
//		migration.NewSQLiteExecutor(db),
//		logger,
//	)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
