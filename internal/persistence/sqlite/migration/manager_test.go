package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenDatabase(context.Background(), TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationManager_RunMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	fsys := mapFS(map[string]string{
		"001_create_widgets.sql": "CREATE TABLE widgets (id TEXT PRIMARY KEY);",
		"002_add_name.sql":       "ALTER TABLE widgets ADD COLUMN name TEXT;\nCREATE INDEX ix_widgets_name ON widgets (name);",
	})
	manager := NewMigrationManager(NewFileScanner(fsys, "."), NewSQLiteExecutor(db), nil)

	require.NoError(t, manager.RunMigrations(ctx))

	_, err := db.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES ('w1', 'first')")
	require.NoError(t, err)

	status, err := manager.GetMigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002", status.CurrentVersion)
	assert.Zero(t, status.PendingCount)
	require.Len(t, status.AppliedMigrations, 2)

	t.Run("second run is a no-op", func(t *testing.T) {
		require.NoError(t, manager.RunMigrations(ctx))
	})
}

func TestMigrationManager_RollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	fsys := mapFS(map[string]string{
		"001_create_widgets.sql": "CREATE TABLE widgets (id TEXT PRIMARY KEY);\nINSERT INTO missing_table VALUES (1);",
	})
	manager := NewMigrationManager(NewFileScanner(fsys, "."), NewSQLiteExecutor(db), nil)

	err := manager.RunMigrations(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMigrationFailed))

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'widgets'").Scan(&name)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	pending, err := manager.GetPendingMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMigrationManager_DetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	original := mapFS(map[string]string{"001_create_widgets.sql": "CREATE TABLE widgets (id TEXT PRIMARY KEY);"})
	require.NoError(t, NewMigrationManager(NewFileScanner(original, "."), NewSQLiteExecutor(db), nil).RunMigrations(ctx))

	edited := mapFS(map[string]string{"001_create_widgets.sql": "CREATE TABLE widgets (id INTEGER PRIMARY KEY);"})
	err := NewMigrationManager(NewFileScanner(edited, "."), NewSQLiteExecutor(db), nil).RunMigrations(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	removed := mapFS(map[string]string{"002_other.sql": "CREATE TABLE other (id TEXT);"})
	err = NewMigrationManager(NewFileScanner(removed, "."), NewSQLiteExecutor(db), nil).RunMigrations(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVersion))
}
