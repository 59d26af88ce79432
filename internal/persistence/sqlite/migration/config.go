package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteConfig holds SQLite-specific database configuration.
type SQLiteConfig struct {
	// Path is the database file path or MemoryPath.
	Path string

	// BusyTimeout sets how long a connection waits for a competing writer.
	BusyTimeout time.Duration

	EnableForeignKeys bool

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string

	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF)
	Synchronous string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the modernc.org/sqlite connection string. Pragmas are passed as
// _pragma parameters so every pooled connection receives them.
func (c SQLiteConfig) DSN() string {
	params := url.Values{}
	pragma := func(name string, value any) {
		params.Add("_pragma", fmt.Sprintf("%s(%v)", name, value))
	}

	pragma("busy_timeout", c.BusyTimeout.Milliseconds())
	if c.JournalMode != "" {
		pragma("journal_mode", c.JournalMode)
	}
	if c.Synchronous != "" {
		pragma("synchronous", c.Synchronous)
	}
	if c.EnableForeignKeys {
		pragma("foreign_keys", 1)
	}

	return "file:" + c.Path + "?" + params.Encode()
}

// ValidateConfig validates the SQLite configuration.
func (c SQLiteConfig) ValidateConfig() error {
	var problems []string

	if strings.TrimSpace(c.Path) == "" {
		problems = append(problems, "path cannot be empty")
	}
	if c.BusyTimeout < 0 {
		problems = append(problems, "busy timeout cannot be negative")
	}

	validJournalModes := map[string]bool{"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true}
	if c.JournalMode != "" && !validJournalModes[c.JournalMode] {
		problems = append(problems, fmt.Sprintf("invalid journal mode: %s", c.JournalMode))
	}

	validSyncModes := map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
	if c.Synchronous != "" && !validSyncModes[c.Synchronous] {
		problems = append(problems, fmt.Sprintf("invalid synchronous mode: %s", c.Synchronous))
	}

	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		problems = append(problems, "connection pool settings cannot be negative")
	}
	if c.Path == MemoryPath && c.MaxOpenConns != 1 {
		problems = append(problems, "in-memory databases require exactly one open connection")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// OpenDatabase validates the configuration, creates the database directory and
// returns a pinged connection pool.
func OpenDatabase(ctx context.Context, config SQLiteConfig) (*sql.DB, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}

	if config.Path != MemoryPath {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return db, nil
}

// DefaultSQLiteConfig returns a file-backed configuration tuned for a single
// service process with concurrent readers and one writer at a time.
func DefaultSQLiteConfig(databasePath string) SQLiteConfig {
	return SQLiteConfig{
		Path:              databasePath,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      16,
		MaxIdleConns:      4,
		ConnMaxLifetime:   30 * time.Minute,
	}
}

// TempFileTestSQLiteConfig returns a configuration for temporary file-based tests.
func TempFileTestSQLiteConfig(tempFilePath string) SQLiteConfig {
	return SQLiteConfig{
		Path:              tempFilePath,
		BusyTimeout:       10 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "OFF",
		MaxOpenConns:      8,
		MaxIdleConns:      2,
		ConnMaxLifetime:   time.Minute,
	}
}
