package migration

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteConfig_DSN(t *testing.T) {
	cfg := DefaultSQLiteConfig("/var/lib/parking/parking.db")
	dsn := cfg.DSN()

	require.True(t, strings.HasPrefix(dsn, "file:/var/lib/parking/parking.db?"), dsn)

	query, err := url.ParseQuery(strings.SplitN(dsn, "?", 2)[1])
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"busy_timeout(5000)",
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"foreign_keys(1)",
	}, query["_pragma"])
}

func TestSQLiteConfig_ValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*SQLiteConfig)
		wantError string
	}{
		{name: "defaults are valid", mutate: func(*SQLiteConfig) {}},
		{name: "empty path", mutate: func(c *SQLiteConfig) { c.Path = " " }, wantError: "path cannot be empty"},
		{name: "negative busy timeout", mutate: func(c *SQLiteConfig) { c.BusyTimeout = -time.Second }, wantError: "busy timeout"},
		{name: "unknown journal mode", mutate: func(c *SQLiteConfig) { c.JournalMode = "FAST" }, wantError: "invalid journal mode"},
		{name: "unknown synchronous mode", mutate: func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }, wantError: "invalid synchronous mode"},
		{name: "negative pool size", mutate: func(c *SQLiteConfig) { c.MaxOpenConns = -1 }, wantError: "pool settings"},
		{
			name: "memory database with a pool",
			mutate: func(c *SQLiteConfig) {
				c.Path = MemoryPath
				c.MaxOpenConns = 4
			},
			wantError: "exactly one open connection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSQLiteConfig("parking.db")
			tt.mutate(&cfg)

			err := cfg.ValidateConfig()
			if tt.wantError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}
