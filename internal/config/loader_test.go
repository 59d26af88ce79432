package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PARKING_HTTP_ADDR",
	"PARKING_SHUTDOWN_TIMEOUT",
	"PARKING_STORE_DRIVER",
	"PARKING_SQLITE_PATH",
	"PARKING_SQLITE_BUSY_TIMEOUT",
	"PARKING_POSTGRES_URL",
	"PARKING_POSTGRES_MAX_CONNS",
	"PARKING_POSTGRES_LOCK_TIMEOUT",
	"PARKING_DEFAULT_CAPACITY",
	"PARKING_IMPORT_BATCH_SIZE",
	"PARKING_LOG_LEVEL",
	"PARKING_LOG_FORMAT",
	EnvFileVariable,
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, DriverSQLite, cfg.StoreDriver)
		assert.Equal(t, "parking.db", cfg.SQLitePath)
		assert.Equal(t, 5*time.Second, cfg.SQLiteBusyTimeout)
		assert.Equal(t, 100, cfg.DefaultCapacity)
		assert.Equal(t, 10, cfg.ImportBatchSize)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("reads overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PARKING_HTTP_ADDR", "127.0.0.1:9000")
		t.Setenv("PARKING_STORE_DRIVER", "postgres")
		t.Setenv("PARKING_POSTGRES_URL", "postgres://localhost/parking")
		t.Setenv("PARKING_DEFAULT_CAPACITY", "0")
		t.Setenv("PARKING_IMPORT_BATCH_SIZE", "250")
		t.Setenv("PARKING_LOG_FORMAT", "text")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
		assert.Equal(t, DriverPostgres, cfg.StoreDriver)
		assert.Equal(t, "postgres://localhost/parking", cfg.PostgresURL)
		assert.Equal(t, 0, cfg.DefaultCapacity)
		assert.Equal(t, 250, cfg.ImportBatchSize)
	})

	t.Run("postgres driver requires a url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PARKING_STORE_DRIVER", "postgres")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "config: missing required environment variables: PARKING_POSTGRES_URL", err.Error())
	})

	t.Run("names every invalid variable", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PARKING_STORE_DRIVER", "mysql")
		t.Setenv("PARKING_DEFAULT_CAPACITY", "-1")
		t.Setenv("PARKING_IMPORT_BATCH_SIZE", "0")
		t.Setenv("PARKING_LOG_LEVEL", "chatty")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t,
			"config: invalid environment variable values: PARKING_STORE_DRIVER, PARKING_DEFAULT_CAPACITY, PARKING_IMPORT_BATCH_SIZE, PARKING_LOG_LEVEL",
			err.Error())
	})

	t.Run("rejects unparsable values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PARKING_SHUTDOWN_TIMEOUT", "soon")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("loads env file", func(t *testing.T) {
		clearEnv(t)

		path := filepath.Join(t.TempDir(), "parking.env")
		require.NoError(t, os.WriteFile(path, []byte("PARKING_DEFAULT_CAPACITY=42\nPARKING_SQLITE_PATH=/tmp/from-file.db\n"), 0o600))
		t.Setenv(EnvFileVariable, path)
		t.Cleanup(func() {
			_ = os.Unsetenv("PARKING_DEFAULT_CAPACITY")
			_ = os.Unsetenv("PARKING_SQLITE_PATH")
		})

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 42, cfg.DefaultCapacity)
		assert.Equal(t, "/tmp/from-file.db", cfg.SQLitePath)
	})

	t.Run("missing env file is an error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvFileVariable, filepath.Join(t.TempDir(), "absent.env"))

		_, err := Load()
		assert.Error(t, err)
	})
}
