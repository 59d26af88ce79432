// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/example/parking-occupancy/internal/logging"
)

// Store drivers accepted in PARKING_STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// EnvFileVariable names a dotenv file to load before parsing. When unset, a
// .env file in the working directory is loaded if present.
const EnvFileVariable = "PARKING_ENV_FILE"

// Config captures environment driven configuration values for the parking service.
type Config struct {
	HTTPAddr        string        `env:"PARKING_HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"PARKING_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StoreDriver       string        `env:"PARKING_STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath        string        `env:"PARKING_SQLITE_PATH" envDefault:"parking.db"`
	SQLiteBusyTimeout time.Duration `env:"PARKING_SQLITE_BUSY_TIMEOUT" envDefault:"5s"`

	PostgresURL         string        `env:"PARKING_POSTGRES_URL"`
	PostgresMaxConns    int32         `env:"PARKING_POSTGRES_MAX_CONNS" envDefault:"10"`
	PostgresLockTimeout time.Duration `env:"PARKING_POSTGRES_LOCK_TIMEOUT" envDefault:"5s"`

	DefaultCapacity int `env:"PARKING_DEFAULT_CAPACITY" envDefault:"100"`
	ImportBatchSize int `env:"PARKING_IMPORT_BATCH_SIZE" envDefault:"10"`

	LogLevel  string `env:"PARKING_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PARKING_LOG_FORMAT" envDefault:"json"`
}

// Load parses configuration values from the current process environment.
//
// Defaults apply to unset optional variables. Every missing or invalid
// variable is named in the returned error.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c Config) Validate() error {
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if strings.TrimSpace(c.HTTPAddr) == "" {
		invalid = append(invalid, "PARKING_HTTP_ADDR")
	}
	if c.ShutdownTimeout <= 0 {
		invalid = append(invalid, "PARKING_SHUTDOWN_TIMEOUT")
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			missing = append(missing, "PARKING_SQLITE_PATH")
		}
		if c.SQLiteBusyTimeout < 0 {
			invalid = append(invalid, "PARKING_SQLITE_BUSY_TIMEOUT")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			missing = append(missing, "PARKING_POSTGRES_URL")
		}
		if c.PostgresMaxConns <= 0 {
			invalid = append(invalid, "PARKING_POSTGRES_MAX_CONNS")
		}
		if c.PostgresLockTimeout < 0 {
			invalid = append(invalid, "PARKING_POSTGRES_LOCK_TIMEOUT")
		}
	default:
		invalid = append(invalid, "PARKING_STORE_DRIVER")
	}

	if c.DefaultCapacity < 0 {
		invalid = append(invalid, "PARKING_DEFAULT_CAPACITY")
	}
	if c.ImportBatchSize <= 0 {
		invalid = append(invalid, "PARKING_IMPORT_BATCH_SIZE")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		invalid = append(invalid, "PARKING_LOG_LEVEL")
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatJSON, logging.FormatText:
	default:
		invalid = append(invalid, "PARKING_LOG_FORMAT")
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid environment variable values: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func loadEnvFile() error {
	if path := strings.TrimSpace(os.Getenv(EnvFileVariable)); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}
