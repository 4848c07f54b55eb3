// Package config reads process configuration from SPMI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"spmi.org/internal/auth"
	"spmi.org/internal/records"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("invalid config")

// Store selects and parameterizes the blob backend.
type Store struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
	S3          S3
}

// S3 mirrors the S3 store settings.
type S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PathStyle bool
}

// Config is the full process configuration.
type Config struct {
	Store        Store
	Credentials  string
	OpenCycles   []records.Cycle
	DefaultCycle records.Cycle
}

// Load reads the environment of the current process.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv reads configuration through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	cfg := Config{
		Store: Store{
			Driver:      strings.ToLower(get("SPMI_STORE_DRIVER", DriverSQLite)),
			SQLitePath:  get("SPMI_SQLITE_PATH", "spmi.db"),
			PostgresDSN: get("SPMI_PG_DSN", ""),
			S3: S3{
				Bucket:   get("SPMI_S3_BUCKET", ""),
				Region:   get("SPMI_S3_REGION", "us-east-1"),
				Endpoint: get("SPMI_S3_ENDPOINT", ""),
				Prefix:   get("SPMI_S3_PREFIX", ""),
			},
		},
		Credentials:  strings.ToLower(get("SPMI_CREDENTIALS", "plaintext")),
		OpenCycles:   records.ParseCycleList(getenv("SPMI_OPEN_CYCLES")),
		DefaultCycle: records.NormalizeCycle(get("SPMI_DEFAULT_CYCLE", string(records.DefaultCycle))),
	}
	if raw := get("SPMI_S3_PATH_STYLE", ""); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: SPMI_S3_PATH_STYLE: %v", ErrInvalidConfig, err)
		}
		cfg.Store.S3.PathStyle = v
	}
	return cfg, cfg.Validate()
}

// Validate checks driver-specific requirements.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("%w: SPMI_PG_DSN is required for the postgres driver", ErrInvalidConfig)
		}
	case DriverS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("%w: SPMI_S3_BUCKET is required for the s3 driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if _, err := auth.CredentialsByName(c.Credentials); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.DefaultCycle == "" {
		return fmt.Errorf("%w: SPMI_DEFAULT_CYCLE is empty", ErrInvalidConfig)
	}
	return nil
}

// Scheme returns the configured credential scheme.
func (c Config) Scheme() auth.Credentials {
	creds, err := auth.CredentialsByName(c.Credentials)
	if err != nil {
		return auth.Plaintext{}
	}
	return creds
}
