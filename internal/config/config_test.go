package config

import (
	"errors"
	"testing"

	"spmi.org/internal/auth"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(func(string) string { return "" })
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.SQLitePath != "spmi.db" {
		t.Fatalf("unexpected store defaults %+v", cfg.Store)
	}
	if cfg.DefaultCycle != "2026" || len(cfg.OpenCycles) != 0 {
		t.Fatalf("unexpected cycle defaults %+v", cfg)
	}
	if _, ok := cfg.Scheme().(auth.Plaintext); !ok {
		t.Fatalf("expected plaintext scheme, got %T", cfg.Scheme())
	}
}

func TestLoadFromProcessEnv(t *testing.T) {
	t.Setenv("SPMI_STORE_DRIVER", "S3")
	t.Setenv("SPMI_S3_BUCKET", "spmi-prod")
	t.Setenv("SPMI_S3_PATH_STYLE", "true")
	t.Setenv("SPMI_S3_PREFIX", "univ/")
	t.Setenv("SPMI_OPEN_CYCLES", "2025, 2026.0,2025")
	t.Setenv("SPMI_CREDENTIALS", "bcrypt")
	t.Setenv("SPMI_DEFAULT_CYCLE", "2025")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverS3 || !cfg.Store.S3.PathStyle || cfg.Store.S3.Prefix != "univ/" {
		t.Fatalf("unexpected s3 config %+v", cfg.Store)
	}
	if len(cfg.OpenCycles) != 2 || cfg.OpenCycles[1] != "2026" {
		t.Fatalf("open cycles not normalized: %v", cfg.OpenCycles)
	}
	if _, ok := cfg.Scheme().(auth.Bcrypt); !ok {
		t.Fatalf("expected bcrypt scheme, got %T", cfg.Scheme())
	}
	if cfg.DefaultCycle != "2025" {
		t.Fatalf("default cycle %q", cfg.DefaultCycle)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without dsn": {"SPMI_STORE_DRIVER": "postgres"},
		"s3 without bucket":    {"SPMI_STORE_DRIVER": "s3"},
		"unknown driver":       {"SPMI_STORE_DRIVER": "redis"},
		"unknown credentials":  {"SPMI_CREDENTIALS": "argon2"},
		"bad path style":       {"SPMI_S3_PATH_STYLE": "maybe"},
	}
	for name, env := range cases {
		_, err := FromEnv(func(k string) string { return env[k] })
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
