package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"spmi.org/internal/config"
	"spmi.org/internal/kv"
	"spmi.org/internal/store/sqlite"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.Store{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*kv.Memory); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
	if _, ok := s.(Lister); !ok {
		t.Fatal("memory store should list keys")
	}
	if err := Close(s); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spmi.db")
	s, err := Open(context.Background(), config.Store{Driver: config.DriverSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(s)
	db, ok := s.(*sqlite.Store)
	if !ok || db.Path() != path {
		t.Fatalf("expected sqlite store at %s, got %T", path, s)
	}
	var _ Lister = db
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.Store{Driver: "redis"}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
