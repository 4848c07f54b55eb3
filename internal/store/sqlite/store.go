// Package sqlite persists SPMI collections in a single SQLite table, one JSON
// blob per collection key.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"spmi.org/internal/kv"
)

// DefaultPath is used when Open is given an empty path.
const DefaultPath = "spmi.db"

// Store is a kv.Store over a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Closer = (*Store)(nil)
)

// Open creates the parent directory and the state table when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, true, nil
}

func (s *Store) Save(ctx context.Context, key string, blob []byte) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(bucket, payload, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`, key, blob); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored collection keys in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket FROM state ORDER BY bucket`)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
