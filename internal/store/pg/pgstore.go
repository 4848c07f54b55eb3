// Package pg stores SPMI collections as JSONB rows in PostgreSQL, one row per
// collection key.
package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"spmi.org/internal/kv"
	"spmi.org/internal/migrate"
)

// Files holds the schema of the state table and its seed rows.
//
//go:embed migrations/*.sql seeds/*.sql
var Files embed.FS

const (
	MigrationsDir = "migrations"
	SeedsDir      = "seeds"
)

type Store struct {
	db *sql.DB
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Closer = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// A handful of writers at most; keep the pool small.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Migrator returns a manager over the embedded schema and seeds.
func (s *Store) Migrator(opts ...migrate.Option) *migrate.Manager {
	return migrate.NewManager(s.db, Files, MigrationsDir, SeedsDir, opts...)
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return s.Migrator().Up(ctx)
}

// Seed writes the default cycle rows where they are absent.
func (s *Store) Seed(ctx context.Context) ([]string, error) {
	return s.Migrator().Seed(ctx)
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `select payload from spmi_state where key=$1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *Store) Save(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		insert into spmi_state(key, payload, updated_at)
		values ($1, $2, now())
		on conflict (key) do update
		set payload = excluded.payload, updated_at = excluded.updated_at
	`, key, blob)
	return err
}

// Keys lists the stored collection keys in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select key from spmi_state order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
