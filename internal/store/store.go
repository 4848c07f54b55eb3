// Package store opens the blob backend selected by configuration.
package store

import (
	"context"
	"fmt"

	"spmi.org/internal/config"
	"spmi.org/internal/kv"
	"spmi.org/internal/obs"
	"spmi.org/internal/store/pg"
	"spmi.org/internal/store/s3"
	"spmi.org/internal/store/sqlite"
)

// Lister is implemented by backends that can enumerate stored keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Open returns the kv.Store for cfg. The postgres backend is migrated before
// it is returned. Callers close the result when it implements kv.Closer.
func Open(ctx context.Context, cfg config.Store) (kv.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		obs.Warn("memory store selected; nothing will survive a restart", nil)
		return kv.NewMemory(), nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		s, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		applied, err := s.Migrate(ctx)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		if len(applied) > 0 {
			obs.Info("postgres schema migrated", map[string]any{"applied": applied})
		}
		return s, nil
	case config.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
		})
	}
	return nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.Driver)
}

// Close releases cfg-opened resources when the backend holds any.
func Close(s kv.Store) error {
	if c, ok := s.(kv.Closer); ok {
		return c.Close()
	}
	return nil
}
