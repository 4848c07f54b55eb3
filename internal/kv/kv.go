// Package kv defines the blob persistence contract used by the record store.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Store is a flat key/value blob store. Load reports ok=false for an absent key.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// Closer is implemented by stores that hold external resources.
type Closer interface {
	Close() error
}

// LoadJSON decodes the blob under key into v. It returns false when the key is absent.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	blob, ok, err := s.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Save(ctx, key, blob); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Memory is an in-process Store. Blobs are copied on the way in and out.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (m *Memory) Save(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.mu.Lock()
	m.blobs[key] = cp
	m.mu.Unlock()
	return nil
}

// Keys lists stored keys in sorted order.
func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
