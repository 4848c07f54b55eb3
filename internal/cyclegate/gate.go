// Package cyclegate tracks which audit cycles are open for auditee input.
// A cycle absent from the open set is locked.
package cyclegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"spmi.org/internal/kv"
	"spmi.org/internal/obs"
	"spmi.org/internal/records"
)

// Gate is the single source of truth for cycle lock state.
type Gate struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	open    []records.Cycle

	kv     kv.Store
	seed   []records.Cycle
	now    func() time.Time
	notify func(records.Change)
}

// Option configures a Gate.
type Option func(*Gate)

// WithSeed sets the cycles that are open when nothing has been stored.
func WithSeed(cycles ...records.Cycle) Option {
	return func(g *Gate) {
		g.seed = normalize(cycles)
	}
}

// WithNotifier registers fn to receive every toggle.
func WithNotifier(fn func(records.Change)) Option {
	return func(g *Gate) { g.notify = fn }
}

// WithClock overrides the time source of change notifications.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// New returns a gate holding the seed set.
func New(blobs kv.Store, opts ...Option) (*Gate, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	g := &Gate{kv: blobs, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	g.open = slices.Clone(g.seed)
	obs.SetOpenCycles(len(g.open))
	return g, nil
}

// Load reads the stored open set; an absent or unreadable key keeps the seed.
func (g *Gate) Load(ctx context.Context) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	raw, ok, err := g.kv.Load(ctx, records.KeyOpenCycles)
	if err != nil {
		return fmt.Errorf("load %s: %w", records.KeyOpenCycles, err)
	}
	open := slices.Clone(g.seed)
	if ok {
		var stored []records.Cycle
		if err := json.Unmarshal(raw, &stored); err != nil {
			obs.Warn("open cycle list unreadable, using seed", map[string]any{"error": err.Error()})
		} else {
			open = normalize(stored)
		}
	}
	g.mu.Lock()
	g.open = open
	g.mu.Unlock()
	obs.SetOpenCycles(len(open))
	return nil
}

// IsOpen reports whether cycle accepts auditee input.
func (g *Gate) IsOpen(cycle any) bool {
	c := records.NormalizeCycle(cycle)
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Contains(g.open, c)
}

// IsLocked is the negation of IsOpen.
func (g *Gate) IsLocked(cycle any) bool { return !g.IsOpen(cycle) }

// Open returns the open cycles in the order they were opened.
func (g *Gate) Open() []records.Cycle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.open)
}

// Toggle flips the membership of cycle and persists the whole set. It returns
// whether the cycle is open afterwards. On a persistence failure the new state
// stays in effect and the returned error matches records.ErrNotDurable.
func (g *Gate) Toggle(ctx context.Context, cycle any) (bool, error) {
	c := records.NormalizeCycle(cycle)
	if c == "" {
		return false, fmt.Errorf("%w: cycle is required", records.ErrInvalidInput)
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	g.mu.RLock()
	next := slices.Clone(g.open)
	g.mu.RUnlock()
	var nowOpen bool
	if i := slices.Index(next, c); i >= 0 {
		next = slices.Delete(next, i, i+1)
	} else {
		next = append(next, c)
		nowOpen = true
	}
	g.mu.Lock()
	g.open = next
	g.mu.Unlock()
	obs.SetOpenCycles(len(next))
	if g.notify != nil {
		g.notify(records.Change{Key: records.KeyOpenCycles, Op: records.OpSet, ID: string(c), At: g.now().UTC()})
	}

	if next == nil {
		next = []records.Cycle{}
	}
	if err := kv.SaveJSON(ctx, g.kv, records.KeyOpenCycles, next); err != nil {
		obs.Error("open cycle list not persisted", err, nil)
		return nowOpen, &records.PersistError{Key: records.KeyOpenCycles, Err: err}
	}
	return nowOpen, nil
}

func normalize(in []records.Cycle) []records.Cycle {
	var out []records.Cycle
	for _, c := range in {
		c = c.Normalize()
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
