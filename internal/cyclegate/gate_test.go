package cyclegate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"spmi.org/internal/kv"
	"spmi.org/internal/records"
)

type brokenKV struct{ *kv.Memory }

func (brokenKV) Save(context.Context, string, []byte) error { return errors.New("read-only") }

func TestToggleFlipsMembership(t *testing.T) {
	blobs := kv.NewMemory()
	g, err := New(blobs)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if g.IsOpen("2026") {
		t.Fatal("cycles start locked by default")
	}
	open, err := g.Toggle(ctx, 2026)
	if err != nil || !open {
		t.Fatalf("Toggle: %v %v", open, err)
	}
	if !g.IsOpen("2026") || !g.IsOpen(2026.0) || g.IsLocked("2026") {
		t.Fatal("cycle should be open under any spelling")
	}
	var stored []string
	raw, _, _ := blobs.Load(ctx, records.KeyOpenCycles)
	if err := json.Unmarshal(raw, &stored); err != nil || len(stored) != 1 || stored[0] != "2026" {
		t.Fatalf("open set not persisted as strings: %s", raw)
	}
	open, err = g.Toggle(ctx, "2026")
	if err != nil || open {
		t.Fatalf("second toggle should lock: %v %v", open, err)
	}
	raw, _, _ = blobs.Load(ctx, records.KeyOpenCycles)
	if string(raw) != "[]" {
		t.Fatalf("expected empty list, got %s", raw)
	}
}

func TestSeedAndLoad(t *testing.T) {
	blobs := kv.NewMemory()
	ctx := context.Background()
	g, _ := New(blobs, WithSeed("2025", " 2026", "2025"))
	if err := g.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := g.Open(); len(got) != 2 {
		t.Fatalf("seed not applied: %v", got)
	}
	_ = blobs.Save(ctx, records.KeyOpenCycles, []byte(`[2027,"2028"]`))
	if err := g.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if g.IsOpen("2025") || !g.IsOpen("2027") || !g.IsOpen("2028") {
		t.Fatalf("stored set should replace seed: %v", g.Open())
	}
	_ = blobs.Save(ctx, records.KeyOpenCycles, []byte(`"garbage`))
	if err := g.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if !g.IsOpen("2025") {
		t.Fatal("unreadable list should fall back to seed")
	}
}

func TestTogglePersistFailure(t *testing.T) {
	var changes []records.Change
	g, _ := New(brokenKV{kv.NewMemory()}, WithNotifier(func(c records.Change) { changes = append(changes, c) }))
	open, err := g.Toggle(context.Background(), "2026")
	if !errors.Is(err, records.ErrNotDurable) {
		t.Fatalf("expected ErrNotDurable, got %v", err)
	}
	if !open || !g.IsOpen("2026") {
		t.Fatal("toggle must stay applied in memory")
	}
	if len(changes) != 1 || changes[0].ID != "2026" {
		t.Fatalf("unexpected notifications %v", changes)
	}
	if _, err := g.Toggle(context.Background(), ""); !errors.Is(err, records.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
