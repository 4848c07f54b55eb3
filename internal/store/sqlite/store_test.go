package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"spmi.org/internal/kv"
	"spmi.org/internal/records"
)

func TestSaveLoadAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "spmi.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok, err := s.Load(ctx, records.KeyUsers); ok || err != nil {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, records.KeyCurrentCycle, []byte(`"2025"`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, records.KeyCurrentCycle, []byte(`"2026"`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	var cycle string
	if ok, err := kv.LoadJSON(ctx, s, records.KeyCurrentCycle, &cycle); !ok || err != nil || cycle != "2026" {
		t.Fatalf("LoadJSON: %q %v %v", cycle, ok, err)
	}
	keys, err := s.Keys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("Keys: %v %v", keys, err)
	}
}

func TestRecordStoreOverSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "spmi.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rs, err := records.New(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := rs.Load(ctx); err != nil {
		t.Fatal(err)
	}
	written, err := rs.Bootstrap(ctx)
	if err != nil || len(written) == 0 {
		t.Fatalf("Bootstrap: %v %v", written, err)
	}
	if _, err := rs.UpsertAuditEntry(ctx, records.NewKey("I1-1", "BK", 2026), records.AuditEntryPatch{Status: records.Ptr(records.StatusPending)}); err != nil {
		t.Fatal(err)
	}

	again, _ := records.New(s)
	if err := again.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := again.AuditEntry(records.NewKey("I1-1", "BK", "2026")); !ok {
		t.Fatal("entry did not survive reload")
	}
}
