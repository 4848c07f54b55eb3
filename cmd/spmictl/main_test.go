package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spmi.org/internal/auth"
	"spmi.org/internal/config"
	"spmi.org/internal/kv"
	"spmi.org/internal/obs"
	"spmi.org/internal/policy"
	"spmi.org/internal/portal"
)

func newApp(t *testing.T, blobs kv.Store, user, password string) (*app, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.FromEnv(func(string) string { return "" })
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	out := &bytes.Buffer{}
	return &app{cfg: cfg, out: out, blobs: blobs, user: user, password: password, prodi: "ALL"}, out
}

func TestSeedThenNothingToSeed(t *testing.T) {
	blobs := kv.NewMemory()
	a, out := newApp(t, blobs, "", "")
	if err := a.run(context.Background(), "seed", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out.String(), "seeded spmi_users") {
		t.Fatalf("unexpected output %q", out.String())
	}
	out.Reset()
	if err := a.run(context.Background(), "seed", nil); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out.String(), "nothing to seed") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestToggleAndCycles(t *testing.T) {
	blobs := kv.NewMemory()
	a, out := newApp(t, blobs, "admin", "admin123")
	ctx := context.Background()
	if err := a.run(ctx, "toggle", []string{"2026"}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !strings.Contains(out.String(), "cycle 2026 open") {
		t.Fatalf("unexpected output %q", out.String())
	}
	out.Reset()
	if err := a.run(ctx, "cycles", nil); err != nil {
		t.Fatalf("cycles: %v", err)
	}
	if !strings.Contains(out.String(), "* 2026 open") || !strings.Contains(out.String(), "  2025 locked") {
		t.Fatalf("unexpected cycles output %q", out.String())
	}
}

func TestToggleNeedsAdmin(t *testing.T) {
	blobs := kv.NewMemory()
	ctx := context.Background()
	_ = kv.SaveJSON(ctx, blobs, "spmi_users", []auth.User{
		{ID: "admin-001", Username: "admin", Password: "admin123", Role: auth.RoleAdmin},
		{ID: "u-1", Username: "bk", Password: "bk", Role: auth.RoleAuditee, Prodi: "BK"},
	})
	a, _ := newApp(t, blobs, "bk", "bk")
	if err := a.run(ctx, "toggle", []string{"2026"}); !errors.Is(err, policy.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	a.password = "wrong"
	if err := a.run(ctx, "summary", nil); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestSummaryJSON(t *testing.T) {
	a, out := newApp(t, kv.NewMemory(), "admin", "admin123")
	if err := a.run(context.Background(), "summary", []string{"2025"}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out.String(), `"cycle": "2025"`) {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestMigrateNeedsDSN(t *testing.T) {
	if err := runMigrate(context.Background(), &bytes.Buffer{}, "", "up"); err == nil {
		t.Fatal("expected error without dsn")
	}
}

func TestStatusListsCollections(t *testing.T) {
	blobs := kv.NewMemory()
	a, out := newApp(t, blobs, "", "")
	ctx := context.Background()
	if err := a.run(ctx, "seed", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out.Reset()
	if err := a.run(ctx, "status", nil); err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"current cycle 2026", "spmi_users", "open cycles   []"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("status output missing %q: %q", want, out.String())
		}
	}
}

func runCLI(t *testing.T, args ...string) (stdout, stderr *bytes.Buffer, code int) {
	t.Helper()
	t.Cleanup(func() { obs.SetOutput(os.Stdout) })
	env := map[string]string{
		"SPMI_STORE_DRIVER": "sqlite",
		"SPMI_SQLITE_PATH":  filepath.Join(t.TempDir(), "spmi.db"),
	}
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	code = run(args, stdout, stderr, func(k string) string { return env[k] })
	return stdout, stderr, code
}

func TestJSONCommandsKeepStdoutClean(t *testing.T) {
	for _, cmd := range []string{"summary", "findings"} {
		stdout, stderr, code := runCLI(t, "-user", "admin", "-password", "admin123", cmd, "2026")
		if code != 0 {
			t.Fatalf("%s exited %d: %s", cmd, code, stderr.String())
		}
		switch cmd {
		case "summary":
			var sum portal.Summary
			if err := json.Unmarshal(stdout.Bytes(), &sum); err != nil {
				t.Fatalf("summary stdout is not JSON: %v\n%s", err, stdout.String())
			}
		case "findings":
			var findings []portal.Finding
			if err := json.Unmarshal(stdout.Bytes(), &findings); err != nil {
				t.Fatalf("findings stdout is not JSON: %v\n%s", err, stdout.String())
			}
		}
		if !strings.Contains(stderr.String(), `"event":"auth.login"`) || !strings.Contains(stderr.String(), `"event":"auth.logout"`) {
			t.Fatalf("audit lines should go to stderr, got %q", stderr.String())
		}
	}
}

func TestRunReportsErrorsOnStderr(t *testing.T) {
	stdout, stderr, code := runCLI(t, "-user", "admin", "-password", "nope", "summary")
	if code != 1 || stdout.Len() != 0 {
		t.Fatalf("expected failure with empty stdout, got %d %q", code, stdout.String())
	}
	if !strings.Contains(stderr.String(), "spmictl summary:") {
		t.Fatalf("missing error line: %q", stderr.String())
	}
	if _, _, code := runCLI(t); code != 2 {
		t.Fatalf("no command should exit 2, got %d", code)
	}
}

func TestMetricsDump(t *testing.T) {
	stdout, stderr, code := runCLI(t, "-metrics-dump", "-user", "admin", "-password", "admin123", "summary")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if strings.Contains(stdout.String(), "spmi_logins_total") {
		t.Fatal("metrics must not be written to stdout")
	}
	for _, want := range []string{`spmi_logins_total{outcome="ok"}`, `spmi_build_info{commit="dev",version="0.1.0"} 1`} {
		if !strings.Contains(stderr.String(), want) {
			t.Fatalf("metrics dump missing %q", want)
		}
	}
}
