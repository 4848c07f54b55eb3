package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordWriteCounts(t *testing.T) {
	before := testutil.ToFloat64(recordWrites.WithLabelValues("audit_entry", OutcomeDenied))
	RecordWrite("audit_entry", OutcomeDenied)
	RecordWrite("audit_entry", OutcomeDenied)
	after := testutil.ToFloat64(recordWrites.WithLabelValues("audit_entry", OutcomeDenied))
	if after-before != 2 {
		t.Fatalf("expected 2 increments, got %v", after-before)
	}
}

func TestRecordLoginAndGauge(t *testing.T) {
	before := testutil.ToFloat64(logins.WithLabelValues("failed"))
	RecordLogin(false)
	if got := testutil.ToFloat64(logins.WithLabelValues("failed")); got-before != 1 {
		t.Fatalf("failed logins not counted: %v", got-before)
	}
	SetOpenCycles(3)
	if got := testutil.ToFloat64(openCycles); got != 3 {
		t.Fatalf("open cycles gauge = %v", got)
	}
	ObservePersist("spmi_audit", 5*time.Millisecond)
	if n := testutil.CollectAndCount(persistDuration); n == 0 {
		t.Fatal("expected persist histogram samples")
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()
}

func TestErrorLogLine(t *testing.T) {
	original := Logger().Writer()
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(original)

	Error("persist failed", errors.New("disk full"), map[string]any{"key": "spmi_ptk"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "error" || entry["error"] != "disk full" || entry["key"] != "spmi_ptk" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	Init()
	Init()
	SetBuildInfo("old", "000")
	SetBuildInfo("test", "abc")
	SetOpenCycles(1)
	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"spmi_open_cycles 1", `spmi_build_info{commit="abc",version="test"} 1`} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metric %q missing from scrape", name)
		}
	}
	if strings.Contains(string(body), `version="old"`) {
		t.Fatal("stale build info series exported")
	}
}

func TestWriteMetricsText(t *testing.T) {
	Init()
	SetOpenCycles(2)
	RecordLogin(true)
	var buf bytes.Buffer
	if err := WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	for _, want := range []string{"# TYPE spmi_open_cycles gauge", "spmi_open_cycles 2", `spmi_logins_total{outcome="ok"}`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("dump missing %q:\n%s", want, buf.String())
		}
	}
}
