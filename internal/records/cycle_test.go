package records

import (
	"encoding/json"
	"testing"
)

func TestNormalizeCycle(t *testing.T) {
	cases := []struct {
		in   any
		want Cycle
	}{
		{"2025", "2025"},
		{" 2025 ", "2025"},
		{2025, "2025"},
		{int64(2025), "2025"},
		{2025.0, "2025"},
		{float32(2026), "2026"},
		{"2025.0", "2025"},
		{json.Number("2027"), "2027"},
		{Cycle(" 2028"), "2028"},
		{"2025/2026", "2025/2026"},
		{"", ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := NormalizeCycle(tc.in); got != tc.want {
			t.Fatalf("NormalizeCycle(%#v)=%q, want %q", tc.in, got, tc.want)
		}
	}
	if NormalizeCycle(2025) != Cycle("2025").Normalize() {
		t.Fatal("string and numeric cycle must normalize alike")
	}
}

func TestCycleUnmarshalJSON(t *testing.T) {
	var got struct {
		A Cycle `json:"a"`
		B Cycle `json:"b"`
		C Cycle `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":2025,"b":"2026","c":null}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.A != "2025" || got.B != "2026" || got.C != "" {
		t.Fatalf("unexpected cycles %#v", got)
	}
	var bad Cycle
	if err := json.Unmarshal([]byte(`{}`), &bad); err == nil {
		t.Fatal("expected error for object cycle")
	}
}

func TestParseCycleList(t *testing.T) {
	got := ParseCycleList(" 2025, 2026,,2025 ")
	if len(got) != 2 || got[0] != "2025" || got[1] != "2026" {
		t.Fatalf("unexpected list %v", got)
	}
	if ParseCycleList("") != nil {
		t.Fatal("empty list expected")
	}
}

func TestDocumentPhases(t *testing.T) {
	if DocFormulir.Phase() != PhasePlanning || DocSK.Phase() != PhaseExecution {
		t.Fatal("phase mapping mismatch")
	}
	if DocumentCategory("Memo").Valid() {
		t.Fatal("unknown category must be invalid")
	}
	if cats := PhaseControl.Categories(); len(cats) != 1 || cats[0] != DocPengendalian {
		t.Fatalf("unexpected categories %v", cats)
	}
}

func TestIndicatorTargetFor(t *testing.T) {
	ind := Indicator{Target: "95%", TargetYear: "2029", CycleTargets: map[Cycle]CycleTarget{"2025": {Target: "80%", TargetYear: "2025"}}}
	if got := ind.TargetFor(2025); got.Target != "80%" {
		t.Fatalf("override not applied: %v", got)
	}
	if got := ind.TargetFor("2026"); got.Target != "95%" || got.TargetYear != "2029" {
		t.Fatalf("default not applied: %v", got)
	}
}

func TestIndicatorDecodeCanonicalizesTargets(t *testing.T) {
	var ind Indicator
	raw := `{"id":"I1-1","target":"95%","cycleTargets":{"2026.0":{"target":"90%"},"2025":{"target":"70%"},"2025.0":{"target":"stale"}}}`
	if err := json.Unmarshal([]byte(raw), &ind); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := ind.TargetFor(2026); got.Target != "90%" {
		t.Fatalf("float-formatted key not found: %v", ind.CycleTargets)
	}
	if got := ind.TargetFor("2025"); got.Target != "70%" {
		t.Fatalf("canonical key should win a collision: %v", got)
	}
	if len(ind.CycleTargets) != 2 {
		t.Fatalf("unexpected targets %v", ind.CycleTargets)
	}
}
