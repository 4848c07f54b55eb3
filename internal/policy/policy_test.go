package policy

import (
	"errors"
	"testing"

	"spmi.org/internal/auth"
	"spmi.org/internal/records"
)

var (
	admin   = auth.User{ID: "admin-001", Role: auth.RoleAdmin}
	auditee = auth.User{ID: "u-bk", Role: auth.RoleAuditee, Prodi: "BK"}
	auditor = auth.User{ID: "u-aud", Role: auth.RoleAuditor, AssignedProdi: []string{"BK", "MPI"}}
)

func TestDecideTable(t *testing.T) {
	cases := []struct {
		role   auth.Role
		group  FieldGroup
		locked bool
		want   Permission
	}{
		{auth.RoleAdmin, Achievement, true, Writable},
		{auth.RoleAdmin, Verification, true, Writable},
		{auth.RoleAdmin, Manage, false, Writable},
		{auth.RoleAuditee, Achievement, false, Writable},
		{auth.RoleAuditee, Achievement, true, ReadOnly},
		{auth.RoleAuditee, AuditeeRemediation, false, Writable},
		{auth.RoleAuditee, AuditeeRemediation, true, ReadOnly},
		{auth.RoleAuditee, Verification, false, ReadOnly},
		{auth.RoleAuditee, AuditorAnalysis, false, ReadOnly},
		{auth.RoleAuditee, FinalVerification, false, ReadOnly},
		{auth.RoleAuditee, Manage, false, ReadOnly},
		{auth.RoleAuditor, Verification, true, Writable},
		{auth.RoleAuditor, AuditorAnalysis, true, Writable},
		{auth.RoleAuditor, FinalVerification, false, Writable},
		{auth.RoleAuditor, Achievement, false, ReadOnly},
		{auth.RoleAuditor, AuditeeRemediation, true, ReadOnly},
		{auth.RoleAuditor, Manage, false, ReadOnly},
		{auth.Role("GUEST"), Achievement, false, Hidden},
		{auth.RoleAdmin, FieldGroup("other"), false, Hidden},
	}
	for _, tc := range cases {
		if got := Decide(tc.role, tc.group, tc.locked); got != tc.want {
			t.Fatalf("Decide(%s,%s,locked=%v)=%s, want %s", tc.role, tc.group, tc.locked, got, tc.want)
		}
	}
}

func TestScopeHidesForeignProdi(t *testing.T) {
	if p := Evaluate(auditee, KindAuditEntry, "PGSD", Achievement, false); p != Hidden {
		t.Fatalf("auditee sees foreign prodi: %s", p)
	}
	if p := Evaluate(auditor, KindCorrectiveAction, "PAI", AuditorAnalysis, false); p != Hidden {
		t.Fatalf("auditor sees unassigned prodi: %s", p)
	}
	if p := Evaluate(auditor, KindCorrectiveAction, "MPI", AuditorAnalysis, true); p != Writable {
		t.Fatalf("auditor should write assigned prodi: %s", p)
	}
	if p := Evaluate(admin, KindAuditEntry, "anything", Verification, true); p != Writable {
		t.Fatalf("admin is unscoped: %s", p)
	}
	if p := Evaluate(admin, KindAuditEntry, "BK", AuditorAnalysis, false); p != Hidden {
		t.Fatalf("group of another kind must be hidden: %s", p)
	}
}

func TestVisibleReferenceKinds(t *testing.T) {
	if Visible(auditee, KindUser, "") || !Visible(admin, KindUser, "") {
		t.Fatal("users are admin-only")
	}
	if !Visible(auditor, KindStandard, "") || !Visible(auditee, KindDocument, "") {
		t.Fatal("reference data is readable by everyone")
	}
	if Visible(auditee, KindPlan, "MPI") || !Visible(auditee, KindPlan, "BK") {
		t.Fatal("plans follow prodi scope")
	}
	if Visible(auth.User{Role: "GUEST"}, KindStandard, "") {
		t.Fatal("unknown roles see nothing")
	}
}

func TestAuthorizeAllOrNothing(t *testing.T) {
	req := Request{Actor: auditee, Kind: KindAuditEntry, Prodi: "BK"}
	if err := Authorize(req, Achievement); err != nil {
		t.Fatalf("open cycle write should pass: %v", err)
	}
	if err := Authorize(req, Achievement, Verification); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("mixed patch must be denied, got %v", err)
	}
	req.Locked = true
	if err := Authorize(req, Achievement); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("locked cycle must deny auditee, got %v", err)
	}
	req.Actor = admin
	if err := Authorize(req, Achievement, Verification); err != nil {
		t.Fatalf("admin overrides lock: %v", err)
	}
	out := Request{Actor: auditee, Kind: KindAuditEntry, Prodi: "PGSD"}
	if err := Authorize(out); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("out of scope must be denied even without groups, got %v", err)
	}
	if err := Authorize(Request{Actor: auditor, Kind: KindCycle}, Manage); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("only admin toggles cycles, got %v", err)
	}
}

func TestFlags(t *testing.T) {
	flags := Flags(auditor, KindCorrectiveAction, "BK", true)
	if flags[AuditorAnalysis] != Writable || flags[FinalVerification] != Writable || flags[AuditeeRemediation] != ReadOnly {
		t.Fatalf("unexpected flags %v", flags)
	}
	if len(Flags(auditee, KindAuditEntry, "MPI", false)) != 2 {
		t.Fatal("every group should be reported")
	}
	if Flags(auditee, KindAuditEntry, "MPI", false)[Achievement] != Hidden {
		t.Fatal("foreign prodi must be hidden")
	}
}

func TestPatchClassification(t *testing.T) {
	g := AuditEntryGroups(records.AuditEntryPatch{AchievementValue: records.Ptr("70%")})
	if len(g) != 1 || g[0] != Achievement {
		t.Fatalf("unexpected groups %v", g)
	}
	g = AuditEntryGroups(records.AuditEntryPatch{DocLink: records.Ptr("x"), Notes: records.Ptr("n")})
	if len(g) != 2 {
		t.Fatalf("expected both groups, got %v", g)
	}
	g = CorrectiveActionGroups(records.CorrectiveActionPatch{
		TargetYear:      records.Ptr("2027"),
		DocVerification: records.Ptr(records.VerificationSuitable),
	})
	if len(g) != 2 || g[0] != AuditeeRemediation || g[1] != FinalVerification {
		t.Fatalf("unexpected groups %v", g)
	}
	if AuditEntryGroups(records.AuditEntryPatch{}) != nil {
		t.Fatal("empty patch touches nothing")
	}
	for _, g := range Groups(KindAuditEntry) {
		if len(Fields(g)) == 0 {
			t.Fatalf("group %s has no fields", g)
		}
	}
}
