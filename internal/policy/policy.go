// Package policy decides which role may read or write which field group of
// which record, given the prodi scope of the actor and the lock state of the
// record's cycle. Every function here is pure.
package policy

import (
	"errors"
	"fmt"
	"slices"

	"spmi.org/internal/auth"
)

// ErrPermissionDenied rejects a write outside the actor's permissions.
var ErrPermissionDenied = errors.New("permission denied")

// Permission is the access an actor has to a field group.
type Permission int

const (
	Hidden Permission = iota
	ReadOnly
	Writable
)

func (p Permission) String() string {
	switch p {
	case ReadOnly:
		return "read"
	case Writable:
		return "write"
	}
	return "hidden"
}

func (p Permission) CanWrite() bool { return p == Writable }

// Kind names a record collection.
type Kind string

const (
	KindAuditEntry       Kind = "audit_entry"
	KindCorrectiveAction Kind = "corrective_action"
	KindUser             Kind = "user"
	KindStandard         Kind = "standard"
	KindPlan             Kind = "plan"
	KindDocument         Kind = "document"
	KindCycle            Kind = "cycle"
)

// FieldGroup is a set of fields that share one owner.
type FieldGroup string

const (
	// Audit entry groups.
	Achievement  FieldGroup = "achievement"
	Verification FieldGroup = "verification"
	// Corrective action groups.
	AuditorAnalysis    FieldGroup = "auditorAnalysis"
	AuditeeRemediation FieldGroup = "auditeeRemediation"
	FinalVerification  FieldGroup = "finalVerification"
	// Manage covers reference data edited by administrators only.
	Manage FieldGroup = "manage"
)

var kindGroups = map[Kind][]FieldGroup{
	KindAuditEntry:       {Achievement, Verification},
	KindCorrectiveAction: {AuditorAnalysis, AuditeeRemediation, FinalVerification},
	KindUser:             {Manage},
	KindStandard:         {Manage},
	KindPlan:             {Manage},
	KindDocument:         {Manage},
	KindCycle:            {Manage},
}

var groupFields = map[FieldGroup][]string{
	Achievement:        {"achievementValue", "docLink"},
	Verification:       {"status", "notes", "auditDate"},
	AuditorAnalysis:    {"category", "rootCause", "prevention", "plan"},
	AuditeeRemediation: {"realization", "correctionDocLink", "targetYear"},
	FinalVerification:  {"docVerification"},
}

// Groups returns the field groups of kind in display order.
func Groups(kind Kind) []FieldGroup {
	return slices.Clone(kindGroups[kind])
}

// Fields returns the JSON field names belonging to g.
func Fields(g FieldGroup) []string {
	return slices.Clone(groupFields[g])
}

// AuditeeOwned reports whether g is entered by the audited prodi.
func AuditeeOwned(g FieldGroup) bool {
	return g == Achievement || g == AuditeeRemediation
}

// AuditorOwned reports whether g is entered by the auditor.
func AuditorOwned(g FieldGroup) bool {
	return g == Verification || g == AuditorAnalysis || g == FinalVerification
}

// scoped kinds carry a prodi and are filtered by the actor's scope.
func scoped(kind Kind) bool {
	return kind == KindAuditEntry || kind == KindCorrectiveAction || kind == KindPlan
}

// Decide applies the role table to one field group, ignoring prodi scope.
//
// Administrators write everything regardless of lock. Auditees write their own
// groups only while the cycle is open. Auditors write their own groups
// regardless of lock. Every other combination is read-only, and unknown roles
// or groups are hidden.
func Decide(role auth.Role, group FieldGroup, locked bool) Permission {
	switch role {
	case auth.RoleAdmin:
		if group == Manage || AuditeeOwned(group) || AuditorOwned(group) {
			return Writable
		}
		return Hidden
	case auth.RoleAuditee:
		switch {
		case AuditeeOwned(group):
			if locked {
				return ReadOnly
			}
			return Writable
		case AuditorOwned(group), group == Manage:
			return ReadOnly
		}
	case auth.RoleAuditor:
		switch {
		case AuditorOwned(group):
			return Writable
		case AuditeeOwned(group), group == Manage:
			return ReadOnly
		}
	}
	return Hidden
}

// Visible reports whether actor may see a record of kind belonging to prodi.
func Visible(actor auth.User, kind Kind, prodi string) bool {
	if !actor.Role.Valid() {
		return false
	}
	if kind == KindUser {
		return actor.Role == auth.RoleAdmin
	}
	if scoped(kind) {
		return actor.CanSee(prodi)
	}
	_, known := kindGroups[kind]
	return known
}

// Evaluate returns the permission of actor on group of a kind record that
// belongs to prodi, in a cycle whose lock state is locked.
func Evaluate(actor auth.User, kind Kind, prodi string, group FieldGroup, locked bool) Permission {
	if !slices.Contains(kindGroups[kind], group) {
		return Hidden
	}
	if !Visible(actor, kind, prodi) {
		return Hidden
	}
	return Decide(actor.Role, group, locked)
}

// Flags returns the permission of every group of kind, for driving form controls.
func Flags(actor auth.User, kind Kind, prodi string, locked bool) map[FieldGroup]Permission {
	out := make(map[FieldGroup]Permission, len(kindGroups[kind]))
	for _, g := range kindGroups[kind] {
		out[g] = Evaluate(actor, kind, prodi, g, locked)
	}
	return out
}

// Request describes a write attempt.
type Request struct {
	Actor  auth.User
	Kind   Kind
	Prodi  string
	Locked bool
}

// Authorize returns nil only when the record is visible to the actor and
// every touched group is writable, so a patch is applied entirely or not at all.
func Authorize(req Request, groups ...FieldGroup) error {
	if !Visible(req.Actor, req.Kind, req.Prodi) {
		return fmt.Errorf("%w: %s is outside the scope of %s", ErrPermissionDenied, req.Kind, req.Actor.Role)
	}
	for _, g := range groups {
		if p := Evaluate(req.Actor, req.Kind, req.Prodi, g, req.Locked); !p.CanWrite() {
			if req.Locked && AuditeeOwned(g) && req.Actor.Role == auth.RoleAuditee {
				return fmt.Errorf("%w: cycle is locked for %s", ErrPermissionDenied, g)
			}
			return fmt.Errorf("%w: %s cannot write %s", ErrPermissionDenied, req.Actor.Role, g)
		}
	}
	return nil
}
