package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Role is the access role of a user.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleAuditee Role = "AUDITEE"
	RoleAuditor Role = "AUDITOR"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAuditee, RoleAuditor:
		return true
	}
	return false
}

// ErrInvalidUser wraps validation failures on User values.
var ErrInvalidUser = errors.New("invalid user")

// User is an account allowed to sign in. Prodi is the home study program of
// an auditee; AssignedProdi lists the programs an auditor may review.
type User struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Password      string   `json:"password"`
	Role          Role     `json:"role"`
	Prodi         string   `json:"prodi,omitempty"`
	AssignedProdi []string `json:"assignedProdi,omitempty"`
}

// Normalize trims fields and drops scope attributes that do not apply to the role.
func (u User) Normalize() User {
	u.ID = strings.TrimSpace(u.ID)
	u.Username = strings.TrimSpace(u.Username)
	u.Role = Role(strings.ToUpper(strings.TrimSpace(string(u.Role))))
	switch u.Role {
	case RoleAuditee:
		u.Prodi = strings.TrimSpace(u.Prodi)
		u.AssignedProdi = nil
	case RoleAuditor:
		u.Prodi = ""
		u.AssignedProdi = dedupe(u.AssignedProdi)
	default:
		u.Prodi = ""
		u.AssignedProdi = nil
	}
	return u
}

// Validate checks the fields required to store a user.
func (u User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if u.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidUser)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}
	if u.Role == RoleAuditee && u.Prodi == "" {
		return fmt.Errorf("%w: auditee requires a prodi", ErrInvalidUser)
	}
	return nil
}

// CanSee reports whether prodi is inside the user's scope.
func (u User) CanSee(prodi string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleAuditee:
		return u.Prodi != "" && u.Prodi == prodi
	case RoleAuditor:
		return slices.Contains(u.AssignedProdi, prodi)
	}
	return false
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	u.AssignedProdi = slices.Clone(u.AssignedProdi)
	return u
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
