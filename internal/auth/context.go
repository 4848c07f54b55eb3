package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	userIDKey    ctxKey = "auth_user_id"
	rolesKey     ctxKey = "auth_roles"
	sessionIDKey ctxKey = "auth_session_id"
)

// ContextWithUser stores user identity in the context.
func ContextWithUser(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
	if len(roles) > 0 {
		ctx = context.WithValue(ctx, rolesKey, dedupeRoles(roles))
	}
	return ctx
}

// ContextWithSession stores the identity of the session's current user.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	if s == nil {
		return ctx
	}
	u, ok := s.Current()
	if !ok {
		return ctx
	}
	ctx = ContextWithUser(ctx, u.ID, []string{string(u.Role)})
	if id := s.ID(); id != "" {
		ctx = context.WithValue(ctx, sessionIDKey, id)
	}
	return ctx
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// SessionIDFromContext returns the login identifier stored by ContextWithSession.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok && v != ""
}

// RolesFromContext returns the roles stored in context (deduplicated and lower-cased).
func RolesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	v, ok := ctx.Value(rolesKey).([]string)
	if !ok || len(v) == 0 {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
