// Package audit writes the trail of sign-ins, record writes, denials and
// cycle toggles as JSON lines on the shared obs logger.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"

	"spmi.org/internal/auth"
	"spmi.org/internal/obs"
)

type ctxKey struct{}

// WithRequestID attaches a correlation identifier, such as one CLI invocation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// Entry is one audit line.
type Entry struct {
	TS        string         `json:"ts"`
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Roles     []string       `json:"roles,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// NewEntry builds the entry for event with the actor found in ctx.
func NewEntry(ctx context.Context, event string, fields map[string]any) Entry {
	e := Entry{
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		Type:   "audit",
		Event:  strings.TrimSpace(event),
		Fields: maps.Clone(fields),
	}
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	if ctx == nil {
		return e
	}
	e.RequestID, _ = ctx.Value(ctxKey{}).(string)
	e.UserID, _ = auth.UserIDFromContext(ctx)
	e.Roles = auth.RolesFromContext(ctx)
	e.SessionID, _ = auth.SessionIDFromContext(ctx)
	return e
}

// LogEvent writes an audit entry for event.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	e := NewEntry(ctx, event, fields)
	if e.Event == "" {
		return errors.New("event name is required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
