// Package portal is the session controller of the SPMI tracker. Every UI
// event goes through a Service: the actor and lock state are resolved, the
// access policy is consulted once, and only then is the record store mutated.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spmi.org/internal/audit"
	"spmi.org/internal/auth"
	"spmi.org/internal/cyclegate"
	"spmi.org/internal/events"
	"spmi.org/internal/kv"
	"spmi.org/internal/obs"
	"spmi.org/internal/policy"
	"spmi.org/internal/records"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoFinding rejects opening a corrective action for an entry that is not NOT_ACHIEVED.
	ErrNoFinding = errors.New("audit entry is not marked NOT_ACHIEVED")
)

// Config holds construction parameters for Open.
type Config struct {
	Credentials  auth.Credentials
	OpenCycles   []records.Cycle
	DefaultCycle records.Cycle
	Clock        func() time.Time
}

// Service owns the store, the cycle gate and the session of one client.
type Service struct {
	store   *records.Store
	gate    *cyclegate.Gate
	session *auth.Session
	bus     *events.Bus
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithSession replaces the default plaintext session.
func WithSession(s *auth.Session) ServiceOption {
	return func(svc *Service) error {
		if s == nil {
			return errors.New("session is nil")
		}
		svc.session = s
		return nil
	}
}

// WithBus attaches the change feed returned by Subscribe.
func WithBus(b *events.Bus) ServiceOption {
	return func(svc *Service) error {
		if b == nil {
			return errors.New("bus is nil")
		}
		svc.bus = b
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) error {
		if now == nil {
			return errors.New("clock is nil")
		}
		svc.now = now
		return nil
	}
}

// NewService wires an already loaded store and gate.
func NewService(store *records.Store, gate *cyclegate.Gate, opts ...ServiceOption) (*Service, error) {
	if store == nil || gate == nil {
		return nil, errors.New("store and gate are required")
	}
	svc := &Service{
		store:   store,
		gate:    gate,
		session: auth.NewSession(),
		bus:     events.New(0),
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Open builds a store and gate over blobs, loads every collection and returns
// a signed-out Service.
func Open(ctx context.Context, blobs kv.Store, cfg Config) (*Service, error) {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	bus := events.New(0)
	store, err := records.New(blobs,
		records.WithClock(now),
		records.WithNotifier(bus.Publish),
		records.WithDefaultCycle(cfg.DefaultCycle),
	)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	gate, err := cyclegate.New(blobs,
		cyclegate.WithSeed(cfg.OpenCycles...),
		cyclegate.WithNotifier(bus.Publish),
		cyclegate.WithClock(now),
	)
	if err != nil {
		return nil, err
	}
	if err := gate.Load(ctx); err != nil {
		return nil, err
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = auth.Plaintext{}
	}
	return NewService(store, gate,
		WithBus(bus),
		WithClock(now),
		WithSession(auth.NewSession(auth.WithCredentials(creds), auth.WithSessionClock(now))),
	)
}

// Subscribe streams committed changes until ctx ends.
func (s *Service) Subscribe(ctx context.Context) <-chan records.Change {
	return s.bus.Subscribe(ctx)
}

// Login signs in by exact credential match. A failure leaves the session unchanged.
func (s *Service) Login(ctx context.Context, username, password string) (auth.User, error) {
	u, err := s.session.Login(s.store.Users(), username, password)
	obs.RecordLogin(err == nil)
	if err != nil {
		_ = audit.LogEvent(ctx, "auth.login_failed", map[string]any{"username": username})
		return auth.User{}, err
	}
	_ = audit.LogEvent(s.actorContext(ctx), "auth.login", map[string]any{
		"username":   u.Username,
		"started_at": s.session.Started().Format(time.RFC3339),
	})
	return u, nil
}

// Logout clears the session unconditionally.
func (s *Service) Logout(ctx context.Context) {
	if u, ok := s.session.Current(); ok {
		_ = audit.LogEvent(s.actorContext(ctx), "auth.logout", map[string]any{"username": u.Username})
	}
	s.session.Logout()
}

// CurrentUser returns the signed-in user.
func (s *Service) CurrentUser() (auth.User, bool) {
	return s.session.Current()
}

func (s *Service) actor() (auth.User, error) {
	u, ok := s.session.Current()
	if !ok {
		return auth.User{}, ErrNotAuthenticated
	}
	return u, nil
}

func (s *Service) actorContext(ctx context.Context) context.Context {
	return auth.ContextWithSession(ctx, s.session)
}

// CurrentCycle returns the selected cycle.
func (s *Service) CurrentCycle() records.Cycle { return s.store.CurrentCycle() }

// CycleOptions returns the selectable cycles.
func (s *Service) CycleOptions() []records.Cycle { return records.CycleOptions() }

// SetCurrentCycle changes the selected cycle for every role.
func (s *Service) SetCurrentCycle(ctx context.Context, cycle any) (records.Cycle, error) {
	if _, err := s.actor(); err != nil {
		return "", err
	}
	return s.store.SetCurrentCycle(ctx, cycle)
}

// CycleOpen reports whether cycle accepts auditee input.
func (s *Service) CycleOpen(cycle any) bool { return s.gate.IsOpen(cycle) }

// OpenCycles returns the open cycle set.
func (s *Service) OpenCycles() []records.Cycle { return s.gate.Open() }

// ToggleCycle opens a locked cycle or locks an open one. Administrators only.
func (s *Service) ToggleCycle(ctx context.Context, cycle any) (bool, error) {
	if _, err := s.authorizeManage(ctx, policy.KindCycle); err != nil {
		return false, err
	}
	open, err := s.gate.Toggle(ctx, cycle)
	s.outcome(ctx, policy.KindCycle, "cycle.toggle", err, map[string]any{
		"cycle": string(records.NormalizeCycle(cycle)),
		"open":  open,
	})
	return open, err
}

// AvailableProdis lists the study programs the actor may select.
func (s *Service) AvailableProdis() ([]string, error) {
	u, err := s.actor()
	if err != nil {
		return nil, err
	}
	switch u.Role {
	case auth.RoleAdmin:
		return records.Prodis(), nil
	case auth.RoleAuditee:
		if u.Prodi == "" {
			return nil, nil
		}
		return []string{u.Prodi}, nil
	case auth.RoleAuditor:
		return append([]string(nil), u.AssignedProdi...), nil
	}
	return nil, nil
}

// FieldPermissions returns the per-group permission flags of kind for a
// record of prodi in cycle.
func (s *Service) FieldPermissions(kind policy.Kind, prodi string, cycle any) (map[policy.FieldGroup]policy.Permission, error) {
	u, err := s.actor()
	if err != nil {
		return nil, err
	}
	return policy.Flags(u, kind, prodi, s.gate.IsLocked(cycle)), nil
}

// authorizeManage admits administrators to reference-data writes of kind.
func (s *Service) authorizeManage(ctx context.Context, kind policy.Kind) (auth.User, error) {
	u, err := s.actor()
	if err != nil {
		return auth.User{}, err
	}
	if err := policy.Authorize(policy.Request{Actor: u, Kind: kind}, policy.Manage); err != nil {
		s.denied(ctx, kind, err, nil)
		return auth.User{}, err
	}
	return u, nil
}

func (s *Service) denied(ctx context.Context, kind policy.Kind, err error, fields map[string]any) {
	obs.RecordWrite(string(kind), obs.OutcomeDenied)
	merged := map[string]any{"kind": string(kind), "reason": err.Error()}
	for k, v := range fields {
		merged[k] = v
	}
	_ = audit.LogEvent(s.actorContext(ctx), "record.denied", merged)
}

// outcome records metrics and an audit event for a write that reached the store.
func (s *Service) outcome(ctx context.Context, kind policy.Kind, event string, err error, fields map[string]any) {
	merged := map[string]any{"kind": string(kind)}
	for k, v := range fields {
		merged[k] = v
	}
	switch {
	case err == nil:
		obs.RecordWrite(string(kind), obs.OutcomeOK)
		_ = audit.LogEvent(s.actorContext(ctx), event, merged)
	case errors.Is(err, records.ErrNotDurable):
		obs.RecordWrite(string(kind), obs.OutcomeNotDurable)
		merged["error"] = err.Error()
		_ = audit.LogEvent(s.actorContext(ctx), "record.persist_failed", merged)
	default:
		obs.RecordWrite(string(kind), obs.OutcomeInvalid)
	}
}
