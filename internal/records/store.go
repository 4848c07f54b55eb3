package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"spmi.org/internal/auth"
	"spmi.org/internal/kv"
	"spmi.org/internal/obs"
)

// Change describes one committed mutation of a collection.
type Change struct {
	Key string    `json:"key"`
	Op  string    `json:"op"`
	ID  string    `json:"id,omitempty"`
	At  time.Time `json:"at"`
}

// Change operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
	OpSet    = "set"
)

// state is an immutable snapshot of every collection. Writers build a new
// state and swap the pointer; slices reachable from a published state are
// never modified.
type state struct {
	users     []auth.User
	standards []Standard
	entries   []AuditEntry
	actions   []CorrectiveAction
	plans     []AuditPlan
	documents []Document
	current   Cycle
}

// Store owns every collection of one session and hands each change to the blob store.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      *state

	kv           kv.Store
	now          func() time.Time
	notify       func(Change)
	defaultCycle Cycle
	absent       []string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifier registers fn to receive every committed change.
func WithNotifier(fn func(Change)) Option {
	return func(s *Store) {
		s.notify = fn
	}
}

// WithDefaultCycle sets the cycle selected when none has been stored.
func WithDefaultCycle(c any) Option {
	return func(s *Store) {
		if n := NormalizeCycle(c); n != "" {
			s.defaultCycle = n
		}
	}
}

// New returns a store with built-in defaults. Call Load to read persisted collections.
func New(blobs kv.Store, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	s := &Store{
		kv:           blobs,
		now:          time.Now,
		defaultCycle: DefaultCycle,
	}
	for _, opt := range opts {
		opt(s)
	}
	users, _ := ensureAdmin(nil)
	s.st = &state{
		users:     users,
		standards: SeedStandards(),
		current:   s.defaultCycle,
	}
	return s, nil
}

// Load reads every collection once. Absent keys keep their built-in defaults
// and an ADMIN account is guaranteed afterwards.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := &state{current: s.defaultCycle}
	var absent []string

	var users []auth.User
	ok, err := kv.LoadJSON(ctx, s.kv, KeyUsers, &users)
	if err != nil {
		return err
	}
	if !ok {
		absent = append(absent, KeyUsers)
		users = nil
	}
	for i := range users {
		users[i] = users[i].Normalize()
	}
	var added bool
	next.users, added = ensureAdmin(users)
	if added && ok {
		obs.Warn("no administrator found, restored default admin", map[string]any{"key": KeyUsers})
	}

	ok, err = kv.LoadJSON(ctx, s.kv, KeyStandards, &next.standards)
	if err != nil {
		return err
	}
	if !ok {
		absent = append(absent, KeyStandards)
		next.standards = SeedStandards()
	}

	if ok, err = kv.LoadJSON(ctx, s.kv, KeyAuditEntries, &next.entries); err != nil {
		return err
	} else if !ok {
		absent = append(absent, KeyAuditEntries)
	}
	next.entries = collapseEntries(next.entries)

	if ok, err = kv.LoadJSON(ctx, s.kv, KeyCorrectiveActions, &next.actions); err != nil {
		return err
	} else if !ok {
		absent = append(absent, KeyCorrectiveActions)
	}
	next.actions = collapseActions(next.actions)

	if ok, err = kv.LoadJSON(ctx, s.kv, KeyPlans, &next.plans); err != nil {
		return err
	} else if !ok {
		absent = append(absent, KeyPlans)
	}
	if ok, err = kv.LoadJSON(ctx, s.kv, KeyDocuments, &next.documents); err != nil {
		return err
	} else if !ok {
		absent = append(absent, KeyDocuments)
	}

	raw, ok, err := s.kv.Load(ctx, KeyCurrentCycle)
	if err != nil {
		return err
	}
	if ok {
		if c := decodeCycle(raw); c != "" {
			next.current = c
		}
	} else {
		absent = append(absent, KeyCurrentCycle)
	}

	s.mu.Lock()
	s.st = next
	s.absent = absent
	s.mu.Unlock()
	return nil
}

// decodeCycle accepts a JSON string, a JSON number or bare text.
func decodeCycle(raw []byte) Cycle {
	var c Cycle
	if err := json.Unmarshal(raw, &c); err == nil {
		return c
	}
	return NormalizeCycle(string(raw))
}

// Bootstrap writes the built-in defaults for every collection that was absent at Load.
func (s *Store) Bootstrap(ctx context.Context) ([]string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.current()
	s.mu.RLock()
	absent := slices.Clone(s.absent)
	s.mu.RUnlock()

	var written []string
	for _, key := range absent {
		var v any
		switch key {
		case KeyUsers:
			v = cur.users
		case KeyStandards:
			v = cur.standards
		case KeyAuditEntries:
			v = nonNil(cur.entries)
		case KeyCorrectiveActions:
			v = nonNil(cur.actions)
		case KeyPlans:
			v = nonNil(cur.plans)
		case KeyDocuments:
			v = nonNil(cur.documents)
		case KeyCurrentCycle:
			v = cur.current
		default:
			continue
		}
		if err := s.persist(ctx, key, v); err != nil {
			return written, err
		}
		written = append(written, key)
	}
	s.mu.Lock()
	s.absent = nil
	s.mu.Unlock()
	return written, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func (s *Store) current() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// commit publishes next and then saves the collection stored under key.
// Callers hold writeMu.
func (s *Store) commit(ctx context.Context, next *state, key, op, id string, value any) error {
	s.mu.Lock()
	s.st = next
	s.mu.Unlock()
	if s.notify != nil {
		s.notify(Change{Key: key, Op: op, ID: id, At: s.now().UTC()})
	}
	return s.persist(ctx, key, value)
}

func (s *Store) persist(ctx context.Context, key string, value any) error {
	start := time.Now()
	err := kv.SaveJSON(ctx, s.kv, key, value)
	obs.ObservePersist(key, time.Since(start))
	if err != nil {
		obs.Error("collection not persisted", err, map[string]any{"key": key})
		return &PersistError{Key: key, Err: err}
	}
	return nil
}

func (s *Store) stamp() time.Time { return s.now().UTC() }

func (s *Store) today() string { return s.now().Format(time.DateOnly) }

// UpsertAuditEntry merges patch into the entry stored under key, creating it
// from defaults when absent. The entry keeps its position in the collection.
func (s *Store) UpsertAuditEntry(ctx context.Context, key Key, patch AuditEntryPatch) (AuditEntry, error) {
	key = NewKey(key.IndicatorID, key.Prodi, key.Cycle)
	if err := key.Validate(); err != nil {
		return AuditEntry{}, err
	}
	if err := patch.validate(); err != nil {
		return AuditEntry{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	idx := slices.IndexFunc(cur.entries, func(e AuditEntry) bool { return e.Key() == key })
	var e AuditEntry
	if idx >= 0 {
		e = cur.entries[idx]
	} else {
		e = AuditEntry{
			Prodi:       key.Prodi,
			IndicatorID: key.IndicatorID,
			Cycle:       key.Cycle,
			AuditDate:   s.today(),
			Status:      StatusNotFilled,
		}
	}
	patch.apply(&e)
	e.LastUpdated = s.stamp()

	entries := slices.Clone(cur.entries)
	if idx >= 0 {
		entries[idx] = e
	} else {
		entries = append(entries, e)
	}
	next := *cur
	next.entries = entries
	return e, s.commit(ctx, &next, KeyAuditEntries, OpUpsert, key.String(), entries)
}

// UpsertCorrectiveAction merges patch into the corrective action stored under
// key, creating it from defaults when absent.
func (s *Store) UpsertCorrectiveAction(ctx context.Context, key Key, patch CorrectiveActionPatch) (CorrectiveAction, error) {
	key = NewKey(key.IndicatorID, key.Prodi, key.Cycle)
	if err := key.Validate(); err != nil {
		return CorrectiveAction{}, err
	}
	if err := patch.validate(); err != nil {
		return CorrectiveAction{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	idx := slices.IndexFunc(cur.actions, func(a CorrectiveAction) bool { return a.Key() == key })
	now := s.stamp()
	var a CorrectiveAction
	if idx >= 0 {
		a = cur.actions[idx]
	} else {
		a = CorrectiveAction{
			ID:              newID("ptk"),
			Prodi:           key.Prodi,
			IndicatorID:     key.IndicatorID,
			Cycle:           key.Cycle,
			Category:        CategoryNone,
			DocVerification: VerificationPending,
			CreatedAt:       now,
		}
	}
	patch.apply(&a)
	a.LastUpdated = now

	actions := slices.Clone(cur.actions)
	if idx >= 0 {
		actions[idx] = a
	} else {
		actions = append(actions, a)
	}
	next := *cur
	next.actions = actions
	return a, s.commit(ctx, &next, KeyCorrectiveActions, OpUpsert, a.ID, actions)
}

// SetCurrentCycle stores the selected cycle.
func (s *Store) SetCurrentCycle(ctx context.Context, cycle any) (Cycle, error) {
	c := NormalizeCycle(cycle)
	if c == "" {
		return "", fmt.Errorf("%w: cycle is required", ErrInvalidInput)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := *s.current()
	next.current = c
	return c, s.commit(ctx, &next, KeyCurrentCycle, OpSet, string(c), c)
}

// CurrentCycle returns the selected cycle.
func (s *Store) CurrentCycle() Cycle { return s.current().current }

// AuditEntries returns a copy of every audit entry in insertion order.
func (s *Store) AuditEntries() []AuditEntry {
	return slices.Clone(s.current().entries)
}

// AuditEntry returns the entry stored under key.
func (s *Store) AuditEntry(key Key) (AuditEntry, bool) {
	key = NewKey(key.IndicatorID, key.Prodi, key.Cycle)
	for _, e := range s.current().entries {
		if e.Key() == key {
			return e, true
		}
	}
	return AuditEntry{}, false
}

// CorrectiveActions returns a copy of every corrective action in insertion order.
func (s *Store) CorrectiveActions() []CorrectiveAction {
	return slices.Clone(s.current().actions)
}

// CorrectiveAction returns the corrective action stored under key.
func (s *Store) CorrectiveAction(key Key) (CorrectiveAction, bool) {
	key = NewKey(key.IndicatorID, key.Prodi, key.Cycle)
	for _, a := range s.current().actions {
		if a.Key() == key {
			return a, true
		}
	}
	return CorrectiveAction{}, false
}

// collapseEntries keeps one entry per key: later duplicates are merged into
// the position of the first occurrence.
func collapseEntries(in []AuditEntry) []AuditEntry {
	out := make([]AuditEntry, 0, len(in))
	pos := make(map[Key]int, len(in))
	for _, e := range in {
		e.Cycle = e.Cycle.Normalize()
		if i, ok := pos[e.Key()]; ok {
			out[i] = e
			continue
		}
		pos[e.Key()] = len(out)
		out = append(out, e)
	}
	return out
}

func collapseActions(in []CorrectiveAction) []CorrectiveAction {
	out := make([]CorrectiveAction, 0, len(in))
	pos := make(map[Key]int, len(in))
	for _, a := range in {
		a.Cycle = a.Cycle.Normalize()
		if strings.TrimSpace(a.ID) == "" {
			a.ID = newID("ptk")
		}
		if i, ok := pos[a.Key()]; ok {
			out[i] = a
			continue
		}
		pos[a.Key()] = len(out)
		out = append(out, a)
	}
	return out
}
