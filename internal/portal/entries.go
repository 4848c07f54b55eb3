package portal

import (
	"context"
	"fmt"

	"spmi.org/internal/auth"
	"spmi.org/internal/policy"
	"spmi.org/internal/records"
)

// AllProdis selects every prodi inside the actor's scope.
const AllProdis = "ALL"

func matchProdi(filter, prodi string) bool {
	return filter == "" || filter == AllProdis || filter == prodi
}

func matchCycle(filter records.Cycle, c records.Cycle) bool {
	return filter == "" || filter == c.Normalize()
}

// SaveAuditEntry applies patch to the entry under key. Writing an achievement
// value without an explicit status moves the entry to PENDING.
func (s *Service) SaveAuditEntry(ctx context.Context, key records.Key, patch records.AuditEntryPatch) (records.AuditEntry, error) {
	u, err := s.actor()
	if err != nil {
		return records.AuditEntry{}, err
	}
	key = records.NewKey(key.IndicatorID, key.Prodi, key.Cycle)
	fields := map[string]any{"key": key.String()}
	if patch.Empty() {
		return records.AuditEntry{}, fmt.Errorf("%w: empty patch", records.ErrInvalidInput)
	}
	groups := policy.AuditEntryGroups(patch)
	req := policy.Request{Actor: u, Kind: policy.KindAuditEntry, Prodi: key.Prodi, Locked: s.gate.IsLocked(key.Cycle)}
	if err := policy.Authorize(req, groups...); err != nil {
		s.denied(ctx, policy.KindAuditEntry, err, fields)
		return records.AuditEntry{}, err
	}
	if _, ok := s.store.Indicator(key.IndicatorID); !ok {
		return records.AuditEntry{}, fmt.Errorf("%w: unknown indicator %q", records.ErrInvalidInput, key.IndicatorID)
	}
	if patch.AchievementValue != nil && patch.Status == nil {
		patch.Status = records.Ptr(records.StatusPending)
	}
	e, err := s.store.UpsertAuditEntry(ctx, key, patch)
	fields["status"] = string(e.Status)
	s.outcome(ctx, policy.KindAuditEntry, "record.write", err, fields)
	return e, err
}

// SaveCorrectiveAction applies patch to the corrective action under key. A
// new corrective action requires the paired entry to be NOT_ACHIEVED.
func (s *Service) SaveCorrectiveAction(ctx context.Context, key records.Key, patch records.CorrectiveActionPatch) (records.CorrectiveAction, error) {
	u, err := s.actor()
	if err != nil {
		return records.CorrectiveAction{}, err
	}
	key = records.NewKey(key.IndicatorID, key.Prodi, key.Cycle)
	fields := map[string]any{"key": key.String()}
	if patch.Empty() {
		return records.CorrectiveAction{}, fmt.Errorf("%w: empty patch", records.ErrInvalidInput)
	}
	groups := policy.CorrectiveActionGroups(patch)
	req := policy.Request{Actor: u, Kind: policy.KindCorrectiveAction, Prodi: key.Prodi, Locked: s.gate.IsLocked(key.Cycle)}
	if err := policy.Authorize(req, groups...); err != nil {
		s.denied(ctx, policy.KindCorrectiveAction, err, fields)
		return records.CorrectiveAction{}, err
	}
	if _, exists := s.store.CorrectiveAction(key); !exists {
		e, ok := s.store.AuditEntry(key)
		if !ok || e.Status != records.StatusNotAchieved {
			return records.CorrectiveAction{}, fmt.Errorf("%w: %s", ErrNoFinding, key)
		}
	}
	a, err := s.store.UpsertCorrectiveAction(ctx, key, patch)
	fields["id"] = a.ID
	s.outcome(ctx, policy.KindCorrectiveAction, "record.write", err, fields)
	return a, err
}

// AuditEntries returns the entries visible to the actor for cycle and prodi.
// An empty cycle selects every cycle; prodi may be AllProdis.
func (s *Service) AuditEntries(cycle any, prodi string) ([]records.AuditEntry, error) {
	u, err := s.actor()
	if err != nil {
		return nil, err
	}
	c := records.NormalizeCycle(cycle)
	var out []records.AuditEntry
	for _, e := range s.store.AuditEntries() {
		if !matchCycle(c, e.Cycle) || !matchProdi(prodi, e.Prodi) {
			continue
		}
		if policy.Visible(u, policy.KindAuditEntry, e.Prodi) {
			out = append(out, e)
		}
	}
	return out, nil
}

// AuditEntry returns the entry under key when it exists and is visible.
func (s *Service) AuditEntry(key records.Key) (records.AuditEntry, bool, error) {
	u, err := s.actor()
	if err != nil {
		return records.AuditEntry{}, false, err
	}
	e, ok := s.store.AuditEntry(key)
	if !ok || !policy.Visible(u, policy.KindAuditEntry, e.Prodi) {
		return records.AuditEntry{}, false, nil
	}
	return e, true, nil
}

// CorrectiveActions returns the corrective actions visible to the actor for cycle and prodi.
func (s *Service) CorrectiveActions(cycle any, prodi string) ([]records.CorrectiveAction, error) {
	u, err := s.actor()
	if err != nil {
		return nil, err
	}
	return s.visibleActions(u, records.NormalizeCycle(cycle), prodi), nil
}

func (s *Service) visibleActions(u auth.User, c records.Cycle, prodi string) []records.CorrectiveAction {
	var out []records.CorrectiveAction
	for _, a := range s.store.CorrectiveActions() {
		if !matchCycle(c, a.Cycle) || !matchProdi(prodi, a.Prodi) {
			continue
		}
		if policy.Visible(u, policy.KindCorrectiveAction, a.Prodi) {
			out = append(out, a)
		}
	}
	return out
}

// Finding pairs a NOT_ACHIEVED entry with its indicator target and corrective action.
type Finding struct {
	Entry     records.AuditEntry        `json:"entry"`
	Indicator records.Indicator         `json:"indicator"`
	Target    records.CycleTarget       `json:"target"`
	Action    *records.CorrectiveAction `json:"action,omitempty"`
}

// Findings lists NOT_ACHIEVED entries of cycle inside the actor's scope,
// optionally narrowed to one prodi.
func (s *Service) Findings(cycle any, prodi string) ([]Finding, error) {
	entries, err := s.AuditEntries(cycle, prodi)
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, e := range entries {
		if e.Status != records.StatusNotAchieved {
			continue
		}
		f := Finding{Entry: e}
		if ind, ok := s.store.Indicator(e.IndicatorID); ok {
			f.Indicator = ind
			f.Target = ind.TargetFor(e.Cycle)
		}
		if a, ok := s.store.CorrectiveAction(e.Key()); ok {
			f.Action = &a
		}
		out = append(out, f)
	}
	return out, nil
}

// StaleCorrectiveActions lists visible corrective actions of cycle whose
// entry is missing or no longer NOT_ACHIEVED. They are kept, not deleted.
func (s *Service) StaleCorrectiveActions(cycle any) ([]records.CorrectiveAction, error) {
	u, err := s.actor()
	if err != nil {
		return nil, err
	}
	var out []records.CorrectiveAction
	for _, a := range s.visibleActions(u, records.NormalizeCycle(cycle), AllProdis) {
		e, ok := s.store.AuditEntry(a.Key())
		if !ok || e.Status != records.StatusNotAchieved {
			out = append(out, a)
		}
	}
	return out, nil
}

// Summary counts visible entries of one cycle by status.
type Summary struct {
	Cycle       records.Cycle `json:"cycle"`
	Total       int           `json:"total"`
	Achieved    int           `json:"achieved"`
	NotAchieved int           `json:"notAchieved"`
	Pending     int           `json:"pending"`
	NotFilled   int           `json:"notFilled"`
}

// Summary returns the dashboard counts for cycle.
func (s *Service) Summary(cycle any) (Summary, error) {
	c := records.NormalizeCycle(cycle)
	entries, err := s.AuditEntries(c, AllProdis)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Cycle: c, Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case records.StatusAchieved:
			sum.Achieved++
		case records.StatusNotAchieved:
			sum.NotAchieved++
		case records.StatusPending:
			sum.Pending++
		default:
			sum.NotFilled++
		}
	}
	return sum, nil
}
