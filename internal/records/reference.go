package records

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"spmi.org/internal/auth"
	"spmi.org/internal/ids"
)

func newID(prefix string) string { return ids.Prefixed(prefix) }

// Users returns a copy of every user account.
func (s *Store) Users() []auth.User {
	users := s.current().users
	out := make([]auth.User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}

// User returns the account with id.
func (s *Store) User(id string) (auth.User, bool) {
	for _, u := range s.current().users {
		if u.ID == id {
			return u.Clone(), true
		}
	}
	return auth.User{}, false
}

// SaveUser inserts u or replaces the account with the same id. The password
// must already be in its stored form.
func (s *Store) SaveUser(ctx context.Context, u auth.User) (auth.User, error) {
	u = u.Normalize()
	if err := u.Validate(); err != nil {
		return auth.User{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	if u.ID == "" {
		u.ID = newID("user")
	}
	idx := slices.IndexFunc(cur.users, func(x auth.User) bool { return x.ID == u.ID })
	users := make([]auth.User, len(cur.users), len(cur.users)+1)
	for i, x := range cur.users {
		users[i] = x.Clone()
	}
	if idx >= 0 {
		old := users[idx]
		if old.Role == auth.RoleAdmin && u.Role != auth.RoleAdmin {
			if old.ID == SeedAdminID || adminCount(users) == 1 {
				return auth.User{}, fmt.Errorf("%w: cannot demote the last administrator", ErrProtected)
			}
		}
		users[idx] = u
	} else {
		users = append(users, u)
	}
	next := *cur
	next.users = users
	return u.Clone(), s.commit(ctx, &next, KeyUsers, OpUpsert, u.ID, users)
}

// DeleteUser removes the account with id. Unknown ids are ignored; the seed
// administrator and the last administrator are protected.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if id == SeedAdminID {
		return fmt.Errorf("%w: the default administrator cannot be deleted", ErrProtected)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	idx := slices.IndexFunc(cur.users, func(u auth.User) bool { return u.ID == id })
	if idx < 0 {
		return nil
	}
	if cur.users[idx].Role == auth.RoleAdmin && adminCount(cur.users) == 1 {
		return fmt.Errorf("%w: cannot delete the last administrator", ErrProtected)
	}
	users := slices.Delete(slices.Clone(cur.users), idx, idx+1)
	next := *cur
	next.users = users
	return s.commit(ctx, &next, KeyUsers, OpDelete, id, users)
}

func adminCount(users []auth.User) int {
	n := 0
	for _, u := range users {
		if u.Role == auth.RoleAdmin {
			n++
		}
	}
	return n
}

// Standards returns a deep copy of the standards taxonomy.
func (s *Store) Standards() []Standard {
	std := s.current().standards
	out := make([]Standard, len(std))
	for i, st := range std {
		out[i] = st.clone()
	}
	return out
}

// Indicator finds an indicator by id across all standards.
func (s *Store) Indicator(id string) (Indicator, bool) {
	for _, st := range s.current().standards {
		for _, ind := range st.Indicators {
			if ind.ID == id {
				return ind.clone(), true
			}
		}
	}
	return Indicator{}, false
}

func cloneStandards(in []Standard) []Standard {
	out := make([]Standard, len(in), len(in)+1)
	for i, st := range in {
		out[i] = st.clone()
	}
	return out
}

// SaveStandard creates a standard or updates the code and title of an existing one.
// Indicators are managed through SaveIndicator.
func (s *Store) SaveStandard(ctx context.Context, st Standard) (Standard, error) {
	st.ID = strings.TrimSpace(st.ID)
	st.Code = strings.TrimSpace(st.Code)
	st.Title = strings.TrimSpace(st.Title)
	if st.Code == "" || st.Title == "" {
		return Standard{}, fmt.Errorf("%w: standard code and title are required", ErrInvalidInput)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	standards := cloneStandards(cur.standards)
	idx := slices.IndexFunc(standards, func(x Standard) bool { return st.ID != "" && x.ID == st.ID })
	var saved Standard
	if idx >= 0 {
		standards[idx].Code = st.Code
		standards[idx].Title = st.Title
		saved = standards[idx]
	} else {
		if st.ID == "" {
			st.ID = newID("std")
		}
		saved = Standard{ID: st.ID, Code: st.Code, Title: st.Title, Indicators: []Indicator{}}
		standards = append(standards, saved)
	}
	next := *cur
	next.standards = standards
	return saved.clone(), s.commit(ctx, &next, KeyStandards, OpUpsert, saved.ID, standards)
}

// DeleteStandard removes a standard together with its indicators.
func (s *Store) DeleteStandard(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	idx := slices.IndexFunc(cur.standards, func(x Standard) bool { return x.ID == id })
	if idx < 0 {
		return nil
	}
	standards := slices.Delete(cloneStandards(cur.standards), idx, idx+1)
	next := *cur
	next.standards = standards
	return s.commit(ctx, &next, KeyStandards, OpDelete, id, standards)
}

// SaveIndicator creates or replaces an indicator under ind.StandardID. Blank
// descriptive fields default to "-" and a blank target year to the current cycle.
func (s *Store) SaveIndicator(ctx context.Context, ind Indicator) (Indicator, error) {
	ind.ID = strings.TrimSpace(ind.ID)
	ind.StandardID = strings.TrimSpace(ind.StandardID)
	ind.Name = strings.TrimSpace(ind.Name)
	if ind.StandardID == "" || ind.Name == "" {
		return Indicator{}, fmt.Errorf("%w: standard id and indicator name are required", ErrInvalidInput)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	standards := cloneStandards(cur.standards)
	si := slices.IndexFunc(standards, func(x Standard) bool { return x.ID == ind.StandardID })
	if si < 0 {
		return Indicator{}, fmt.Errorf("%w: unknown standard %q", ErrInvalidInput, ind.StandardID)
	}
	for i, st := range standards {
		if i == si || ind.ID == "" {
			continue
		}
		if slices.ContainsFunc(st.Indicators, func(x Indicator) bool { return x.ID == ind.ID }) {
			return Indicator{}, fmt.Errorf("%w: indicator %q belongs to standard %q", ErrInvalidInput, ind.ID, st.ID)
		}
	}
	ind.Baseline = orDash(ind.Baseline)
	ind.Target = orDash(ind.Target)
	ind.Subject = orDash(ind.Subject)
	if strings.TrimSpace(ind.TargetYear) == "" {
		ind.TargetYear = string(cur.current)
	}

	inds := standards[si].Indicators
	ii := slices.IndexFunc(inds, func(x Indicator) bool { return ind.ID != "" && x.ID == ind.ID })
	if ii >= 0 {
		if ind.CycleTargets == nil {
			ind.CycleTargets = inds[ii].CycleTargets
		}
		inds[ii] = ind
	} else {
		if ind.ID == "" {
			ind.ID = newID("ind")
		}
		inds = append(inds, ind)
	}
	standards[si].Indicators = inds
	next := *cur
	next.standards = standards
	return ind.clone(), s.commit(ctx, &next, KeyStandards, OpUpsert, ind.ID, standards)
}

func orDash(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "-"
	}
	return v
}

// DeleteIndicator removes an indicator from its standard.
func (s *Store) DeleteIndicator(ctx context.Context, standardID, indicatorID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	si := slices.IndexFunc(cur.standards, func(x Standard) bool { return x.ID == standardID })
	if si < 0 {
		return nil
	}
	ii := slices.IndexFunc(cur.standards[si].Indicators, func(x Indicator) bool { return x.ID == indicatorID })
	if ii < 0 {
		return nil
	}
	standards := cloneStandards(cur.standards)
	standards[si].Indicators = slices.Delete(standards[si].Indicators, ii, ii+1)
	next := *cur
	next.standards = standards
	return s.commit(ctx, &next, KeyStandards, OpDelete, indicatorID, standards)
}

// SetIndicatorCycleTarget overrides the target of an indicator for one cycle.
// An empty target removes the override.
func (s *Store) SetIndicatorCycleTarget(ctx context.Context, indicatorID string, cycle any, target CycleTarget) (Indicator, error) {
	c := NormalizeCycle(cycle)
	if c == "" {
		return Indicator{}, fmt.Errorf("%w: cycle is required", ErrInvalidInput)
	}
	target.Target = strings.TrimSpace(target.Target)
	target.TargetYear = strings.TrimSpace(target.TargetYear)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	standards := cloneStandards(cur.standards)
	for si := range standards {
		for ii := range standards[si].Indicators {
			ind := &standards[si].Indicators[ii]
			if ind.ID != indicatorID {
				continue
			}
			if target == (CycleTarget{}) {
				delete(ind.CycleTargets, c)
				if len(ind.CycleTargets) == 0 {
					ind.CycleTargets = nil
				}
			} else {
				if ind.CycleTargets == nil {
					ind.CycleTargets = make(map[Cycle]CycleTarget)
				}
				ind.CycleTargets[c] = target
			}
			saved := ind.clone()
			next := *cur
			next.standards = standards
			return saved, s.commit(ctx, &next, KeyStandards, OpUpsert, indicatorID, standards)
		}
	}
	return Indicator{}, fmt.Errorf("%w: unknown indicator %q", ErrInvalidInput, indicatorID)
}

// Plans returns a copy of every audit plan.
func (s *Store) Plans() []AuditPlan {
	plans := s.current().plans
	out := make([]AuditPlan, len(plans))
	for i, p := range plans {
		out[i] = p.clone()
	}
	return out
}

// SavePlan inserts p or replaces the plan with the same id.
func (s *Store) SavePlan(ctx context.Context, p AuditPlan) (AuditPlan, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Prodi = strings.TrimSpace(p.Prodi)
	p.Cycle = p.Cycle.Normalize()
	if p.Prodi == "" || p.Cycle == "" {
		return AuditPlan{}, fmt.Errorf("%w: plan prodi and cycle are required", ErrInvalidInput)
	}
	var auditors []string
	for _, id := range p.AuditorIDs {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(auditors, id) {
			auditors = append(auditors, id)
		}
	}
	p.AuditorIDs = auditors
	if p.ID == "" {
		p.ID = newID("plan")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	plans := make([]AuditPlan, len(cur.plans), len(cur.plans)+1)
	for i, x := range cur.plans {
		plans[i] = x.clone()
	}
	if idx := slices.IndexFunc(plans, func(x AuditPlan) bool { return x.ID == p.ID }); idx >= 0 {
		plans[idx] = p
	} else {
		plans = append(plans, p)
	}
	next := *cur
	next.plans = plans
	return p.clone(), s.commit(ctx, &next, KeyPlans, OpUpsert, p.ID, plans)
}

// Documents returns a copy of every document.
func (s *Store) Documents() []Document {
	return slices.Clone(s.current().documents)
}

// AddDocument appends a new document; documents are never edited in place.
func (s *Store) AddDocument(ctx context.Context, d Document) (Document, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.URL = strings.TrimSpace(d.URL)
	if d.Name == "" || d.URL == "" {
		return Document{}, fmt.Errorf("%w: document name and url are required", ErrInvalidInput)
	}
	if !d.Category.Valid() {
		return Document{}, fmt.Errorf("%w: unknown document category %q", ErrInvalidInput, d.Category)
	}
	d.ID = newID("doc")
	d.LastUpdated = s.stamp()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.current()
	docs := append(slices.Clone(cur.documents), d)
	next := *cur
	next.documents = docs
	return d, s.commit(ctx, &next, KeyDocuments, OpUpsert, d.ID, docs)
}

// DeleteDocument removes the document with id.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	idx := slices.IndexFunc(cur.documents, func(d Document) bool { return d.ID == id })
	if idx < 0 {
		return nil
	}
	docs := slices.Delete(slices.Clone(cur.documents), idx, idx+1)
	next := *cur
	next.documents = docs
	return s.commit(ctx, &next, KeyDocuments, OpDelete, id, docs)
}
