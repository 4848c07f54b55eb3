package portal

import (
	"context"
	"fmt"
	"slices"

	"spmi.org/internal/auth"
	"spmi.org/internal/policy"
	"spmi.org/internal/records"
)

// Users lists every account. Administrators only.
func (s *Service) Users() ([]auth.User, error) {
	u, err := s.actor()
	if err != nil {
		return nil, err
	}
	if !policy.Visible(u, policy.KindUser, "") {
		return nil, fmt.Errorf("%w: users are visible to administrators only", policy.ErrPermissionDenied)
	}
	return s.store.Users(), nil
}

// SaveUser creates or updates an account. A blank password on update keeps
// the stored one; a new password is stored in the session's credential scheme.
func (s *Service) SaveUser(ctx context.Context, u auth.User) (auth.User, error) {
	if _, err := s.authorizeManage(ctx, policy.KindUser); err != nil {
		return auth.User{}, err
	}
	if existing, ok := s.store.User(u.ID); ok && u.Password == "" {
		u.Password = existing.Password
	} else if u.Password != "" {
		stored, err := s.session.Credentials().Prepare(u.Password)
		if err != nil {
			return auth.User{}, fmt.Errorf("%w: %v", records.ErrInvalidInput, err)
		}
		u.Password = stored
	}
	saved, err := s.store.SaveUser(ctx, u)
	s.outcome(ctx, policy.KindUser, "record.write", err, map[string]any{"id": saved.ID, "role": string(saved.Role)})
	s.session.Refresh(s.store.Users())
	return saved, err
}

// DeleteUser removes an account. Unknown ids are ignored.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.authorizeManage(ctx, policy.KindUser); err != nil {
		return err
	}
	err := s.store.DeleteUser(ctx, id)
	s.outcome(ctx, policy.KindUser, "record.delete", err, map[string]any{"id": id})
	s.session.Refresh(s.store.Users())
	return err
}

// Standards returns the taxonomy to any signed-in user.
func (s *Service) Standards() ([]records.Standard, error) {
	if _, err := s.actor(); err != nil {
		return nil, err
	}
	return s.store.Standards(), nil
}

// SaveStandard creates or renames a standard.
func (s *Service) SaveStandard(ctx context.Context, st records.Standard) (records.Standard, error) {
	if _, err := s.authorizeManage(ctx, policy.KindStandard); err != nil {
		return records.Standard{}, err
	}
	saved, err := s.store.SaveStandard(ctx, st)
	s.outcome(ctx, policy.KindStandard, "record.write", err, map[string]any{"id": saved.ID})
	return saved, err
}

// DeleteStandard removes a standard and its indicators.
func (s *Service) DeleteStandard(ctx context.Context, id string) error {
	if _, err := s.authorizeManage(ctx, policy.KindStandard); err != nil {
		return err
	}
	err := s.store.DeleteStandard(ctx, id)
	s.outcome(ctx, policy.KindStandard, "record.delete", err, map[string]any{"id": id})
	return err
}

// SaveIndicator creates or replaces an indicator.
func (s *Service) SaveIndicator(ctx context.Context, ind records.Indicator) (records.Indicator, error) {
	if _, err := s.authorizeManage(ctx, policy.KindStandard); err != nil {
		return records.Indicator{}, err
	}
	saved, err := s.store.SaveIndicator(ctx, ind)
	s.outcome(ctx, policy.KindStandard, "record.write", err, map[string]any{"indicator": saved.ID})
	return saved, err
}

// DeleteIndicator removes an indicator from its standard.
func (s *Service) DeleteIndicator(ctx context.Context, standardID, indicatorID string) error {
	if _, err := s.authorizeManage(ctx, policy.KindStandard); err != nil {
		return err
	}
	err := s.store.DeleteIndicator(ctx, standardID, indicatorID)
	s.outcome(ctx, policy.KindStandard, "record.delete", err, map[string]any{"indicator": indicatorID})
	return err
}

// SetIndicatorCycleTarget overrides an indicator's target for one cycle.
func (s *Service) SetIndicatorCycleTarget(ctx context.Context, indicatorID string, cycle any, target records.CycleTarget) (records.Indicator, error) {
	if _, err := s.authorizeManage(ctx, policy.KindStandard); err != nil {
		return records.Indicator{}, err
	}
	saved, err := s.store.SetIndicatorCycleTarget(ctx, indicatorID, cycle, target)
	s.outcome(ctx, policy.KindStandard, "record.write", err, map[string]any{
		"indicator": indicatorID,
		"cycle":     string(records.NormalizeCycle(cycle)),
	})
	return saved, err
}

// Plans returns the audit plans inside the actor's scope.
func (s *Service) Plans() ([]records.AuditPlan, error) {
	u, err := s.actor()
	if err != nil {
		return nil, err
	}
	var out []records.AuditPlan
	for _, p := range s.store.Plans() {
		if policy.Visible(u, policy.KindPlan, p.Prodi) {
			out = append(out, p)
		}
	}
	return out, nil
}

// SavePlan creates or replaces an audit plan. Every listed auditor must be an
// existing AUDITOR account.
func (s *Service) SavePlan(ctx context.Context, p records.AuditPlan) (records.AuditPlan, error) {
	if _, err := s.authorizeManage(ctx, policy.KindPlan); err != nil {
		return records.AuditPlan{}, err
	}
	users := s.store.Users()
	for _, id := range p.AuditorIDs {
		ok := slices.ContainsFunc(users, func(u auth.User) bool { return u.ID == id && u.Role == auth.RoleAuditor })
		if !ok {
			return records.AuditPlan{}, fmt.Errorf("%w: %q is not an auditor", records.ErrInvalidInput, id)
		}
	}
	saved, err := s.store.SavePlan(ctx, p)
	s.outcome(ctx, policy.KindPlan, "record.write", err, map[string]any{"id": saved.ID})
	return saved, err
}

// Documents returns every reference document.
func (s *Service) Documents() ([]records.Document, error) {
	if _, err := s.actor(); err != nil {
		return nil, err
	}
	return s.store.Documents(), nil
}

// DocumentsByPhase returns the documents filed under one PPEPP phase.
func (s *Service) DocumentsByPhase(phase records.Phase) ([]records.Document, error) {
	docs, err := s.Documents()
	if err != nil {
		return nil, err
	}
	cats := phase.Categories()
	var out []records.Document
	for _, d := range docs {
		if slices.Contains(cats, d.Category) {
			out = append(out, d)
		}
	}
	return out, nil
}

// AddDocument appends a reference document.
func (s *Service) AddDocument(ctx context.Context, d records.Document) (records.Document, error) {
	if _, err := s.authorizeManage(ctx, policy.KindDocument); err != nil {
		return records.Document{}, err
	}
	saved, err := s.store.AddDocument(ctx, d)
	s.outcome(ctx, policy.KindDocument, "record.write", err, map[string]any{"id": saved.ID})
	return saved, err
}

// DeleteDocument removes a reference document.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.authorizeManage(ctx, policy.KindDocument); err != nil {
		return err
	}
	err := s.store.DeleteDocument(ctx, id)
	s.outcome(ctx, policy.KindDocument, "record.delete", err, map[string]any{"id": id})
	return err
}
