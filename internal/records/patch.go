package records

import "fmt"

// AuditEntryPatch is a partial update of an audit entry. Nil fields are left untouched.
type AuditEntryPatch struct {
	AchievementValue *string
	DocLink          *string
	Status           *Status
	Notes            *string
	AuditDate        *string
}

// Empty reports whether the patch sets nothing.
func (p AuditEntryPatch) Empty() bool {
	return p.AchievementValue == nil && p.DocLink == nil && p.Status == nil && p.Notes == nil && p.AuditDate == nil
}

func (p AuditEntryPatch) validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *p.Status)
	}
	return nil
}

func (p AuditEntryPatch) apply(e *AuditEntry) {
	if p.AchievementValue != nil {
		e.AchievementValue = *p.AchievementValue
	}
	if p.DocLink != nil {
		e.DocLink = *p.DocLink
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.AuditDate != nil {
		e.AuditDate = *p.AuditDate
	}
}

// CorrectiveActionPatch is a partial update of a corrective action. Nil fields are left untouched.
type CorrectiveActionPatch struct {
	Category          *Category
	RootCause         *string
	Prevention        *string
	Plan              *string
	DocVerification   *Verification
	Realization       *string
	CorrectionDocLink *string
	TargetYear        *string
}

// Empty reports whether the patch sets nothing.
func (p CorrectiveActionPatch) Empty() bool {
	return p.Category == nil && p.RootCause == nil && p.Prevention == nil && p.Plan == nil &&
		p.DocVerification == nil && p.Realization == nil && p.CorrectionDocLink == nil && p.TargetYear == nil
}

func (p CorrectiveActionPatch) validate() error {
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, *p.Category)
	}
	if p.DocVerification != nil && !p.DocVerification.Valid() {
		return fmt.Errorf("%w: unknown verification %q", ErrInvalidInput, *p.DocVerification)
	}
	return nil
}

func (p CorrectiveActionPatch) apply(a *CorrectiveAction) {
	if p.Category != nil {
		a.Category = *p.Category
	}
	if p.RootCause != nil {
		a.RootCause = *p.RootCause
	}
	if p.Prevention != nil {
		a.Prevention = *p.Prevention
	}
	if p.Plan != nil {
		a.Plan = *p.Plan
	}
	if p.DocVerification != nil {
		a.DocVerification = *p.DocVerification
	}
	if p.Realization != nil {
		a.Realization = *p.Realization
	}
	if p.CorrectionDocLink != nil {
		a.CorrectionDocLink = *p.CorrectionDocLink
	}
	if p.TargetYear != nil {
		a.TargetYear = *p.TargetYear
	}
}

// Ptr returns a pointer to v; convenient for building patches.
func Ptr[T any](v T) *T { return &v }
