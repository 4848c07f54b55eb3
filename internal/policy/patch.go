package policy

import "spmi.org/internal/records"

// AuditEntryGroups lists the field groups touched by p.
func AuditEntryGroups(p records.AuditEntryPatch) []FieldGroup {
	var groups []FieldGroup
	if p.AchievementValue != nil || p.DocLink != nil {
		groups = append(groups, Achievement)
	}
	if p.Status != nil || p.Notes != nil || p.AuditDate != nil {
		groups = append(groups, Verification)
	}
	return groups
}

// CorrectiveActionGroups lists the field groups touched by p.
func CorrectiveActionGroups(p records.CorrectiveActionPatch) []FieldGroup {
	var groups []FieldGroup
	if p.Category != nil || p.RootCause != nil || p.Prevention != nil || p.Plan != nil {
		groups = append(groups, AuditorAnalysis)
	}
	if p.Realization != nil || p.CorrectionDocLink != nil || p.TargetYear != nil {
		groups = append(groups, AuditeeRemediation)
	}
	if p.DocVerification != nil {
		groups = append(groups, FinalVerification)
	}
	return groups
}
