package records

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Status is the verification state of an audit entry.
type Status string

const (
	StatusNotFilled   Status = "NOT_FILLED"
	StatusPending     Status = "PENDING"
	StatusAchieved    Status = "ACHIEVED"
	StatusNotAchieved Status = "NOT_ACHIEVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotFilled, StatusPending, StatusAchieved, StatusNotAchieved:
		return true
	}
	return false
}

// Category grades a finding.
type Category string

const (
	CategoryNone  Category = "NONE"
	CategoryMajor Category = "MAJOR"
	CategoryMinor Category = "MINOR"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryNone, CategoryMajor, CategoryMinor:
		return true
	}
	return false
}

// Verification is the auditor's judgement of the correction evidence.
type Verification string

const (
	VerificationPending     Verification = "PENDING"
	VerificationSuitable    Verification = "SUITABLE"
	VerificationNotSuitable Verification = "NOT_SUITABLE"
)

func (v Verification) Valid() bool {
	switch v {
	case VerificationPending, VerificationSuitable, VerificationNotSuitable:
		return true
	}
	return false
}

// Key is the natural key shared by audit entries and corrective actions.
type Key struct {
	IndicatorID string
	Prodi       string
	Cycle       Cycle
}

// NewKey builds a normalized key; cycle may be a string or a number.
func NewKey(indicatorID, prodi string, cycle any) Key {
	return Key{
		IndicatorID: strings.TrimSpace(indicatorID),
		Prodi:       strings.TrimSpace(prodi),
		Cycle:       NormalizeCycle(cycle),
	}
}

// Validate requires every key component.
func (k Key) Validate() error {
	switch {
	case k.IndicatorID == "":
		return fmt.Errorf("%w: indicator id is required", ErrInvalidInput)
	case k.Prodi == "":
		return fmt.Errorf("%w: prodi is required", ErrInvalidInput)
	case k.Cycle == "":
		return fmt.Errorf("%w: cycle is required", ErrInvalidInput)
	}
	return nil
}

func (k Key) String() string {
	return k.IndicatorID + "/" + k.Prodi + "/" + string(k.Cycle)
}

// AuditEntry is the measurement of one indicator for one prodi in one cycle.
type AuditEntry struct {
	Prodi            string    `json:"prodi"`
	IndicatorID      string    `json:"indicatorId"`
	Cycle            Cycle     `json:"cycle"`
	AchievementValue string    `json:"achievementValue"`
	AuditDate        string    `json:"auditDate"`
	DocLink          string    `json:"docLink"`
	Status           Status    `json:"status"`
	Notes            string    `json:"notes"`
	LastUpdated      time.Time `json:"lastUpdated,omitzero"`
}

// Key returns the natural key of e.
func (e AuditEntry) Key() Key { return NewKey(e.IndicatorID, e.Prodi, e.Cycle) }

// CorrectiveAction is the remediation record for a NOT_ACHIEVED entry.
type CorrectiveAction struct {
	ID                string       `json:"id"`
	Prodi             string       `json:"prodi"`
	IndicatorID       string       `json:"indicatorId"`
	Cycle             Cycle        `json:"cycle"`
	Category          Category     `json:"category"`
	RootCause         string       `json:"rootCause"`
	Prevention        string       `json:"prevention"`
	Plan              string       `json:"plan"`
	DocVerification   Verification `json:"docVerification"`
	Realization       string       `json:"realization"`
	CorrectionDocLink string       `json:"correctionDocLink"`
	TargetYear        string       `json:"targetYear"`
	CreatedAt         time.Time    `json:"createdAt,omitzero"`
	LastUpdated       time.Time    `json:"lastUpdated,omitzero"`
}

// Key returns the natural key of a.
func (a CorrectiveAction) Key() Key { return NewKey(a.IndicatorID, a.Prodi, a.Cycle) }

// CycleTarget overrides an indicator's default target for one cycle.
type CycleTarget struct {
	Target     string `json:"target"`
	TargetYear string `json:"targetYear"`
}

// Indicator is a measurable criterion under a standard.
type Indicator struct {
	ID           string                `json:"id"`
	StandardID   string                `json:"standardId"`
	Name         string                `json:"name"`
	Baseline     string                `json:"baseline"`
	Target       string                `json:"target"`
	TargetYear   string                `json:"targetYear"`
	Subject      string                `json:"subject"`
	CycleTargets map[Cycle]CycleTarget `json:"cycleTargets,omitempty"`
}

// TargetFor returns the per-cycle override when present, otherwise the default target.
func (i Indicator) TargetFor(cycle any) CycleTarget {
	if ct, ok := i.CycleTargets[NormalizeCycle(cycle)]; ok {
		return ct
	}
	return CycleTarget{Target: i.Target, TargetYear: i.TargetYear}
}

// UnmarshalJSON canonicalizes cycleTargets keys so "2026.0" and 2026 resolve
// to the same override. A key already in canonical form wins a collision.
func (i *Indicator) UnmarshalJSON(data []byte) error {
	type plain Indicator
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.CycleTargets != nil {
		targets := make(map[Cycle]CycleTarget, len(raw.CycleTargets))
		for c, ct := range raw.CycleTargets {
			norm := c.Normalize()
			if _, taken := targets[norm]; taken && c != norm {
				continue
			}
			targets[norm] = ct
		}
		raw.CycleTargets = targets
	}
	*i = Indicator(raw)
	return nil
}

func (i Indicator) clone() Indicator {
	i.CycleTargets = maps.Clone(i.CycleTargets)
	return i
}

// Standard groups indicators under one quality dimension.
type Standard struct {
	ID         string      `json:"id"`
	Code       string      `json:"code"`
	Title      string      `json:"title"`
	Indicators []Indicator `json:"indicators"`
}

func (s Standard) clone() Standard {
	if s.Indicators != nil {
		inds := make([]Indicator, len(s.Indicators))
		for i, ind := range s.Indicators {
			inds[i] = ind.clone()
		}
		s.Indicators = inds
	}
	return s
}

// Schedule holds the four date windows of an audit plan (YYYY-MM-DD).
type Schedule struct {
	FillingStart  string `json:"fillingStart"`
	FillingEnd    string `json:"fillingEnd"`
	DeskEvalStart string `json:"deskEvalStart"`
	DeskEvalEnd   string `json:"deskEvalEnd"`
	VisitStart    string `json:"visitStart"`
	VisitEnd      string `json:"visitEnd"`
	RTMStart      string `json:"rtmStart"`
	RTMEnd        string `json:"rtmEnd"`
}

// AuditPlan schedules the audit of one prodi in one cycle. IsActive is
// informational and does not gate writes.
type AuditPlan struct {
	ID         string   `json:"id"`
	Prodi      string   `json:"prodi"`
	Cycle      Cycle    `json:"cycle"`
	AuditorIDs []string `json:"auditorIds"`
	Schedule   Schedule `json:"schedule"`
	IsActive   bool     `json:"isActive"`
}

func (p AuditPlan) clone() AuditPlan {
	p.AuditorIDs = slices.Clone(p.AuditorIDs)
	return p
}

// DocumentCategory classifies SPMI reference documents.
type DocumentCategory string

const (
	DocKebijakan    DocumentCategory = "Kebijakan"
	DocManual       DocumentCategory = "Manual"
	DocStandar      DocumentCategory = "Standar"
	DocFormulir     DocumentCategory = "Formulir"
	DocSK           DocumentCategory = "SK"
	DocPengendalian DocumentCategory = "Pengendalian"
	DocPeningkatan  DocumentCategory = "Peningkatan"
)

// Phase is a PPEPP cycle phase that groups document categories.
type Phase string

const (
	PhasePlanning    Phase = "P1"
	PhaseExecution   Phase = "P2"
	PhaseControl     Phase = "P3"
	PhaseImprovement Phase = "P4"
)

var phaseCategories = map[Phase][]DocumentCategory{
	PhasePlanning:    {DocKebijakan, DocManual, DocStandar, DocFormulir},
	PhaseExecution:   {DocSK},
	PhaseControl:     {DocPengendalian},
	PhaseImprovement: {DocPeningkatan},
}

// Categories returns the document categories filed under p.
func (p Phase) Categories() []DocumentCategory {
	return slices.Clone(phaseCategories[p])
}

// Phase returns the PPEPP phase of c, empty for unknown categories.
func (c DocumentCategory) Phase() Phase {
	for p, cats := range phaseCategories {
		if slices.Contains(cats, c) {
			return p
		}
	}
	return ""
}

func (c DocumentCategory) Valid() bool { return c.Phase() != "" }

// Document is a link to an SPMI reference document.
type Document struct {
	ID          string           `json:"id"`
	Category    DocumentCategory `json:"category"`
	Name        string           `json:"name"`
	URL         string           `json:"url"`
	LastUpdated time.Time        `json:"lastUpdated,omitzero"`
}
