package entities

import (
	"sort"
	"time"
)

type CaseStatus string

const (
	CaseStatusSubmitted CaseStatus = "submitted"
	CaseStatusReviewed  CaseStatus = "reviewed"
	CaseStatusApproved  CaseStatus = "approved"
	CaseStatusRejected  CaseStatus = "rejected"
)

type ScreeningOutcome string

const (
	ScreeningOutcomePending ScreeningOutcome = ""
	ScreeningOutcomePassed  ScreeningOutcome = "passed"
	ScreeningOutcomeFailed  ScreeningOutcome = "failed"
)

type DocumentKind string

const (
	DocumentCertificateOfCandidacy DocumentKind = "certificate_of_candidacy"
	DocumentGrades                 DocumentKind = "certificate_of_grades"
	DocumentGoodMoral              DocumentKind = "good_moral"
	DocumentRegistration           DocumentKind = "certificate_of_registration"
	DocumentPhoto                  DocumentKind = "photo"
)

// RequiredDocuments must all be attached before a screening outcome may be
// recorded.
var RequiredDocuments = []DocumentKind{
	DocumentCertificateOfCandidacy,
	DocumentGrades,
	DocumentGoodMoral,
	DocumentRegistration,
}

func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentCertificateOfCandidacy, DocumentGrades, DocumentGoodMoral, DocumentRegistration, DocumentPhoto:
		return true
	default:
		return false
	}
}

// Audit fields name what a CaseTransition changed.
const (
	AuditFieldStatus      = "status"
	AuditFieldScreening   = "screening_outcome"
	AuditFieldAppointment = "appointment"
	AuditFieldDocument    = "document"
)

// CaseTransition is one append-only audit entry on a case.
type CaseTransition struct {
	Field      string
	From       string
	To         string
	ActorID    string
	Note       string
	OccurredAt time.Time
}

type CandidacyCase struct {
	CaseID             string
	ApplicantID        string
	Position           string
	Team               string
	Documents          map[DocumentKind]string
	Status             CaseStatus
	ScreeningOutcome   ScreeningOutcome
	Appointment        *Appointment
	AppointmentHistory []AppointmentDecision
	Audit              []CaseTransition
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ReviewedAt         *time.Time
	ReviewedBy         string
	Version            int64
}

// Active reports whether the case still counts against the applicant's
// single active case.
func (c CandidacyCase) Active() bool {
	return c.Status != CaseStatusRejected && c.ScreeningOutcome != ScreeningOutcomeFailed
}

// Terminal reports whether no further transition may be applied.
func (c CandidacyCase) Terminal() bool {
	return c.Status == CaseStatusRejected || c.ScreeningOutcome != ScreeningOutcomePending
}

// MissingDocuments lists required document kinds without a reference.
func (c CandidacyCase) MissingDocuments() []DocumentKind {
	missing := make([]DocumentKind, 0)
	for _, kind := range RequiredDocuments {
		if c.Documents[kind] == "" {
			missing = append(missing, kind)
		}
	}
	return missing
}

// LatestDecision returns the most recent appointment decision, if any.
func (c CandidacyCase) LatestDecision() (AppointmentDecision, bool) {
	if len(c.AppointmentHistory) == 0 {
		return AppointmentDecision{}, false
	}
	return c.AppointmentHistory[len(c.AppointmentHistory)-1], true
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (c CandidacyCase) Clone() CandidacyCase {
	out := c
	if c.Documents != nil {
		out.Documents = make(map[DocumentKind]string, len(c.Documents))
		for k, v := range c.Documents {
			out.Documents[k] = v
		}
	}
	if c.Appointment != nil {
		appointment := *c.Appointment
		out.Appointment = &appointment
	}
	if c.ReviewedAt != nil {
		reviewedAt := *c.ReviewedAt
		out.ReviewedAt = &reviewedAt
	}
	out.AppointmentHistory = append([]AppointmentDecision(nil), c.AppointmentHistory...)
	out.Audit = append([]CaseTransition(nil), c.Audit...)
	return out
}

// SortedDocumentKinds returns document kinds in a stable order.
func (c CandidacyCase) SortedDocumentKinds() []DocumentKind {
	kinds := make([]DocumentKind, 0, len(c.Documents))
	for kind := range c.Documents {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
