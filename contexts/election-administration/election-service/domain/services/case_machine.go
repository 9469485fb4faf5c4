package services

import (
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
)

type CaseAction string

const (
	CaseActionReview  CaseAction = "review"
	CaseActionApprove CaseAction = "approve"
	CaseActionReject  CaseAction = "reject"
)

// NextStatus validates one admin transition of the candidacy state machine.
func NextStatus(current entities.CandidacyCase, action CaseAction) (entities.CaseStatus, error) {
	if current.Terminal() {
		return "", domainerrors.WithDetails(domainerrors.ErrCaseTerminal, map[string]any{
			"case_id": current.CaseID,
			"status":  string(current.Status),
		})
	}
	switch {
	case action == CaseActionReview && current.Status == entities.CaseStatusSubmitted:
		return entities.CaseStatusReviewed, nil
	case action == CaseActionApprove && current.Status == entities.CaseStatusReviewed:
		return entities.CaseStatusApproved, nil
	case action == CaseActionReject && current.Status == entities.CaseStatusReviewed:
		return entities.CaseStatusRejected, nil
	}
	return "", domainerrors.WithDetails(domainerrors.ErrInvalidTransition, map[string]any{
		"case_id": current.CaseID,
		"status":  string(current.Status),
		"action":  string(action),
	})
}

// ApplyTransition returns a copy of c in the new status with an audit entry
// appended. History is never rewritten.
func ApplyTransition(c entities.CandidacyCase, to entities.CaseStatus, actorID string, note string, now time.Time) entities.CandidacyCase {
	next := c.Clone()
	next.Audit = append(next.Audit, entities.CaseTransition{
		Field:      entities.AuditFieldStatus,
		From:       string(c.Status),
		To:         string(to),
		ActorID:    actorID,
		Note:       note,
		OccurredAt: now,
	})
	next.Status = to
	next.UpdatedAt = now
	if to != entities.CaseStatusSubmitted {
		reviewedAt := now
		next.ReviewedAt = &reviewedAt
		next.ReviewedBy = actorID
	}
	return next
}

// CheckOutcomeReady validates that a screening outcome may be recorded.
func CheckOutcomeReady(c entities.CandidacyCase) error {
	if c.Terminal() {
		return domainerrors.WithDetails(domainerrors.ErrCaseTerminal, map[string]any{"case_id": c.CaseID})
	}
	if c.Status != entities.CaseStatusApproved {
		return domainerrors.WithDetails(domainerrors.ErrInvalidTransition, map[string]any{
			"case_id": c.CaseID,
			"status":  string(c.Status),
			"action":  "record_screening_outcome",
		})
	}
	details := map[string]any{"case_id": c.CaseID}
	ready := true
	if missing := c.MissingDocuments(); len(missing) > 0 {
		kinds := make([]string, 0, len(missing))
		for _, kind := range missing {
			kinds = append(kinds, string(kind))
		}
		details["missing_documents"] = kinds
		ready = false
	}
	if c.Appointment == nil || c.Appointment.Status != entities.AppointmentStatusApproved {
		details["appointment"] = "not approved"
		ready = false
	}
	if !ready {
		return domainerrors.WithDetails(domainerrors.ErrScreeningIncomplete, details)
	}
	return nil
}

// CheckAppointmentRequest validates the case side of an appointment request.
func CheckAppointmentRequest(c entities.CandidacyCase) error {
	if c.Status != entities.CaseStatusReviewed || c.Terminal() {
		return domainerrors.WithDetails(domainerrors.ErrCaseNotReviewed, map[string]any{
			"case_id": c.CaseID,
			"status":  string(c.Status),
		})
	}
	if c.Appointment == nil {
		return nil
	}
	if c.Appointment.Status != entities.AppointmentStatusRejected {
		return domainerrors.WithDetails(domainerrors.ErrAppointmentExists, map[string]any{
			"case_id":  c.CaseID,
			"slot_key": c.Appointment.SlotKey,
			"status":   string(c.Appointment.Status),
		})
	}
	if latest, ok := c.LatestDecision(); ok && latest.Status != entities.AppointmentStatusRejected {
		return domainerrors.WithDetails(domainerrors.ErrAppointmentExists, map[string]any{
			"case_id":         c.CaseID,
			"latest_decision": string(latest.Status),
		})
	}
	return nil
}
