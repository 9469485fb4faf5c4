package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/domain/services"
	"campusvote/contexts/election-administration/election-service/ports"
)

type SubmitCaseCommand struct {
	Actor     entities.Actor
	Position  string
	Team      string
	Documents map[entities.DocumentKind]string
}

type AttachDocumentCommand struct {
	Actor     entities.Actor
	CaseID    string
	Kind      entities.DocumentKind
	Reference string
}

// TransitionCaseCommand drives review, approve and reject.
type TransitionCaseCommand struct {
	Actor  entities.Actor
	CaseID string
	Note   string
}

type RecordOutcomeCommand struct {
	Actor   entities.Actor
	CaseID  string
	Outcome entities.ScreeningOutcome
	Note    string
}

// CandidacyUseCase owns the candidacy case state machine. Every write goes
// through one ApplyCaseMutation so the case, its audit trail and any role
// change commit together.
type CandidacyUseCase struct {
	Cases      ports.CaseRepository
	Identities ports.IdentityDirectory
	Definition entities.BallotDefinition
	Effects    Effects
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (uc CandidacyUseCase) SubmitCase(ctx context.Context, cmd SubmitCaseCommand) (entities.CandidacyCase, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireActor(cmd.Actor); err != nil {
		return entities.CandidacyCase{}, err
	}
	position := strings.TrimSpace(cmd.Position)
	if _, ok := uc.Definition.Position(position); !ok {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrUnknownPosition, map[string]any{
			"position": position,
		})
	}
	documents := make(map[entities.DocumentKind]string, len(cmd.Documents))
	for kind, ref := range cmd.Documents {
		if err := validateDocument(kind, ref); err != nil {
			return entities.CandidacyCase{}, err
		}
		documents[kind] = strings.TrimSpace(ref)
	}

	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	if _, err := uc.Identities.GetIdentity(ctx, cmd.Actor.UserID); err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	caseID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	now := nowFrom(uc.Clock)
	c := entities.CandidacyCase{
		CaseID:      caseID,
		ApplicantID: strings.TrimSpace(cmd.Actor.UserID),
		Position:    position,
		Team:        strings.TrimSpace(cmd.Team),
		Documents:   documents,
		Status:      entities.CaseStatusSubmitted,
		Audit: []entities.CaseTransition{{
			Field:      entities.AuditFieldStatus,
			To:         string(entities.CaseStatusSubmitted),
			ActorID:    strings.TrimSpace(cmd.Actor.UserID),
			OccurredAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := uc.Cases.CreateCase(ctx, c); err != nil {
		logger.Warn("candidacy case submission rejected",
			"event", "election_case_submit_failed",
			"module", application.Module,
			"layer", "application",
			"applicant_id", c.ApplicantID,
			"error", err.Error(),
		)
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, c.ApplicantID, "case_submitted", "candidacy_case", c.CaseID, map[string]string{
		"position": c.Position,
	}, now)
	logger.Info("candidacy case submitted",
		"event", "election_case_submitted",
		"module", application.Module,
		"layer", "application",
		"case_id", c.CaseID,
		"applicant_id", c.ApplicantID,
		"position", c.Position,
	)
	return c, nil
}

func (uc CandidacyUseCase) AttachDocument(ctx context.Context, cmd AttachDocumentCommand) (entities.CandidacyCase, error) {
	if err := validateDocument(cmd.Kind, cmd.Reference); err != nil {
		return entities.CandidacyCase{}, err
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	current, err := uc.Cases.GetCase(ctx, cmd.CaseID)
	if err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	if !cmd.Actor.Is(current.ApplicantID) {
		return entities.CandidacyCase{}, domainerrors.ErrForbidden
	}
	if current.Terminal() {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrCaseTerminal, map[string]any{
			"case_id": current.CaseID,
		})
	}

	now := nowFrom(uc.Clock)
	next := current.Clone()
	if next.Documents == nil {
		next.Documents = make(map[entities.DocumentKind]string)
	}
	ref := strings.TrimSpace(cmd.Reference)
	next.Audit = append(next.Audit, entities.CaseTransition{
		Field:      entities.AuditFieldDocument,
		From:       current.Documents[cmd.Kind],
		To:         ref,
		ActorID:    cmd.Actor.UserID,
		Note:       string(cmd.Kind),
		OccurredAt: now,
	})
	next.Documents[cmd.Kind] = ref
	next.UpdatedAt = now
	return uc.commit(ctx, ports.CaseMutation{Case: next, ExpectedVersion: current.Version, Now: now}, "document_attached")
}

func (uc CandidacyUseCase) ReviewCase(ctx context.Context, cmd TransitionCaseCommand) (entities.CandidacyCase, error) {
	return uc.transition(ctx, cmd, services.CaseActionReview)
}

// ApproveCase moves a reviewed case to approved and promotes the applicant
// to candidate in the same store mutation.
func (uc CandidacyUseCase) ApproveCase(ctx context.Context, cmd TransitionCaseCommand) (entities.CandidacyCase, error) {
	return uc.transition(ctx, cmd, services.CaseActionApprove)
}

func (uc CandidacyUseCase) RejectCase(ctx context.Context, cmd TransitionCaseCommand) (entities.CandidacyCase, error) {
	return uc.transition(ctx, cmd, services.CaseActionReject)
}

func (uc CandidacyUseCase) transition(ctx context.Context, cmd TransitionCaseCommand, action services.CaseAction) (entities.CandidacyCase, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.CandidacyCase{}, err
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	current, err := uc.Cases.GetCase(ctx, cmd.CaseID)
	if err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	to, err := services.NextStatus(current, action)
	if err != nil {
		logger.Warn("candidacy transition refused",
			"event", "election_case_transition_refused",
			"module", application.Module,
			"layer", "application",
			"case_id", current.CaseID,
			"status", string(current.Status),
			"action", string(action),
		)
		return entities.CandidacyCase{}, err
	}

	now := nowFrom(uc.Clock)
	next := services.ApplyTransition(current, to, cmd.Actor.UserID, strings.TrimSpace(cmd.Note), now)
	mutation := ports.CaseMutation{Case: next, ExpectedVersion: current.Version, Now: now}

	switch action {
	case services.CaseActionApprove:
		applicant, err := uc.Identities.GetIdentity(ctx, current.ApplicantID)
		if err != nil {
			return entities.CandidacyCase{}, domainerrors.Unavailable(err)
		}
		if applicant.Role != entities.RoleAdmin {
			mutation.RoleChange = &ports.RoleChange{UserID: applicant.UserID, Role: entities.RoleCandidate}
		}
	case services.CaseActionReject:
		// A pending appointment dies with the case and frees its slot.
		if next.Appointment != nil && next.Appointment.Status == entities.AppointmentStatusPending {
			decided := now
			next.Appointment.Status = entities.AppointmentStatusRejected
			next.Appointment.DecidedAt = &decided
			next.Appointment.DecidedBy = cmd.Actor.UserID
			next.AppointmentHistory = append(next.AppointmentHistory, entities.AppointmentDecision{
				SlotKey:   next.Appointment.SlotKey,
				Venue:     next.Appointment.Venue,
				Status:    entities.AppointmentStatusRejected,
				DecidedBy: cmd.Actor.UserID,
				Note:      "case rejected",
				DecidedAt: now,
			})
			mutation.Case = next
			mutation.ReleaseSlot = next.Appointment.SlotKey
		}
	}

	updated, err := uc.commit(ctx, mutation, "case_"+string(to))
	if err != nil {
		return entities.CandidacyCase{}, err
	}
	uc.Effects.NotifyIdentity(ctx, uc.Identities, updated.ApplicantID, transitionTemplate(to), map[string]string{
		"case_id":  updated.CaseID,
		"position": updated.Position,
		"status":   string(updated.Status),
		"note":     strings.TrimSpace(cmd.Note),
	}, now)
	return updated, nil
}

// RecordScreeningOutcome closes the case with passed or failed. A failed
// applicant goes back to voter in the same mutation.
func (uc CandidacyUseCase) RecordScreeningOutcome(ctx context.Context, cmd RecordOutcomeCommand) (entities.CandidacyCase, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.CandidacyCase{}, err
	}
	if cmd.Outcome != entities.ScreeningOutcomePassed && cmd.Outcome != entities.ScreeningOutcomeFailed {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"outcome": "must be passed or failed",
		})
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	current, err := uc.Cases.GetCase(ctx, cmd.CaseID)
	if err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	if err := services.CheckOutcomeReady(current); err != nil {
		return entities.CandidacyCase{}, err
	}

	now := nowFrom(uc.Clock)
	next := current.Clone()
	next.Audit = append(next.Audit, entities.CaseTransition{
		Field:      entities.AuditFieldScreening,
		From:       string(current.ScreeningOutcome),
		To:         string(cmd.Outcome),
		ActorID:    cmd.Actor.UserID,
		Note:       strings.TrimSpace(cmd.Note),
		OccurredAt: now,
	})
	next.ScreeningOutcome = cmd.Outcome
	next.UpdatedAt = now
	mutation := ports.CaseMutation{Case: next, ExpectedVersion: current.Version, Now: now}
	if cmd.Outcome == entities.ScreeningOutcomeFailed {
		applicant, err := uc.Identities.GetIdentity(ctx, current.ApplicantID)
		if err != nil {
			return entities.CandidacyCase{}, domainerrors.Unavailable(err)
		}
		if applicant.Role == entities.RoleCandidate {
			mutation.RoleChange = &ports.RoleChange{UserID: applicant.UserID, Role: entities.RoleVoter}
		}
	}

	updated, err := uc.commit(ctx, mutation, "screening_"+string(cmd.Outcome))
	if err != nil {
		return entities.CandidacyCase{}, err
	}
	uc.Effects.NotifyIdentity(ctx, uc.Identities, updated.ApplicantID, entities.TemplateScreeningOutcome, map[string]string{
		"case_id":  updated.CaseID,
		"position": updated.Position,
		"outcome":  string(updated.ScreeningOutcome),
	}, now)
	return updated, nil
}

type ReconcileRolesCommand struct {
	Actor entities.Actor
}

// ReconcileCandidateRoles is the admin entry point of RoleReconciliation.
func (uc CandidacyUseCase) ReconcileCandidateRoles(ctx context.Context, cmd ReconcileRolesCommand) (ReconcileResult, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return ReconcileResult{}, err
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()
	return RoleReconciliation{
		Cases:      uc.Cases,
		Identities: uc.Identities,
		Clock:      uc.Clock,
		Logger:     uc.Logger,
	}.Run(ctx)
}

func (uc CandidacyUseCase) commit(ctx context.Context, mutation ports.CaseMutation, action string) (entities.CandidacyCase, error) {
	logger := application.ResolveLogger(uc.Logger)
	updated, err := uc.Cases.ApplyCaseMutation(ctx, mutation)
	if err != nil {
		logger.Error("candidacy case mutation failed",
			"event", "election_case_mutation_failed",
			"module", application.Module,
			"layer", "application",
			"case_id", mutation.Case.CaseID,
			"action", action,
			"error", err.Error(),
		)
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	actorID := ""
	if n := len(updated.Audit); n > 0 {
		actorID = updated.Audit[n-1].ActorID
	}
	uc.Effects.Record(ctx, actorID, action, "candidacy_case", updated.CaseID, map[string]string{
		"status": string(updated.Status),
	}, mutation.Now)
	logger.Info("candidacy case updated",
		"event", "election_case_updated",
		"module", application.Module,
		"layer", "application",
		"case_id", updated.CaseID,
		"action", action,
		"status", string(updated.Status),
		"version", updated.Version,
	)
	return updated, nil
}

func validateDocument(kind entities.DocumentKind, ref string) error {
	if !kind.Valid() {
		return domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"document_kind": string(kind),
		})
	}
	if !validReference(ref) {
		return domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"document_kind": string(kind),
			"reference":     "must be an absolute http(s) URL",
		})
	}
	return nil
}

func transitionTemplate(status entities.CaseStatus) string {
	switch status {
	case entities.CaseStatusApproved:
		return entities.TemplateCaseApproved
	case entities.CaseStatusRejected:
		return entities.TemplateCaseRejected
	default:
		return entities.TemplateCaseReviewed
	}
}
