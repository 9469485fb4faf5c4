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

type CreateSlotCommand struct {
	Actor   entities.Actor
	SlotKey string
	Venue   string
}

type DeleteSlotCommand struct {
	Actor   entities.Actor
	SlotKey string
}

type RequestAppointmentCommand struct {
	Actor   entities.Actor
	CaseID  string
	SlotKey string
}

type DecideAppointmentCommand struct {
	Actor   entities.Actor
	CaseID  string
	Approve bool
	Note    string
}

// ScreeningUseCase schedules screening appointments against the global slot
// pool. Reserving or releasing a slot always rides on the case mutation.
type ScreeningUseCase struct {
	Cases      ports.CaseRepository
	Slots      ports.SlotRepository
	Phases     ports.PhaseRepository
	Identities ports.IdentityDirectory
	Effects    Effects
	Clock      ports.Clock
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NormalizeSlotKey parses an RFC3339 timestamp and returns its canonical UTC
// form, which is the slot's identity.
func NormalizeSlotKey(raw string) (string, error) {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return "", domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"slot_key": "must be an RFC3339 timestamp",
		})
	}
	return parsed.UTC().Format(time.RFC3339), nil
}

func (uc ScreeningUseCase) CreateSlot(ctx context.Context, cmd CreateSlotCommand) (entities.ScreeningSlot, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.ScreeningSlot{}, err
	}
	slotKey, err := NormalizeSlotKey(cmd.SlotKey)
	if err != nil {
		return entities.ScreeningSlot{}, err
	}
	if strings.TrimSpace(cmd.Venue) == "" {
		return entities.ScreeningSlot{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"venue": "required",
		})
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	now := nowFrom(uc.Clock)
	slot := entities.ScreeningSlot{
		SlotKey:   slotKey,
		Venue:     strings.TrimSpace(cmd.Venue),
		Available: true,
		UpdatedAt: now,
	}
	if err := uc.Slots.CreateSlot(ctx, slot); err != nil {
		return entities.ScreeningSlot{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "slot_created", "screening_slot", slotKey, map[string]string{
		"venue": slot.Venue,
	}, now)
	logger.Info("screening slot created",
		"event", "election_slot_created",
		"module", application.Module,
		"layer", "application",
		"slot_key", slotKey,
	)
	return slot, nil
}

func (uc ScreeningUseCase) DeleteSlot(ctx context.Context, cmd DeleteSlotCommand) error {
	if err := requireAdmin(cmd.Actor); err != nil {
		return err
	}
	slotKey, err := NormalizeSlotKey(cmd.SlotKey)
	if err != nil {
		return err
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()
	if err := uc.Slots.DeleteSlot(ctx, slotKey); err != nil {
		return domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "slot_deleted", "screening_slot", slotKey, nil, nowFrom(uc.Clock))
	return nil
}

// RequestAppointment books slotKey for the caller's reviewed case. The slot
// flip and the pending appointment are one mutation, so two applicants
// racing for one slot yield one success and one ErrSlotTaken.
func (uc ScreeningUseCase) RequestAppointment(ctx context.Context, cmd RequestAppointmentCommand) (entities.CandidacyCase, error) {
	logger := application.ResolveLogger(uc.Logger)
	slotKey, err := NormalizeSlotKey(cmd.SlotKey)
	if err != nil {
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
	now := nowFrom(uc.Clock)
	if err := requireWindowOpen(ctx, uc.Phases, entities.PhaseScreening, now); err != nil {
		return entities.CandidacyCase{}, err
	}
	if err := services.CheckAppointmentRequest(current); err != nil {
		logger.Warn("appointment request refused",
			"event", "election_appointment_request_refused",
			"module", application.Module,
			"layer", "application",
			"case_id", current.CaseID,
			"status", string(current.Status),
			"error", err.Error(),
		)
		return entities.CandidacyCase{}, err
	}
	slot, err := uc.Slots.GetSlot(ctx, slotKey)
	if err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	if !slot.Available {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrSlotTaken, map[string]any{
			"slot_key": slotKey,
		})
	}

	next := current.Clone()
	previous := ""
	if current.Appointment != nil {
		previous = current.Appointment.SlotKey
	}
	next.Appointment = &entities.Appointment{
		SlotKey:   slot.SlotKey,
		Venue:     slot.Venue,
		Status:    entities.AppointmentStatusPending,
		CreatedAt: now,
	}
	next.Audit = append(next.Audit, entities.CaseTransition{
		Field:      entities.AuditFieldAppointment,
		From:       previous,
		To:         slot.SlotKey,
		ActorID:    cmd.Actor.UserID,
		Note:       string(entities.AppointmentStatusPending),
		OccurredAt: now,
	})
	next.UpdatedAt = now

	updated, err := uc.Cases.ApplyCaseMutation(ctx, ports.CaseMutation{
		Case:            next,
		ExpectedVersion: current.Version,
		ReserveSlot:     slot.SlotKey,
		Now:             now,
	})
	if err != nil {
		logger.Warn("appointment reservation failed",
			"event", "election_appointment_reserve_failed",
			"module", application.Module,
			"layer", "application",
			"case_id", current.CaseID,
			"slot_key", slot.SlotKey,
			"error", err.Error(),
		)
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "appointment_requested", "candidacy_case", updated.CaseID, map[string]string{
		"slot_key": slot.SlotKey,
	}, now)
	logger.Info("appointment reserved",
		"event", "election_appointment_reserved",
		"module", application.Module,
		"layer", "application",
		"case_id", updated.CaseID,
		"slot_key", slot.SlotKey,
	)
	return updated, nil
}

// DecideAppointment approves or rejects a pending appointment. Rejection
// frees the slot in the same mutation and opens the case for a reschedule.
func (uc ScreeningUseCase) DecideAppointment(ctx context.Context, cmd DecideAppointmentCommand) (entities.CandidacyCase, error) {
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
	if current.Terminal() {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrCaseTerminal, map[string]any{
			"case_id": current.CaseID,
		})
	}
	if current.Appointment == nil {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrAppointmentNotFound, map[string]any{
			"case_id": current.CaseID,
		})
	}
	if current.Appointment.Status != entities.AppointmentStatusPending {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrAppointmentDecided, map[string]any{
			"case_id": current.CaseID,
			"status":  string(current.Appointment.Status),
		})
	}

	now := nowFrom(uc.Clock)
	status := entities.AppointmentStatusRejected
	if cmd.Approve {
		status = entities.AppointmentStatusApproved
	}
	next := current.Clone()
	decidedAt := now
	next.Appointment.Status = status
	next.Appointment.DecidedAt = &decidedAt
	next.Appointment.DecidedBy = cmd.Actor.UserID
	next.AppointmentHistory = append(next.AppointmentHistory, entities.AppointmentDecision{
		SlotKey:   next.Appointment.SlotKey,
		Venue:     next.Appointment.Venue,
		Status:    status,
		DecidedBy: cmd.Actor.UserID,
		Note:      strings.TrimSpace(cmd.Note),
		DecidedAt: now,
	})
	next.Audit = append(next.Audit, entities.CaseTransition{
		Field:      entities.AuditFieldAppointment,
		From:       string(entities.AppointmentStatusPending),
		To:         string(status),
		ActorID:    cmd.Actor.UserID,
		Note:       strings.TrimSpace(cmd.Note),
		OccurredAt: now,
	})
	next.UpdatedAt = now

	mutation := ports.CaseMutation{Case: next, ExpectedVersion: current.Version, Now: now}
	if status == entities.AppointmentStatusRejected {
		mutation.ReleaseSlot = next.Appointment.SlotKey
	}
	updated, err := uc.Cases.ApplyCaseMutation(ctx, mutation)
	if err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "appointment_"+string(status), "candidacy_case", updated.CaseID, map[string]string{
		"slot_key": updated.Appointment.SlotKey,
	}, now)
	uc.Effects.NotifyIdentity(ctx, uc.Identities, updated.ApplicantID, entities.TemplateAppointmentDecided, map[string]string{
		"case_id":  updated.CaseID,
		"slot_key": updated.Appointment.SlotKey,
		"venue":    updated.Appointment.Venue,
		"status":   string(status),
		"note":     strings.TrimSpace(cmd.Note),
	}, now)
	logger.Info("appointment decided",
		"event", "election_appointment_decided",
		"module", application.Module,
		"layer", "application",
		"case_id", updated.CaseID,
		"slot_key", updated.Appointment.SlotKey,
		"status", string(status),
	)
	return updated, nil
}
