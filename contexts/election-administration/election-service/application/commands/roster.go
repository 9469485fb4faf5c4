package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"
)

type CreateRosterEntryCommand struct {
	Actor  entities.Actor
	CaseID string
	// Position and Team default to the case values when empty.
	Position    string
	Team        string
	DisplayName string
}

type UpdateRosterEntryCommand struct {
	Actor       entities.Actor
	EntryID     string
	Position    *string
	Team        *string
	DisplayName *string
}

type DeleteRosterEntryCommand struct {
	Actor   entities.Actor
	EntryID string
}

type RosterUseCase struct {
	Roster     ports.RosterRepository
	Cases      ports.CaseRepository
	Identities ports.IdentityDirectory
	Definition entities.BallotDefinition
	Effects    Effects
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Timeout    time.Duration
	Logger     *slog.Logger
}

// CreateRosterEntry promotes a passed case onto the ballot. The candidate's
// institute comes from the identity directory, never from the request.
func (uc RosterUseCase) CreateRosterEntry(ctx context.Context, cmd CreateRosterEntryCommand) (entities.RosterEntry, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.RosterEntry{}, err
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	c, err := uc.Cases.GetCase(ctx, cmd.CaseID)
	if err != nil {
		return entities.RosterEntry{}, domainerrors.Unavailable(err)
	}
	if c.ScreeningOutcome != entities.ScreeningOutcomePassed {
		return entities.RosterEntry{}, domainerrors.WithDetails(domainerrors.ErrCaseNotPassed, map[string]any{
			"case_id":           c.CaseID,
			"screening_outcome": string(c.ScreeningOutcome),
		})
	}
	candidate, err := uc.Identities.GetIdentity(ctx, c.ApplicantID)
	if err != nil {
		return entities.RosterEntry{}, domainerrors.Unavailable(err)
	}

	position := firstNonEmpty(cmd.Position, c.Position)
	if err := uc.checkPosition(position, candidate.Institute); err != nil {
		return entities.RosterEntry{}, err
	}
	entryID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.RosterEntry{}, domainerrors.Unavailable(err)
	}
	now := nowFrom(uc.Clock)
	entry := entities.RosterEntry{
		EntryID:     entryID,
		CaseID:      c.CaseID,
		CandidateID: c.ApplicantID,
		DisplayName: firstNonEmpty(cmd.DisplayName, candidate.DisplayName, candidate.UserID),
		Position:    position,
		Institute:   candidate.Institute,
		Team:        firstNonEmpty(cmd.Team, c.Team),
		CreatedAt:   now,
		UpdatedAt:   now,
		EditedBy:    cmd.Actor.UserID,
	}
	if err := uc.Roster.CreateRosterEntry(ctx, entry); err != nil {
		logger.Warn("roster entry create failed",
			"event", "election_roster_create_failed",
			"module", application.Module,
			"layer", "application",
			"case_id", c.CaseID,
			"candidate_id", entry.CandidateID,
			"error", err.Error(),
		)
		return entities.RosterEntry{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "roster_entry_created", "roster_entry", entry.EntryID, map[string]string{
		"candidate_id": entry.CandidateID,
		"position":     entry.Position,
	}, now)
	logger.Info("roster entry created",
		"event", "election_roster_created",
		"module", application.Module,
		"layer", "application",
		"entry_id", entry.EntryID,
		"candidate_id", entry.CandidateID,
		"position", entry.Position,
	)
	return entry, nil
}

func (uc RosterUseCase) UpdateRosterEntry(ctx context.Context, cmd UpdateRosterEntryCommand) (entities.RosterEntry, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.RosterEntry{}, err
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	entry, err := uc.Roster.GetRosterEntry(ctx, cmd.EntryID)
	if err != nil {
		return entities.RosterEntry{}, domainerrors.Unavailable(err)
	}
	if cmd.Position != nil {
		position := strings.TrimSpace(*cmd.Position)
		if err := uc.checkPosition(position, entry.Institute); err != nil {
			return entities.RosterEntry{}, err
		}
		entry.Position = position
	}
	if cmd.Team != nil {
		entry.Team = strings.TrimSpace(*cmd.Team)
	}
	if cmd.DisplayName != nil {
		name := strings.TrimSpace(*cmd.DisplayName)
		if name == "" {
			return entities.RosterEntry{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
				"display_name": "must not be empty",
			})
		}
		entry.DisplayName = name
	}
	now := nowFrom(uc.Clock)
	entry.UpdatedAt = now
	entry.EditedBy = cmd.Actor.UserID
	if err := uc.Roster.UpdateRosterEntry(ctx, entry); err != nil {
		return entities.RosterEntry{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "roster_entry_updated", "roster_entry", entry.EntryID, map[string]string{
		"position": entry.Position,
	}, now)
	return entry, nil
}

func (uc RosterUseCase) DeleteRosterEntry(ctx context.Context, cmd DeleteRosterEntryCommand) error {
	if err := requireAdmin(cmd.Actor); err != nil {
		return err
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()
	if err := uc.Roster.DeleteRosterEntry(ctx, cmd.EntryID); err != nil {
		return domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "roster_entry_deleted", "roster_entry", strings.TrimSpace(cmd.EntryID), nil, nowFrom(uc.Clock))
	return nil
}

func (uc RosterUseCase) checkPosition(position string, institute string) error {
	definition, ok := uc.Definition.Position(position)
	if !ok {
		return domainerrors.WithDetails(domainerrors.ErrUnknownPosition, map[string]any{
			"position": position,
		})
	}
	if definition.Scope == entities.ScopeInstitute && !uc.Definition.HasInstitute(institute) {
		return domainerrors.WithDetails(domainerrors.ErrInstituteMismatch, map[string]any{
			"position":  position,
			"institute": institute,
		})
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
