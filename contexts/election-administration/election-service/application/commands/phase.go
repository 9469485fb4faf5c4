package commands

import (
	"context"
	"log/slog"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"
)

type SetPhaseWindowCommand struct {
	Actor    entities.Actor
	Phase    entities.Phase
	StartsAt time.Time
	EndsAt   time.Time
}

type PhaseUseCase struct {
	Phases  ports.PhaseRepository
	Effects Effects
	Clock   ports.Clock
	Timeout time.Duration
	Logger  *slog.Logger
}

// SetPhaseWindow stores the interval. The cached flag is refreshed here for
// display only; gates always recompute from the interval.
func (uc PhaseUseCase) SetPhaseWindow(ctx context.Context, cmd SetPhaseWindowCommand) (entities.PhaseWindow, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.PhaseWindow{}, err
	}
	if !cmd.Phase.Valid() {
		return entities.PhaseWindow{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"phase": string(cmd.Phase),
		})
	}
	if cmd.StartsAt.IsZero() || cmd.EndsAt.IsZero() || !cmd.StartsAt.Before(cmd.EndsAt) {
		return entities.PhaseWindow{}, domainerrors.WithDetails(domainerrors.ErrInvalidWindow, map[string]any{
			"phase":     string(cmd.Phase),
			"starts_at": cmd.StartsAt.UTC().Format(time.RFC3339),
			"ends_at":   cmd.EndsAt.UTC().Format(time.RFC3339),
		})
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	now := nowFrom(uc.Clock)
	window := entities.PhaseWindow{
		Phase:     cmd.Phase,
		StartsAt:  cmd.StartsAt.UTC(),
		EndsAt:    cmd.EndsAt.UTC(),
		UpdatedAt: now,
		UpdatedBy: cmd.Actor.UserID,
	}
	window.CachedActive = window.IsOpen(now)
	if err := uc.Phases.SavePhaseWindow(ctx, window); err != nil {
		return entities.PhaseWindow{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "phase_window_set", "phase_window", string(cmd.Phase), map[string]string{
		"starts_at": window.StartsAt.Format(time.RFC3339),
		"ends_at":   window.EndsAt.Format(time.RFC3339),
	}, now)
	logger.Info("phase window set",
		"event", "election_phase_window_set",
		"module", application.Module,
		"layer", "application",
		"phase", string(cmd.Phase),
		"starts_at", window.StartsAt.Format(time.RFC3339),
		"ends_at", window.EndsAt.Format(time.RFC3339),
	)
	return window, nil
}
