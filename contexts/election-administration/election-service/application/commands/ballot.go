package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/domain/services"
	"campusvote/contexts/election-administration/election-service/ports"
)

type SubmitBallotCommand struct {
	Actor      entities.Actor
	Selections []services.Selection
}

// BallotUseCase accepts each voter's single immutable ballot.
type BallotUseCase struct {
	Ballots    ports.BallotRepository
	Identities ports.IdentityDirectory
	Roster     ports.RosterRepository
	Phases     ports.PhaseRepository
	Definition entities.BallotDefinition
	Clock      ports.Clock
	Timeout    time.Duration
	Logger     *slog.Logger
}

// SubmitBallot validates the whole ballot before a single create-if-absent
// write keyed by voter id. Any invalid section rejects the entire ballot, so
// nothing partial is ever stored.
func (uc BallotUseCase) SubmitBallot(ctx context.Context, cmd SubmitBallotCommand) (entities.BallotRecord, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireActor(cmd.Actor); err != nil {
		return entities.BallotRecord{}, err
	}
	logger.Info("ballot submission started",
		"event", "election_ballot_submit_started",
		"module", application.Module,
		"layer", "application",
		"voter_id", cmd.Actor.UserID,
		"section_count", len(cmd.Selections),
	)
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	// A voter who already voted gets a conflict whatever else is wrong with
	// the resubmission. CreateBallot still decides concurrent races.
	if err := uc.requireNoBallot(ctx, cmd.Actor.UserID); err != nil {
		return entities.BallotRecord{}, err
	}

	now := nowFrom(uc.Clock)
	if err := requireWindowOpen(ctx, uc.Phases, entities.PhaseVoting, now); err != nil {
		logger.Warn("ballot submitted outside voting window",
			"event", "election_ballot_window_closed",
			"module", application.Module,
			"layer", "application",
			"voter_id", cmd.Actor.UserID,
		)
		return entities.BallotRecord{}, err
	}
	voter, err := uc.Identities.GetIdentity(ctx, cmd.Actor.UserID)
	if err != nil {
		return entities.BallotRecord{}, domainerrors.Unavailable(err)
	}
	if !voter.EmailVerified {
		return entities.BallotRecord{}, domainerrors.WithDetails(domainerrors.ErrVoterNotVerified, map[string]any{
			"voter_id": voter.UserID,
		})
	}
	roster, err := uc.Roster.ListRoster(ctx)
	if err != nil {
		return entities.BallotRecord{}, domainerrors.Unavailable(err)
	}
	normalized, err := services.NormalizeSelections(uc.Definition, voter, roster, cmd.Selections)
	if err != nil {
		logger.Warn("ballot validation failed",
			"event", "election_ballot_invalid",
			"module", application.Module,
			"layer", "application",
			"voter_id", voter.UserID,
			"error", err.Error(),
		)
		return entities.BallotRecord{}, err
	}

	ballot := entities.BallotRecord{
		VoterID:        voter.UserID,
		VoterInstitute: voter.Institute,
		Selections:     make(map[string]json.RawMessage, len(normalized)),
		SubmittedAt:    now,
	}
	for key, ids := range normalized {
		ballot.Selections[key.StorageKey()] = services.EncodeSelection(ids)
	}
	if err := uc.Ballots.CreateBallot(ctx, ballot); err != nil {
		logger.Warn("ballot write refused",
			"event", "election_ballot_write_failed",
			"module", application.Module,
			"layer", "application",
			"voter_id", voter.UserID,
			"error", err.Error(),
		)
		return entities.BallotRecord{}, domainerrors.Unavailable(err)
	}
	logger.Info("ballot cast",
		"event", "election_ballot_cast",
		"module", application.Module,
		"layer", "application",
		"voter_id", voter.UserID,
		"voter_institute", voter.Institute,
		"section_count", len(ballot.Selections),
	)
	return ballot, nil
}

func (uc BallotUseCase) requireNoBallot(ctx context.Context, voterID string) error {
	existing, err := uc.Ballots.GetBallot(ctx, voterID)
	switch {
	case err == nil:
		return domainerrors.WithDetails(domainerrors.ErrBallotAlreadyCast, map[string]any{
			"voter_id":     existing.VoterID,
			"submitted_at": existing.SubmittedAt,
		})
	case errors.Is(err, domainerrors.ErrBallotNotFound):
		return nil
	default:
		return domainerrors.Unavailable(err)
	}
}
