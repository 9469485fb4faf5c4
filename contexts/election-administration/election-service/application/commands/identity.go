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

// UpsertIdentityCommand syncs one account from the identity provider.
type UpsertIdentityCommand struct {
	Actor    entities.Actor
	Identity entities.Identity
}

type IdentityUseCase struct {
	Identities ports.IdentityDirectory
	Definition entities.BallotDefinition
	Clock      ports.Clock
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (uc IdentityUseCase) UpsertIdentity(ctx context.Context, cmd UpsertIdentityCommand) (entities.Identity, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.Identity{}, err
	}
	identity := cmd.Identity
	identity.UserID = strings.TrimSpace(identity.UserID)
	identity.Email = strings.TrimSpace(identity.Email)
	identity.Institute = strings.TrimSpace(identity.Institute)
	identity.DisplayName = strings.TrimSpace(identity.DisplayName)
	if identity.Role == "" {
		identity.Role = entities.RoleVoter
	}

	problems := map[string]any{}
	if identity.UserID == "" {
		problems["user_id"] = "required"
	}
	if !identity.Role.Valid() {
		problems["role"] = "must be voter, candidate or admin"
	}
	if identity.Institute != "" && len(uc.Definition.Institutes) > 0 && !uc.Definition.HasInstitute(identity.Institute) {
		problems["institute"] = "unknown institute"
	}
	if len(problems) > 0 {
		logger.Warn("identity upsert validation failed",
			"event", "election_identity_upsert_invalid",
			"module", application.Module,
			"layer", "application",
			"user_id", identity.UserID,
		)
		return entities.Identity{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, problems)
	}

	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	identity.UpdatedAt = nowFrom(uc.Clock)
	if err := uc.Identities.UpsertIdentity(ctx, identity); err != nil {
		logger.Error("identity upsert failed",
			"event", "election_identity_upsert_failed",
			"module", application.Module,
			"layer", "application",
			"user_id", identity.UserID,
			"error", err.Error(),
		)
		return entities.Identity{}, domainerrors.Unavailable(err)
	}
	logger.Info("identity upserted",
		"event", "election_identity_upserted",
		"module", application.Module,
		"layer", "application",
		"user_id", identity.UserID,
		"role", string(identity.Role),
	)
	return identity, nil
}
