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

const maxCaptionLength = 2000

type SubmitMaterialCommand struct {
	Actor    entities.Actor
	EntryID  string
	MediaRef string
	Caption  string
}

type ReviewMaterialCommand struct {
	Actor      entities.Actor
	MaterialID string
	Approve    bool
	Reason     string
}

// CampaignUseCase runs the campaign moderation queue.
type CampaignUseCase struct {
	Materials  ports.CampaignRepository
	Roster     ports.RosterRepository
	Phases     ports.PhaseRepository
	Identities ports.IdentityDirectory
	Effects    Effects
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (uc CampaignUseCase) SubmitMaterial(ctx context.Context, cmd SubmitMaterialCommand) (entities.CampaignMaterial, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !validReference(cmd.MediaRef) {
		return entities.CampaignMaterial{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"media_ref": "must be an absolute http(s) URL",
		})
	}
	if len(cmd.Caption) > maxCaptionLength {
		return entities.CampaignMaterial{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"caption": "too long",
		})
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	entry, err := uc.Roster.GetRosterEntry(ctx, cmd.EntryID)
	if err != nil {
		return entities.CampaignMaterial{}, domainerrors.Unavailable(err)
	}
	if !cmd.Actor.Is(entry.CandidateID) && !cmd.Actor.IsAdmin() {
		return entities.CampaignMaterial{}, domainerrors.ErrForbidden
	}
	now := nowFrom(uc.Clock)
	if err := requireWindowOpen(ctx, uc.Phases, entities.PhaseCampaign, now); err != nil {
		return entities.CampaignMaterial{}, err
	}
	materialID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.CampaignMaterial{}, domainerrors.Unavailable(err)
	}
	material := entities.CampaignMaterial{
		MaterialID:  materialID,
		EntryID:     entry.EntryID,
		SubmittedBy: cmd.Actor.UserID,
		MediaRef:    strings.TrimSpace(cmd.MediaRef),
		Caption:     strings.TrimSpace(cmd.Caption),
		Status:      entities.MaterialStatusPending,
		CreatedAt:   now,
	}
	if err := uc.Materials.CreateMaterial(ctx, material); err != nil {
		return entities.CampaignMaterial{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "material_submitted", "campaign_material", material.MaterialID, map[string]string{
		"entry_id": entry.EntryID,
	}, now)
	logger.Info("campaign material submitted",
		"event", "election_material_submitted",
		"module", application.Module,
		"layer", "application",
		"material_id", material.MaterialID,
		"entry_id", entry.EntryID,
	)
	return material, nil
}

func (uc CampaignUseCase) ReviewMaterial(ctx context.Context, cmd ReviewMaterialCommand) (entities.CampaignMaterial, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.CampaignMaterial{}, err
	}
	if !cmd.Approve && strings.TrimSpace(cmd.Reason) == "" {
		return entities.CampaignMaterial{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"reason": "required when rejecting",
		})
	}
	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	material, err := uc.Materials.GetMaterial(ctx, cmd.MaterialID)
	if err != nil {
		return entities.CampaignMaterial{}, domainerrors.Unavailable(err)
	}
	if material.Status != entities.MaterialStatusPending {
		return entities.CampaignMaterial{}, domainerrors.WithDetails(domainerrors.ErrMaterialDecided, map[string]any{
			"material_id": material.MaterialID,
			"status":      string(material.Status),
		})
	}
	now := nowFrom(uc.Clock)
	reviewedAt := now
	material.Status = entities.MaterialStatusRejected
	if cmd.Approve {
		material.Status = entities.MaterialStatusApproved
	}
	material.ReviewedBy = cmd.Actor.UserID
	material.ReviewedAt = &reviewedAt
	material.Reason = strings.TrimSpace(cmd.Reason)
	if err := uc.Materials.DecideMaterial(ctx, material); err != nil {
		return entities.CampaignMaterial{}, domainerrors.Unavailable(err)
	}
	uc.Effects.Record(ctx, cmd.Actor.UserID, "material_"+string(material.Status), "campaign_material", material.MaterialID, nil, now)
	uc.Effects.NotifyIdentity(ctx, uc.Identities, material.SubmittedBy, entities.TemplateMaterialReviewed, map[string]string{
		"material_id": material.MaterialID,
		"status":      string(material.Status),
		"reason":      material.Reason,
	}, now)
	logger.Info("campaign material reviewed",
		"event", "election_material_reviewed",
		"module", application.Module,
		"layer", "application",
		"material_id", material.MaterialID,
		"status", string(material.Status),
	)
	return material, nil
}
