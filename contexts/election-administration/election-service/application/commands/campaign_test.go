package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
)

func TestCampaignMaterialModeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.passedCandidate(t, "stu-1", "IAS", "President")
	owner := entities.Actor{UserID: "stu-1", Role: entities.RoleCandidate}
	cmd := SubmitMaterialCommand{Actor: owner, EntryID: entry.EntryID, MediaRef: "https://blobs.campus.test/poster.png", Caption: "Vote for change"}

	if _, err := f.campaign.SubmitMaterial(ctx, cmd); !errors.Is(err, domainerrors.ErrWindowClosed) {
		t.Fatalf("expected campaign window closed, got %v", err)
	}
	f.openPhase(t, entities.PhaseCampaign)

	intruder := cmd
	intruder.Actor = studentActor("stu-2")
	if _, err := f.campaign.SubmitMaterial(ctx, intruder); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}

	material, err := f.campaign.SubmitMaterial(ctx, cmd)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if material.Status != entities.MaterialStatusPending {
		t.Fatalf("expected pending, got %q", material.Status)
	}

	if _, err := f.campaign.ReviewMaterial(ctx, ReviewMaterialCommand{Actor: admin, MaterialID: material.MaterialID}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected reason required on rejection, got %v", err)
	}
	reviewed, err := f.campaign.ReviewMaterial(ctx, ReviewMaterialCommand{Actor: admin, MaterialID: material.MaterialID, Approve: true})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != entities.MaterialStatusApproved || reviewed.ReviewedAt == nil {
		t.Fatalf("unexpected review result: %+v", reviewed)
	}
	_, err = f.campaign.ReviewMaterial(ctx, ReviewMaterialCommand{Actor: admin, MaterialID: material.MaterialID, Reason: "late"})
	if !errors.Is(err, domainerrors.ErrMaterialDecided) {
		t.Fatalf("expected material already decided, got %v", err)
	}
}

func TestSetPhaseWindowValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	_, err := f.phases.SetPhaseWindow(ctx, SetPhaseWindowCommand{Actor: admin, Phase: entities.PhaseVoting, StartsAt: now, EndsAt: now})
	if !errors.Is(err, domainerrors.ErrInvalidWindow) {
		t.Fatalf("expected invalid window, got %v", err)
	}
	_, err = f.phases.SetPhaseWindow(ctx, SetPhaseWindowCommand{Actor: admin, Phase: "registration", StartsAt: now, EndsAt: now.Add(time.Hour)})
	if !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid phase, got %v", err)
	}
	window, err := f.phases.SetPhaseWindow(ctx, SetPhaseWindowCommand{Actor: admin, Phase: entities.PhaseVoting, StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("set window failed: %v", err)
	}
	if window.CachedActive {
		t.Fatalf("expected cached flag false for a future window")
	}
}
