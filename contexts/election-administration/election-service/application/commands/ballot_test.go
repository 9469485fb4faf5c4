package commands

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/domain/services"
)

func TestSubmitBallotRejectsForeignGovernorThenAcceptsCorrection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	president := f.passedCandidate(t, "cand-pres", "IAS", "President")
	iasGovernor := f.passedCandidate(t, "cand-gov-ias", "IAS", "Governor")
	ibceGovernor := f.passedCandidate(t, "cand-gov-ibce", "IBCE", "Governor")
	f.openPhase(t, entities.PhaseVoting)
	f.seedIdentity(t, "voter-ias", "IAS", entities.RoleVoter)

	_, err := f.ballots.SubmitBallot(ctx, SubmitBallotCommand{
		Actor: studentActor("voter-ias"),
		Selections: []services.Selection{
			{Key: entities.GlobalPosition("President"), CandidateIDs: []string{president.CandidateID}},
			{Key: entities.ScopedPosition("IBCE", "Governor"), CandidateIDs: []string{ibceGovernor.CandidateID}},
		},
	})
	if !errors.Is(err, domainerrors.ErrInstituteMismatch) {
		t.Fatalf("expected institute mismatch, got %v", err)
	}
	if _, err := f.store.GetBallot(ctx, "voter-ias"); !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("expected nothing stored after rejected ballot, got %v", err)
	}

	ballot, err := f.ballots.SubmitBallot(ctx, SubmitBallotCommand{
		Actor: studentActor("voter-ias"),
		Selections: []services.Selection{
			{Key: entities.GlobalPosition("President"), CandidateIDs: []string{president.CandidateID}},
			{Key: entities.ScopedPosition("IAS", "Governor"), CandidateIDs: []string{iasGovernor.CandidateID}},
		},
	})
	if err != nil {
		t.Fatalf("corrected ballot failed: %v", err)
	}
	if ballot.VoterInstitute != "IAS" || len(ballot.Selections) != 2 {
		t.Fatalf("unexpected ballot: %+v", ballot)
	}
	if _, ok := ballot.Selections["IAS-Governor"]; !ok {
		t.Fatalf("expected scoped storage key, got %+v", ballot.Selections)
	}
}

func TestSubmitBallotExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	president := f.passedCandidate(t, "cand-pres", "IAS", "President")
	f.openPhase(t, entities.PhaseVoting)
	f.seedIdentity(t, "voter-1", "IBCE", entities.RoleVoter)

	var wg sync.WaitGroup
	var cast atomic.Int32
	var duplicate atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ballots.SubmitBallot(ctx, SubmitBallotCommand{
				Actor:      studentActor("voter-1"),
				Selections: []services.Selection{{Key: entities.GlobalPosition("President"), CandidateIDs: []string{president.CandidateID}}},
			})
			switch {
			case err == nil:
				cast.Add(1)
			case errors.Is(err, domainerrors.ErrBallotAlreadyCast):
				duplicate.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if cast.Load() != 1 || duplicate.Load() != 19 {
		t.Fatalf("expected 1 ballot and 19 conflicts, got %d and %d", cast.Load(), duplicate.Load())
	}
	if domainerrors.KindOf(domainerrors.ErrBallotAlreadyCast) != domainerrors.KindConflict {
		t.Fatalf("duplicate ballot must be a conflict")
	}
}

func TestSubmitBallotResubmissionIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	president := f.passedCandidate(t, "cand-pres", "IAS", "President")
	runnerUp := f.passedCandidate(t, "cand-pres-2", "IBCE", "President")
	f.openPhase(t, entities.PhaseVoting)
	f.seedIdentity(t, "voter-1", "IAS", entities.RoleVoter)

	first, err := f.ballots.SubmitBallot(ctx, SubmitBallotCommand{
		Actor:      studentActor("voter-1"),
		Selections: []services.Selection{{Key: entities.GlobalPosition("President"), CandidateIDs: []string{president.CandidateID}}},
	})
	if err != nil {
		t.Fatalf("first ballot failed: %v", err)
	}

	tests := []struct {
		name    string
		advance time.Duration
		picks   []string
	}{
		{name: "too many selections", picks: []string{president.CandidateID, runnerUp.CandidateID}},
		{name: "after window closes", advance: 48 * time.Hour, picks: []string{runnerUp.CandidateID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f.clock.Advance(tc.advance)
			_, err := f.ballots.SubmitBallot(ctx, SubmitBallotCommand{
				Actor:      studentActor("voter-1"),
				Selections: []services.Selection{{Key: entities.GlobalPosition("President"), CandidateIDs: tc.picks}},
			})
			if !errors.Is(err, domainerrors.ErrBallotAlreadyCast) {
				t.Fatalf("expected ballot already cast, got %v", err)
			}
			if domainerrors.KindOf(err) != domainerrors.KindConflict {
				t.Fatalf("expected conflict kind, got %v", domainerrors.KindOf(err))
			}
		})
	}

	stored, err := f.store.GetBallot(ctx, "voter-1")
	if err != nil {
		t.Fatalf("load ballot: %v", err)
	}
	if !stored.SubmittedAt.Equal(first.SubmittedAt) || len(stored.Selections) != 1 {
		t.Fatalf("stored ballot changed: %+v", stored)
	}
}

func TestSubmitBallotValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	president := f.passedCandidate(t, "cand-pres", "IAS", "President")
	mm1 := f.passedCandidate(t, "cand-mm-1", "IAS", "Multimedia Officers")
	mm2 := f.passedCandidate(t, "cand-mm-2", "IBCE", "Multimedia Officers")
	mm3 := f.passedCandidate(t, "cand-mm-3", "IAS", "Multimedia Officers")
	mm4 := f.passedCandidate(t, "cand-mm-4", "IBCE", "Multimedia Officers")
	f.seedIdentity(t, "voter-1", "IAS", entities.RoleVoter)

	submit := func(selections ...services.Selection) error {
		_, err := f.ballots.SubmitBallot(ctx, SubmitBallotCommand{Actor: studentActor("voter-1"), Selections: selections})
		return err
	}

	if err := submit(services.Selection{Key: entities.GlobalPosition("President"), CandidateIDs: []string{president.CandidateID}}); !errors.Is(err, domainerrors.ErrWindowClosed) {
		t.Fatalf("expected window closed, got %v", err)
	}
	f.openPhase(t, entities.PhaseVoting)

	err := submit(services.Selection{
		Key:          entities.GlobalPosition("Multimedia Officers"),
		CandidateIDs: []string{mm1.CandidateID, mm2.CandidateID, mm3.CandidateID, mm4.CandidateID},
	})
	if !errors.Is(err, domainerrors.ErrCardinalityExceeded) {
		t.Fatalf("expected cardinality exceeded, got %v", err)
	}
	err = submit(services.Selection{Key: entities.GlobalPosition("President"), CandidateIDs: []string{mm1.CandidateID}})
	if !errors.Is(err, domainerrors.ErrIneligibleCandidate) {
		t.Fatalf("expected ineligible candidate, got %v", err)
	}
	err = submit(services.Selection{Key: entities.GlobalPosition("Chancellor"), CandidateIDs: []string{president.CandidateID}})
	if !errors.Is(err, domainerrors.ErrUnknownPosition) {
		t.Fatalf("expected unknown position, got %v", err)
	}

	ballot, err := f.ballots.SubmitBallot(ctx, SubmitBallotCommand{Actor: studentActor("voter-1"), Selections: []services.Selection{{
		Key:          entities.GlobalPosition("Multimedia Officers"),
		CandidateIDs: []string{mm1.CandidateID, mm1.CandidateID, mm2.CandidateID, mm3.CandidateID},
	}}})
	if err != nil {
		t.Fatalf("duplicate picks should collapse, got %v", err)
	}
	ids, ok := services.DecodeSelection(ballot.Selections["Multimedia Officers"])
	if !ok || len(ids) != 3 {
		t.Fatalf("expected three distinct picks, got %v", ids)
	}
}

func TestSubmitBallotRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openPhase(t, entities.PhaseVoting)
	_, err := f.identities.UpsertIdentity(ctx, UpsertIdentityCommand{Actor: admin, Identity: entities.Identity{
		UserID:    "voter-unverified",
		Email:     "u@campus.test",
		Institute: "IAS",
	}})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	_, err = f.ballots.SubmitBallot(ctx, SubmitBallotCommand{Actor: studentActor("voter-unverified")})
	if !errors.Is(err, domainerrors.ErrVoterNotVerified) {
		t.Fatalf("expected voter not verified, got %v", err)
	}
}
