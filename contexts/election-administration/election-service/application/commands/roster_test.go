package commands

import (
	"context"
	"errors"
	"testing"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
)

func TestRosterEntryRequiresPassedCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedIdentity(t, "stu-1", "IAS", entities.RoleVoter)
	c := f.reviewedCase(t, "stu-1", "President")
	_, _ = f.candidacy.ApproveCase(ctx, TransitionCaseCommand{Actor: admin, CaseID: c.CaseID})

	_, err := f.roster.CreateRosterEntry(ctx, CreateRosterEntryCommand{Actor: admin, CaseID: c.CaseID})
	if !errors.Is(err, domainerrors.ErrCaseNotPassed) || domainerrors.KindOf(err) != domainerrors.KindValidation {
		t.Fatalf("expected case not passed, got %v", err)
	}
}

func TestRosterEntryOnePerCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.passedCandidate(t, "stu-1", "IBCE", "Governor")
	if entry.Institute != "IBCE" || entry.CandidateID != "stu-1" || entry.DisplayName != "Student stu-1" {
		t.Fatalf("unexpected roster entry: %+v", entry)
	}
	if !entry.EligibleFor(entities.ScopedPosition("IBCE", "Governor")) || entry.EligibleFor(entities.ScopedPosition("IAS", "Governor")) {
		t.Fatalf("expected eligibility only in own institute")
	}

	_, err := f.roster.CreateRosterEntry(ctx, CreateRosterEntryCommand{Actor: admin, CaseID: entry.CaseID, Position: "President"})
	if !errors.Is(err, domainerrors.ErrRosterEntryExists) {
		t.Fatalf("expected roster conflict, got %v", err)
	}
}

func TestRosterEntryEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.passedCandidate(t, "stu-1", "IAS", "President")

	chancellor := "Chancellor"
	_, err := f.roster.UpdateRosterEntry(ctx, UpdateRosterEntryCommand{Actor: admin, EntryID: entry.EntryID, Position: &chancellor})
	if !errors.Is(err, domainerrors.ErrUnknownPosition) {
		t.Fatalf("expected unknown position, got %v", err)
	}
	team := "Blue Party"
	updated, err := f.roster.UpdateRosterEntry(ctx, UpdateRosterEntryCommand{Actor: admin, EntryID: entry.EntryID, Team: &team})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Team != team || updated.EditedBy != admin.UserID {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if err := f.roster.DeleteRosterEntry(ctx, DeleteRosterEntryCommand{Actor: studentActor("stu-1"), EntryID: entry.EntryID}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err := f.roster.DeleteRosterEntry(ctx, DeleteRosterEntryCommand{Actor: admin, EntryID: entry.EntryID}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}
