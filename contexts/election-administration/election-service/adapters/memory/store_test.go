package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"
)

func TestCreateBallotExactlyOnceUnderConcurrency(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	var conflicted atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.CreateBallot(ctx, entities.BallotRecord{
				VoterID:        "voter-1",
				VoterInstitute: "IAS",
				Selections: map[string]json.RawMessage{
					"President": json.RawMessage(fmt.Sprintf(`"cand-%d"`, i)),
				},
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domainerrors.ErrBallotAlreadyCast):
				conflicted.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 1 || conflicted.Load() != 49 {
		t.Fatalf("expected 1 success and 49 conflicts, got %d and %d", succeeded.Load(), conflicted.Load())
	}
	ballots, _ := store.ListBallots(ctx)
	if len(ballots) != 1 {
		t.Fatalf("expected exactly one stored ballot, got %d", len(ballots))
	}
}

func TestApplyCaseMutationReservesSlotExclusively(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)
	if err := store.CreateSlot(ctx, entities.ScreeningSlot{SlotKey: "2026-02-10T09:00:00Z", Venue: "Room 101", Available: true}); err != nil {
		t.Fatalf("create slot failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		_ = store.CreateCase(ctx, entities.CandidacyCase{
			CaseID:      fmt.Sprintf("case-%d", i),
			ApplicantID: fmt.Sprintf("stu-%d", i),
			Status:      entities.CaseStatusReviewed,
			Version:     1,
		})
	}

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	var taken atomic.Int32
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, _ := store.GetCase(ctx, fmt.Sprintf("case-%d", i))
			c.Appointment = &entities.Appointment{SlotKey: "2026-02-10T09:00:00Z", Status: entities.AppointmentStatusPending}
			_, err := store.ApplyCaseMutation(ctx, ports.CaseMutation{
				Case:            c,
				ExpectedVersion: 1,
				ReserveSlot:     "2026-02-10T09:00:00Z",
				Now:             now,
			})
			if err == nil {
				succeeded.Add(1)
			} else if errors.Is(err, domainerrors.ErrSlotTaken) {
				taken.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 1 || taken.Load() != 1 {
		t.Fatalf("expected one reservation and one slot conflict, got %d and %d", succeeded.Load(), taken.Load())
	}
	slot, _ := store.GetSlot(ctx, "2026-02-10T09:00:00Z")
	if slot.Available || slot.ReservedBy == "" {
		t.Fatalf("expected slot reserved, got %+v", slot)
	}
	loser := "case-0"
	if slot.ReservedBy == "case-0" {
		loser = "case-1"
	}
	c, _ := store.GetCase(ctx, loser)
	if c.Appointment != nil || c.Version != 1 {
		t.Fatalf("expected losing case untouched, got %+v", c)
	}
}

func TestApplyCaseMutationRollsBackOnMissingIdentity(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.CreateCase(ctx, entities.CandidacyCase{CaseID: "case-1", ApplicantID: "ghost", Status: entities.CaseStatusReviewed, Version: 1})

	c, _ := store.GetCase(ctx, "case-1")
	c.Status = entities.CaseStatusApproved
	_, err := store.ApplyCaseMutation(ctx, ports.CaseMutation{
		Case:            c,
		ExpectedVersion: 1,
		RoleChange:      &ports.RoleChange{UserID: "ghost", Role: entities.RoleCandidate},
	})
	if !errors.Is(err, domainerrors.ErrIdentityNotFound) {
		t.Fatalf("expected identity not found, got %v", err)
	}
	stored, _ := store.GetCase(ctx, "case-1")
	if stored.Status != entities.CaseStatusReviewed {
		t.Fatalf("expected status rollback, got %q", stored.Status)
	}
}

func TestApplyCaseMutationRejectsStaleVersion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.CreateCase(ctx, entities.CandidacyCase{CaseID: "case-1", ApplicantID: "stu-1", Status: entities.CaseStatusSubmitted, Version: 1})
	c, _ := store.GetCase(ctx, "case-1")
	c.Status = entities.CaseStatusReviewed
	if _, err := store.ApplyCaseMutation(ctx, ports.CaseMutation{Case: c, ExpectedVersion: 1}); err != nil {
		t.Fatalf("first mutation failed: %v", err)
	}
	if _, err := store.ApplyCaseMutation(ctx, ports.CaseMutation{Case: c, ExpectedVersion: 1}); !errors.Is(err, domainerrors.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
}

func TestCreateCaseSingleActivePerApplicant(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.CreateCase(ctx, entities.CandidacyCase{CaseID: "case-1", ApplicantID: "stu-1", Status: entities.CaseStatusSubmitted, Version: 1}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := store.CreateCase(ctx, entities.CandidacyCase{CaseID: "case-2", ApplicantID: "stu-1", Status: entities.CaseStatusSubmitted, Version: 1})
	if !errors.Is(err, domainerrors.ErrActiveCaseExists) {
		t.Fatalf("expected active case conflict, got %v", err)
	}

	c, _ := store.GetCase(ctx, "case-1")
	c.Status = entities.CaseStatusRejected
	if _, err := store.ApplyCaseMutation(ctx, ports.CaseMutation{Case: c, ExpectedVersion: 1}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if err := store.CreateCase(ctx, entities.CandidacyCase{CaseID: "case-2", ApplicantID: "stu-1", Status: entities.CaseStatusSubmitted, Version: 1}); err != nil {
		t.Fatalf("expected new case after rejection, got %v", err)
	}
}

func TestRosterEntryUniquePerCandidate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.CreateRosterEntry(ctx, entities.RosterEntry{EntryID: "e1", CandidateID: "stu-1", Position: "President"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := store.CreateRosterEntry(ctx, entities.RosterEntry{EntryID: "e2", CandidateID: "stu-1", Position: "Governor"})
	if !errors.Is(err, domainerrors.ErrRosterEntryExists) {
		t.Fatalf("expected roster conflict, got %v", err)
	}
	if err := store.UpdateRosterEntry(ctx, entities.RosterEntry{EntryID: "e1", CandidateID: "stu-9", Position: "Treasurer"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	entry, _ := store.GetRosterEntry(ctx, "e1")
	if entry.CandidateID != "stu-1" || entry.Position != "Treasurer" {
		t.Fatalf("expected candidate id kept and position edited, got %+v", entry)
	}
}

func TestArchiveLockAndClear(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	if err := store.AcquireArchiveLock(ctx, "run-1", now); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := store.AcquireArchiveLock(ctx, "run-2", now); !errors.Is(err, domainerrors.ErrArchiveInProgress) {
		t.Fatalf("expected archive in progress, got %v", err)
	}
	if err := store.AcquireArchiveLock(ctx, "run-1", now); err != nil {
		t.Fatalf("expected re-entrant acquire for the same run, got %v", err)
	}

	_ = store.UpsertIdentity(ctx, entities.Identity{UserID: "stu-1", Role: entities.RoleCandidate})
	_ = store.UpsertIdentity(ctx, entities.Identity{UserID: "adm-1", Role: entities.RoleAdmin})
	_ = store.CreateBallot(ctx, entities.BallotRecord{VoterID: "stu-1"})
	demoted, _ := store.DemoteCandidates(ctx, now)
	if demoted != 1 {
		t.Fatalf("expected 1 demotion, got %d", demoted)
	}
	if err := store.ClearLiveState(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	state, _ := store.LoadLiveState(ctx)
	if len(state.Ballots) != 0 || len(state.Identities) != 2 {
		t.Fatalf("expected ballots cleared and identities kept, got %+v", state)
	}

	snapshot := entities.ArchiveSnapshot{Key: entities.ArchiveKey{Year: 2026, Timestamp: "20260401T000000Z"}, RunID: "run-1"}
	if err := store.WriteArchive(ctx, snapshot); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.WriteArchive(ctx, snapshot); err != nil {
		t.Fatalf("expected idempotent rewrite for same run, got %v", err)
	}
	snapshot.RunID = "run-2"
	if err := store.WriteArchive(ctx, snapshot); !errors.Is(err, domainerrors.ErrArchiveExists) {
		t.Fatalf("expected archive exists, got %v", err)
	}
	_ = store.ReleaseArchiveLock(ctx, "run-1")
	if err := store.AcquireArchiveLock(ctx, "run-2", now); err != nil {
		t.Fatalf("expected lock free after release, got %v", err)
	}
}
