package commands

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"campusvote/contexts/election-administration/election-service/adapters/memory"
	"campusvote/contexts/election-administration/election-service/domain/entities"
)

var admin = entities.Actor{UserID: "adm-1", Role: entities.RoleAdmin}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%04d", s.n), nil
}

func testDefinition() entities.BallotDefinition {
	return entities.BallotDefinition{
		Positions: []entities.PositionDefinition{
			{Name: "President", MaxSelections: 1, Scope: entities.ScopeGlobal},
			{Name: "Multimedia Officers", MaxSelections: 3, Scope: entities.ScopeGlobal},
			{Name: "Governor", MaxSelections: 1, Scope: entities.ScopeInstitute},
		},
		Institutes: []string{"IAS", "IBCE"},
	}
}

type fixture struct {
	store      *memory.Store
	clock      *fixedClock
	ids        *sequenceIDs
	definition entities.BallotDefinition
	slotSeq    int

	identities IdentityUseCase
	candidacy  CandidacyUseCase
	screening  ScreeningUseCase
	roster     RosterUseCase
	campaign   CampaignUseCase
	ballots    BallotUseCase
	phases     PhaseUseCase
	archive    *ArchiveUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fixedClock{now: time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)}
	ids := &sequenceIDs{}
	definition := testDefinition()
	effects := Effects{Activity: store, Outbox: store, IDGen: ids}

	f := &fixture{store: store, clock: clock, ids: ids, definition: definition}
	f.identities = IdentityUseCase{Identities: store, Definition: definition, Clock: clock}
	f.candidacy = CandidacyUseCase{Cases: store, Identities: store, Definition: definition, Effects: effects, Clock: clock, IDGen: ids}
	f.screening = ScreeningUseCase{Cases: store, Slots: store, Phases: store, Identities: store, Effects: effects, Clock: clock}
	f.roster = RosterUseCase{Roster: store, Cases: store, Identities: store, Definition: definition, Effects: effects, Clock: clock, IDGen: ids}
	f.campaign = CampaignUseCase{Materials: store, Roster: store, Phases: store, Identities: store, Effects: effects, Clock: clock, IDGen: ids}
	f.ballots = BallotUseCase{Ballots: store, Identities: store, Roster: store, Phases: store, Definition: definition, Clock: clock}
	f.phases = PhaseUseCase{Phases: store, Effects: effects, Clock: clock}
	f.archive = &ArchiveUseCase{Archives: store, Definition: definition, Effects: effects, Clock: clock, IDGen: ids}

	f.seedIdentity(t, admin.UserID, "", entities.RoleAdmin)
	return f
}

func (f *fixture) seedIdentity(t *testing.T, userID string, institute string, role entities.Role) entities.Identity {
	t.Helper()
	identity, err := f.identities.UpsertIdentity(context.Background(), UpsertIdentityCommand{
		Actor: admin,
		Identity: entities.Identity{
			UserID:        userID,
			Email:         userID + "@campus.test",
			EmailVerified: true,
			Role:          role,
			Institute:     institute,
			DisplayName:   "Student " + userID,
		},
	})
	if err != nil {
		t.Fatalf("seed identity %s: %v", userID, err)
	}
	return identity
}

func (f *fixture) openPhase(t *testing.T, phase entities.Phase) {
	t.Helper()
	now := f.clock.Now()
	if _, err := f.phases.SetPhaseWindow(context.Background(), SetPhaseWindowCommand{
		Actor:    admin,
		Phase:    phase,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("open %s window: %v", phase, err)
	}
}

func (f *fixture) createSlot(t *testing.T) string {
	t.Helper()
	f.slotSeq++
	key := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC).Add(time.Duration(f.slotSeq) * 30 * time.Minute).Format(time.RFC3339)
	if _, err := f.screening.CreateSlot(context.Background(), CreateSlotCommand{Actor: admin, SlotKey: key, Venue: "Room 101"}); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return key
}

func allDocuments() map[entities.DocumentKind]string {
	docs := make(map[entities.DocumentKind]string)
	for _, kind := range entities.RequiredDocuments {
		docs[kind] = "https://blobs.campus.test/" + string(kind) + ".pdf"
	}
	return docs
}

func studentActor(userID string) entities.Actor {
	return entities.Actor{UserID: userID, Role: entities.RoleVoter}
}

// reviewedCase submits a fully documented case and reviews it.
func (f *fixture) reviewedCase(t *testing.T, userID string, position string) entities.CandidacyCase {
	t.Helper()
	ctx := context.Background()
	c, err := f.candidacy.SubmitCase(ctx, SubmitCaseCommand{
		Actor:     studentActor(userID),
		Position:  position,
		Documents: allDocuments(),
	})
	if err != nil {
		t.Fatalf("submit case for %s: %v", userID, err)
	}
	c, err = f.candidacy.ReviewCase(ctx, TransitionCaseCommand{Actor: admin, CaseID: c.CaseID})
	if err != nil {
		t.Fatalf("review case: %v", err)
	}
	return c
}

// passedCandidate walks one applicant through screening onto the roster.
func (f *fixture) passedCandidate(t *testing.T, userID string, institute string, position string) entities.RosterEntry {
	t.Helper()
	ctx := context.Background()
	f.seedIdentity(t, userID, institute, entities.RoleVoter)
	f.openPhase(t, entities.PhaseScreening)
	c := f.reviewedCase(t, userID, position)
	slot := f.createSlot(t)
	if _, err := f.screening.RequestAppointment(ctx, RequestAppointmentCommand{Actor: studentActor(userID), CaseID: c.CaseID, SlotKey: slot}); err != nil {
		t.Fatalf("request appointment: %v", err)
	}
	if _, err := f.screening.DecideAppointment(ctx, DecideAppointmentCommand{Actor: admin, CaseID: c.CaseID, Approve: true}); err != nil {
		t.Fatalf("approve appointment: %v", err)
	}
	if _, err := f.candidacy.ApproveCase(ctx, TransitionCaseCommand{Actor: admin, CaseID: c.CaseID}); err != nil {
		t.Fatalf("approve case: %v", err)
	}
	if _, err := f.candidacy.RecordScreeningOutcome(ctx, RecordOutcomeCommand{Actor: admin, CaseID: c.CaseID, Outcome: entities.ScreeningOutcomePassed}); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	entry, err := f.roster.CreateRosterEntry(ctx, CreateRosterEntryCommand{Actor: admin, CaseID: c.CaseID})
	if err != nil {
		t.Fatalf("create roster entry: %v", err)
	}
	return entry
}
