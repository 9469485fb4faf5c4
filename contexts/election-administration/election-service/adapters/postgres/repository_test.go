package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"
	"campusvote/internal/platform/db"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestRepository starts a disposable Postgres. Set
// ELECTION_INTEGRATION_TESTS=1 to run these tests.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	if os.Getenv("ELECTION_INTEGRATION_TESTS") != "1" {
		t.Skip("set ELECTION_INTEGRATION_TESTS=1 to run postgres integration tests")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("election_test"),
		tcpostgres.WithUsername("election_test"),
		tcpostgres.WithPassword("election_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pg, err := db.ConnectWithOptions(ctx, dsn, db.PoolOptions{MaxOpenConns: 10, PingTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Close() })
	sqlDB, err := pg.SQL()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if err := Migrate(ctx, sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(pg.DB, nil)
}

var testNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func TestPostgresBallotExactlyOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var cast, duplicate atomic.Int32
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateBallot(ctx, entities.BallotRecord{
				VoterID:        "voter-1",
				VoterInstitute: "IAS",
				Selections:     map[string]json.RawMessage{"President": json.RawMessage(`["cand-1"]`)},
				SubmittedAt:    testNow,
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
	if cast.Load() != 1 || duplicate.Load() != 24 {
		t.Fatalf("expected exactly one ballot, got %d cast and %d duplicates", cast.Load(), duplicate.Load())
	}
	ballot, err := repo.GetBallot(ctx, "voter-1")
	if err != nil || string(ballot.Selections["President"]) != `["cand-1"]` {
		t.Fatalf("unexpected stored ballot %+v %v", ballot, err)
	}
}

func TestPostgresCaseMutationIsAtomic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	if err := repo.UpsertIdentity(ctx, entities.Identity{UserID: "stu-1", Role: entities.RoleVoter, UpdatedAt: testNow}); err != nil {
		t.Fatalf("upsert identity: %v", err)
	}
	if err := repo.CreateSlot(ctx, entities.ScreeningSlot{SlotKey: "2026-03-05T09:00:00Z", Available: true, UpdatedAt: testNow}); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	c := entities.CandidacyCase{
		CaseID:      "case-1",
		ApplicantID: "stu-1",
		Position:    "President",
		Status:      entities.CaseStatusReviewed,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
		Version:     1,
	}
	if err := repo.CreateCase(ctx, c); err != nil {
		t.Fatalf("create case: %v", err)
	}
	second := c
	second.CaseID = "case-2"
	if err := repo.CreateCase(ctx, second); !errors.Is(err, domainerrors.ErrActiveCaseExists) {
		t.Fatalf("expected active case conflict, got %v", err)
	}

	approved := c
	approved.Status = entities.CaseStatusApproved
	approved.Appointment = &entities.Appointment{SlotKey: "2026-03-05T09:00:00Z", Status: entities.AppointmentStatusPending, CreatedAt: testNow}

	// A missing identity rolls back the slot reservation.
	_, err := repo.ApplyCaseMutation(ctx, ports.CaseMutation{
		Case:            approved,
		ExpectedVersion: 1,
		ReserveSlot:     "2026-03-05T09:00:00Z",
		RoleChange:      &ports.RoleChange{UserID: "ghost", Role: entities.RoleCandidate},
		Now:             testNow,
	})
	if !errors.Is(err, domainerrors.ErrIdentityNotFound) {
		t.Fatalf("expected identity not found, got %v", err)
	}
	slot, _ := repo.GetSlot(ctx, "2026-03-05T09:00:00Z")
	if !slot.Available {
		t.Fatalf("expected slot reservation rolled back")
	}

	stored, err := repo.ApplyCaseMutation(ctx, ports.CaseMutation{
		Case:            approved,
		ExpectedVersion: 1,
		ReserveSlot:     "2026-03-05T09:00:00Z",
		RoleChange:      &ports.RoleChange{UserID: "stu-1", Role: entities.RoleCandidate},
		Now:             testNow,
	})
	if err != nil {
		t.Fatalf("apply mutation: %v", err)
	}
	if stored.Version != 2 || stored.Appointment == nil {
		t.Fatalf("unexpected stored case %+v", stored)
	}
	identity, _ := repo.GetIdentity(ctx, "stu-1")
	if identity.Role != entities.RoleCandidate {
		t.Fatalf("expected role flip, got %q", identity.Role)
	}
	if _, err := repo.ApplyCaseMutation(ctx, ports.CaseMutation{Case: approved, ExpectedVersion: 1, Now: testNow}); !errors.Is(err, domainerrors.ErrConcurrentModification) {
		t.Fatalf("expected stale version, got %v", err)
	}
	if err := repo.DeleteSlot(ctx, "2026-03-05T09:00:00Z"); !errors.Is(err, domainerrors.ErrSlotReserved) {
		t.Fatalf("expected reserved slot, got %v", err)
	}
}

func TestPostgresArchiveLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	_ = repo.UpsertIdentity(ctx, entities.Identity{UserID: "cand-1", Role: entities.RoleCandidate, UpdatedAt: testNow})
	_ = repo.CreateBallot(ctx, entities.BallotRecord{VoterID: "voter-1", Selections: map[string]json.RawMessage{}, SubmittedAt: testNow})

	if err := repo.AcquireArchiveLock(ctx, "run-1", testNow); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := repo.AcquireArchiveLock(ctx, "run-1", testNow); err != nil {
		t.Fatalf("re-acquire by holder: %v", err)
	}
	if err := repo.AcquireArchiveLock(ctx, "run-2", testNow); !errors.Is(err, domainerrors.ErrArchiveInProgress) {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	state, err := repo.LoadLiveState(ctx)
	if err != nil || len(state.Ballots) != 1 {
		t.Fatalf("unexpected live state %+v %v", state, err)
	}
	key := entities.ArchiveKey{Year: 2026, Timestamp: "20260302T100000Z"}
	snapshot := entities.ArchiveSnapshot{
		Key:       key,
		RunID:     "run-1",
		CreatedAt: testNow,
		Report: entities.ArchiveReport{
			Key:          key,
			TotalBallots: 1,
			Results:      []entities.PositionResult{{Key: entities.ScopedPosition("IAS", "Governor"), MaxSelections: 1}},
		},
		Raw: state,
	}
	if err := repo.WriteArchive(ctx, snapshot); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	if err := repo.WriteArchive(ctx, snapshot); err != nil {
		t.Fatalf("rewrite by same run must be idempotent: %v", err)
	}
	other := snapshot
	other.RunID = "run-2"
	if err := repo.WriteArchive(ctx, other); !errors.Is(err, domainerrors.ErrArchiveExists) {
		t.Fatalf("expected archive exists, got %v", err)
	}

	demoted, err := repo.DemoteCandidates(ctx, testNow)
	if err != nil || demoted != 1 {
		t.Fatalf("expected one demotion, got %d %v", demoted, err)
	}
	if err := repo.ClearLiveState(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if ballots, _ := repo.ListBallots(ctx); len(ballots) != 0 {
		t.Fatalf("expected ballots cleared")
	}
	if err := repo.ReleaseArchiveLock(ctx, "run-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	loaded, err := repo.GetArchive(ctx, key)
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if loaded.Report.Results[0].Key != entities.ScopedPosition("IAS", "Governor") {
		t.Fatalf("expected scoped key to survive storage, got %s", loaded.Report.Results[0].Key)
	}
	keys, _ := repo.ListArchives(ctx)
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("unexpected archive keys %v", keys)
	}
}
