package queries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"campusvote/contexts/election-administration/election-service/adapters/memory"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/domain/services"
	"campusvote/contexts/election-administration/election-service/ports"
)

var (
	admin     = entities.Actor{UserID: "adm-1", Role: entities.RoleAdmin}
	baseTime  = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	president = entities.GlobalPosition("President")
)

type staticClock struct{ now time.Time }

func (c *staticClock) Now() time.Time { return c.now }

type recordingExporter struct{ reports []entities.ArchiveReport }

func (e *recordingExporter) ContentType() string { return "text/plain" }

func (e *recordingExporter) Export(w io.Writer, report entities.ArchiveReport) error {
	e.reports = append(e.reports, report)
	_, err := io.WriteString(w, report.Key.String())
	return err
}

func newQueries(t *testing.T) (ElectionQueries, *memory.Store, *staticClock) {
	t.Helper()
	store := memory.NewStore()
	clock := &staticClock{now: baseTime}
	definition := entities.BallotDefinition{
		Positions: []entities.PositionDefinition{
			{Name: "President", MaxSelections: 1, Scope: entities.ScopeGlobal},
			{Name: "Governor", MaxSelections: 1, Scope: entities.ScopeInstitute},
		},
		Institutes: []string{"IAS", "IBCE"},
	}
	return ElectionQueries{Store: store, Definition: definition, Clock: clock}, store, clock
}

func seed(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	for _, identity := range []entities.Identity{
		{UserID: "voter-ias", Institute: "IAS", Role: entities.RoleVoter, EmailVerified: true},
		{UserID: "voter-ibce", Institute: "IBCE", Role: entities.RoleVoter, EmailVerified: true},
	} {
		if err := store.UpsertIdentity(ctx, identity); err != nil {
			t.Fatalf("seed identity: %v", err)
		}
	}
	for _, entry := range []entities.RosterEntry{
		{EntryID: "e-1", CandidateID: "cand-pres", Position: "President", Institute: "IAS"},
		{EntryID: "e-2", CandidateID: "cand-gov-ias", Position: "Governor", Institute: "IAS"},
		{EntryID: "e-3", CandidateID: "cand-gov-ibce", Position: "Governor", Institute: "IBCE"},
	} {
		if err := store.CreateRosterEntry(ctx, entry); err != nil {
			t.Fatalf("seed roster: %v", err)
		}
	}
	ballots := []entities.BallotRecord{
		{VoterID: "voter-ias", VoterInstitute: "IAS", Selections: map[string]json.RawMessage{
			"President":    services.EncodeSelection([]string{"cand-pres"}),
			"IAS-Governor": services.EncodeSelection([]string{"cand-gov-ias"}),
		}},
		{VoterID: "voter-ibce", VoterInstitute: "IBCE", Selections: map[string]json.RawMessage{
			"President": json.RawMessage(`"cand-pres"`),
		}},
	}
	for _, ballot := range ballots {
		if err := store.CreateBallot(ctx, ballot); err != nil {
			t.Fatalf("seed ballot: %v", err)
		}
	}
}

func setWindow(t *testing.T, store *memory.Store, phase entities.Phase, start time.Time, end time.Time) {
	t.Helper()
	if err := store.SavePhaseWindow(context.Background(), entities.PhaseWindow{Phase: phase, StartsAt: start, EndsAt: end, CachedActive: true}); err != nil {
		t.Fatalf("save window: %v", err)
	}
}

func TestRenderBallotShowsOnlyOwnInstituteSections(t *testing.T) {
	q, store, _ := newQueries(t)
	seed(t, store)
	setWindow(t, store, entities.PhaseVoting, baseTime.Add(-time.Hour), baseTime.Add(time.Hour))

	ballot, err := q.RenderBallot(context.Background(), entities.Actor{UserID: "voter-ias", Role: entities.RoleVoter})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !ballot.WindowOpen || !ballot.AlreadyVoted {
		t.Fatalf("unexpected ballot flags: %+v", ballot)
	}
	if len(ballot.Sections) != 2 {
		t.Fatalf("expected president and IAS governor sections, got %+v", ballot.Sections)
	}
	governor := ballot.Sections[1]
	if governor.Key != entities.ScopedPosition("IAS", "Governor") {
		t.Fatalf("unexpected scoped section %s", governor.Key)
	}
	if len(governor.Candidates) != 1 || governor.Candidates[0].CandidateID != "cand-gov-ias" {
		t.Fatalf("expected only the IAS governor candidate, got %+v", governor.Candidates)
	}
}

func TestTabulateAllAfterVotingCloses(t *testing.T) {
	q, store, clock := newQueries(t)
	seed(t, store)
	setWindow(t, store, entities.PhaseVoting, baseTime.Add(-time.Hour), baseTime.Add(time.Hour))
	voter := entities.Actor{UserID: "voter-ias", Role: entities.RoleVoter}

	if _, err := q.TabulateAll(context.Background(), voter); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected results hidden while voting is open, got %v", err)
	}
	live, err := q.Tabulate(context.Background(), admin, president)
	if err != nil {
		t.Fatalf("admin live tally failed: %v", err)
	}
	if live.VotesFor("cand-pres") != 2 {
		t.Fatalf("expected both ballot shapes counted, got %+v", live)
	}

	clock.now = baseTime.Add(2 * time.Hour)
	results, err := q.TabulateAll(context.Background(), voter)
	if err != nil {
		t.Fatalf("tabulate all failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected president and two governor tallies, got %d", len(results))
	}
	byKey := map[string]entities.TallyResult{}
	for _, result := range results {
		byKey[result.Key.StorageKey()] = result
	}
	if byKey["IAS-Governor"].VotesFor("cand-gov-ias") != 1 || byKey["IBCE-Governor"].Abstentions != 1 {
		t.Fatalf("unexpected governor tallies: %+v", byKey)
	}
	if _, err := q.Tabulate(context.Background(), admin, entities.ScopedPosition("IFM", "Governor")); !errors.Is(err, domainerrors.ErrUnknownPosition) {
		t.Fatalf("expected unknown position, got %v", err)
	}
}

func TestListOpenSlotsFailsClosed(t *testing.T) {
	q, store, _ := newQueries(t)
	ctx := context.Background()
	if err := store.CreateSlot(ctx, entities.ScreeningSlot{SlotKey: "2026-03-05T09:00:00Z", Venue: "Hall A", Available: true}); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	slots, err := q.ListOpenSlots(ctx)
	if err != nil || len(slots) != 0 {
		t.Fatalf("expected no slots without a screening window, got %v %v", slots, err)
	}
	setWindow(t, store, entities.PhaseScreening, baseTime.Add(-time.Hour), baseTime.Add(time.Hour))
	slots, err = q.ListOpenSlots(ctx)
	if err != nil || len(slots) != 1 {
		t.Fatalf("expected one open slot, got %v %v", slots, err)
	}
	if _, err := q.ListSlots(ctx, entities.Actor{UserID: "stu-1", Role: entities.RoleVoter}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestWindowStatusDerivesFromInterval(t *testing.T) {
	q, store, _ := newQueries(t)
	ctx := context.Background()
	status, err := q.WindowStatus(ctx, entities.PhaseVoting)
	if err != nil || status.Configured || status.Open {
		t.Fatalf("expected unconfigured window, got %+v %v", status, err)
	}
	setWindow(t, store, entities.PhaseVoting, baseTime.Add(time.Hour), baseTime.Add(2*time.Hour))
	status, err = q.WindowStatus(ctx, entities.PhaseVoting)
	if err != nil || !status.Configured || status.Open {
		t.Fatalf("expected stale cached flag ignored, got %+v %v", status, err)
	}
	statuses, err := q.ListPhaseStatuses(ctx)
	if err != nil || len(statuses) != 3 {
		t.Fatalf("expected three phases, got %v %v", statuses, err)
	}
}

func TestCaseAndMaterialVisibility(t *testing.T) {
	q, store, _ := newQueries(t)
	ctx := context.Background()
	for _, c := range []entities.CandidacyCase{
		{CaseID: "case-1", ApplicantID: "stu-1", Position: "President", Status: entities.CaseStatusSubmitted, Version: 1},
		{CaseID: "case-2", ApplicantID: "stu-2", Position: "President", Status: entities.CaseStatusSubmitted, Version: 1},
	} {
		if err := store.CreateCase(ctx, c); err != nil {
			t.Fatalf("create case: %v", err)
		}
	}
	student := entities.Actor{UserID: "stu-1", Role: entities.RoleVoter}
	cases, err := q.ListCases(ctx, student, ports.CaseFilter{})
	if err != nil || len(cases) != 1 || cases[0].CaseID != "case-1" {
		t.Fatalf("expected own case only, got %v %v", cases, err)
	}
	if _, err := q.GetCase(ctx, student, "case-2"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	for _, material := range []entities.CampaignMaterial{
		{MaterialID: "m-1", EntryID: "e-1", SubmittedBy: "stu-9", Status: entities.MaterialStatusApproved},
		{MaterialID: "m-2", EntryID: "e-1", SubmittedBy: "stu-9", Status: entities.MaterialStatusPending},
		{MaterialID: "m-3", EntryID: "e-2", SubmittedBy: "stu-1", Status: entities.MaterialStatusPending},
	} {
		if err := store.CreateMaterial(ctx, material); err != nil {
			t.Fatalf("create material: %v", err)
		}
	}
	visible, err := q.ListMaterials(ctx, student, ports.MaterialFilter{})
	if err != nil || len(visible) != 2 {
		t.Fatalf("expected approved plus own pending, got %v %v", visible, err)
	}
	all, _ := q.ListMaterials(ctx, admin, ports.MaterialFilter{})
	if len(all) != 3 {
		t.Fatalf("expected admin to see the full queue, got %d", len(all))
	}
}

func TestExportArchive(t *testing.T) {
	q, store, _ := newQueries(t)
	ctx := context.Background()
	key := entities.ArchiveKey{Year: 2026, Timestamp: "20260302T100000Z"}
	if err := store.WriteArchive(ctx, entities.ArchiveSnapshot{Key: key, RunID: "run-1", Report: entities.ArchiveReport{Key: key}}); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	if _, err := q.ExportArchive(ctx, admin, key, &bytes.Buffer{}); domainerrors.KindOf(err) != domainerrors.KindTransient {
		t.Fatalf("expected unavailable without exporter, got %v", err)
	}
	exporter := &recordingExporter{}
	q.Exporter = exporter
	out := &bytes.Buffer{}
	contentType, err := q.ExportArchive(ctx, admin, key, out)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if contentType != "text/plain" || out.String() != "2026/20260302T100000Z" || len(exporter.reports) != 1 {
		t.Fatalf("unexpected export %q %q", contentType, out.String())
	}
	if _, err := q.ExportArchive(ctx, entities.Actor{UserID: "stu-1"}, key, out); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
