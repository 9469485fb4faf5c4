package queries

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/domain/services"
	"campusvote/contexts/election-administration/election-service/ports"

	"golang.org/x/sync/errgroup"
)

// ElectionQueries serves every read model of the election service. Reads
// never take locks beyond a single store call.
type ElectionQueries struct {
	Store      ports.Store
	Definition entities.BallotDefinition
	Exporter   ports.ArchiveExporter
	Clock      ports.Clock
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (q ElectionQueries) now() time.Time {
	if q.Clock == nil {
		return time.Now().UTC()
	}
	return q.Clock.Now().UTC()
}

func requireAdmin(actor entities.Actor) error {
	if !actor.IsAdmin() {
		return domainerrors.ErrForbidden
	}
	return nil
}

func (q ElectionQueries) GetIdentity(ctx context.Context, actor entities.Actor, userID string) (entities.Identity, error) {
	if !actor.IsAdmin() && !actor.Is(userID) {
		return entities.Identity{}, domainerrors.ErrForbidden
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	identity, err := q.Store.GetIdentity(ctx, userID)
	return identity, domainerrors.Unavailable(err)
}

// GetCase is visible to the applicant and to admins.
func (q ElectionQueries) GetCase(ctx context.Context, actor entities.Actor, caseID string) (entities.CandidacyCase, error) {
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	c, err := q.Store.GetCase(ctx, caseID)
	if err != nil {
		return entities.CandidacyCase{}, domainerrors.Unavailable(err)
	}
	if !actor.IsAdmin() && !actor.Is(c.ApplicantID) {
		return entities.CandidacyCase{}, domainerrors.ErrForbidden
	}
	return c, nil
}

// ListCases restricts non-admin callers to their own cases.
func (q ElectionQueries) ListCases(ctx context.Context, actor entities.Actor, filter ports.CaseFilter) ([]entities.CandidacyCase, error) {
	if !actor.IsAdmin() {
		filter.ApplicantID = actor.UserID
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	items, err := q.Store.ListCases(ctx, filter)
	return items, domainerrors.Unavailable(err)
}

// ListOpenSlots fails closed: an unconfigured or closed screening window
// yields no slots.
func (q ElectionQueries) ListOpenSlots(ctx context.Context) ([]entities.ScreeningSlot, error) {
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	open, err := q.phaseOpen(ctx, entities.PhaseScreening)
	if err != nil {
		return nil, err
	}
	if !open {
		return []entities.ScreeningSlot{}, nil
	}
	slots, err := q.Store.ListSlots(ctx)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	items := make([]entities.ScreeningSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.Available {
			items = append(items, slot)
		}
	}
	return items, nil
}

func (q ElectionQueries) ListSlots(ctx context.Context, actor entities.Actor) ([]entities.ScreeningSlot, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	slots, err := q.Store.ListSlots(ctx)
	return slots, domainerrors.Unavailable(err)
}

func (q ElectionQueries) ListRoster(ctx context.Context) ([]entities.RosterEntry, error) {
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	items, err := q.Store.ListRoster(ctx)
	return items, domainerrors.Unavailable(err)
}

func (q ElectionQueries) GetRosterEntry(ctx context.Context, entryID string) (entities.RosterEntry, error) {
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	entry, err := q.Store.GetRosterEntry(ctx, entryID)
	return entry, domainerrors.Unavailable(err)
}

// ListMaterials shows the public only approved material. Admins see the
// whole queue and submitters also see their own pending items.
func (q ElectionQueries) ListMaterials(ctx context.Context, actor entities.Actor, filter ports.MaterialFilter) ([]entities.CampaignMaterial, error) {
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	items, err := q.Store.ListMaterials(ctx, filter)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	if actor.IsAdmin() {
		return items, nil
	}
	visible := make([]entities.CampaignMaterial, 0, len(items))
	for _, item := range items {
		if item.Status == entities.MaterialStatusApproved || actor.Is(item.SubmittedBy) {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

type BallotSection struct {
	Key           entities.PositionKey
	MaxSelections int
	Candidates    []entities.RosterEntry
}

type RenderedBallot struct {
	VoterID        string
	VoterInstitute string
	WindowOpen     bool
	AlreadyVoted   bool
	Sections       []BallotSection
}

// RenderBallot lays out the sections a voter may fill: every global position
// and the scoped positions of the voter's own institute, each listing only
// candidates eligible for that section.
func (q ElectionQueries) RenderBallot(ctx context.Context, actor entities.Actor) (RenderedBallot, error) {
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()

	var (
		voter  entities.Identity
		roster []entities.RosterEntry
		voted  bool
		open   bool
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		identity, err := q.Store.GetIdentity(groupCtx, actor.UserID)
		voter = identity
		return err
	})
	group.Go(func() error {
		items, err := q.Store.ListRoster(groupCtx)
		roster = items
		return err
	})
	group.Go(func() error {
		_, err := q.Store.GetBallot(groupCtx, actor.UserID)
		if err == nil {
			voted = true
			return nil
		}
		if domainerrors.KindOf(err) == domainerrors.KindNotFound {
			return nil
		}
		return err
	})
	group.Go(func() error {
		isOpen, err := q.phaseOpen(groupCtx, entities.PhaseVoting)
		open = isOpen
		return err
	})
	if err := group.Wait(); err != nil {
		return RenderedBallot{}, domainerrors.Unavailable(err)
	}

	ballot := RenderedBallot{
		VoterID:        voter.UserID,
		VoterInstitute: voter.Institute,
		WindowOpen:     open,
		AlreadyVoted:   voted,
	}
	for _, key := range q.Definition.SectionsFor(voter.Institute) {
		position, _ := q.Definition.Lookup(key)
		ballot.Sections = append(ballot.Sections, BallotSection{
			Key:           key,
			MaxSelections: position.MaxSelections,
			Candidates:    services.EligibleCandidates(roster, key),
		})
	}
	return ballot, nil
}

// GetBallot doubles as the has-voted check for the voter.
func (q ElectionQueries) GetBallot(ctx context.Context, actor entities.Actor, voterID string) (entities.BallotRecord, error) {
	if !actor.IsAdmin() && !actor.Is(voterID) {
		return entities.BallotRecord{}, domainerrors.ErrForbidden
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	ballot, err := q.Store.GetBallot(ctx, strings.TrimSpace(voterID))
	return ballot, domainerrors.Unavailable(err)
}

// resultsVisible lets admins read live tallies; everyone else waits for the
// voting window to end.
func (q ElectionQueries) resultsVisible(ctx context.Context, actor entities.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	window, err := q.Store.GetPhaseWindow(ctx, entities.PhaseVoting)
	if err != nil {
		if domainerrors.KindOf(err) == domainerrors.KindNotFound {
			return domainerrors.ErrForbidden
		}
		return domainerrors.Unavailable(err)
	}
	if window.EndsAt.IsZero() || !q.now().After(window.EndsAt) {
		return domainerrors.ErrForbidden
	}
	return nil
}

func (q ElectionQueries) Tabulate(ctx context.Context, actor entities.Actor, key entities.PositionKey) (entities.TallyResult, error) {
	position, ok := q.Definition.Lookup(key)
	if !ok {
		return entities.TallyResult{}, domainerrors.WithDetails(domainerrors.ErrUnknownPosition, map[string]any{
			"position": key.StorageKey(),
		})
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	if err := q.resultsVisible(ctx, actor); err != nil {
		return entities.TallyResult{}, err
	}
	ballots, roster, err := q.loadTallyInputs(ctx)
	if err != nil {
		return entities.TallyResult{}, err
	}
	return services.Tabulate(key, position, ballots, roster), nil
}

// TabulateAll tallies every global key and every institute's scoped keys in
// ballot order.
func (q ElectionQueries) TabulateAll(ctx context.Context, actor entities.Actor) ([]entities.TallyResult, error) {
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	if err := q.resultsVisible(ctx, actor); err != nil {
		return nil, err
	}
	ballots, roster, err := q.loadTallyInputs(ctx)
	if err != nil {
		return nil, err
	}
	keys := q.Definition.AllKeys()
	results := make([]entities.TallyResult, len(keys))
	for i, key := range keys {
		position, _ := q.Definition.Lookup(key)
		results[i] = services.Tabulate(key, position, ballots, roster)
	}
	application.ResolveLogger(q.Logger).Debug("election results tabulated",
		"event", "election_results_tabulated",
		"module", application.Module,
		"layer", "application",
		"ballot_count", len(ballots),
		"position_count", len(keys),
	)
	return results, nil
}

func (q ElectionQueries) loadTallyInputs(ctx context.Context) ([]entities.BallotRecord, []entities.RosterEntry, error) {
	var (
		ballots []entities.BallotRecord
		roster  []entities.RosterEntry
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		items, err := q.Store.ListBallots(groupCtx)
		ballots = items
		return err
	})
	group.Go(func() error {
		items, err := q.Store.ListRoster(groupCtx)
		roster = items
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, nil, domainerrors.Unavailable(err)
	}
	return ballots, roster, nil
}

type PhaseStatus struct {
	Window     entities.PhaseWindow
	Configured bool
	Open       bool
}

// WindowStatus derives Open from the interval; the stored cached flag is
// returned untouched for display.
func (q ElectionQueries) WindowStatus(ctx context.Context, phase entities.Phase) (PhaseStatus, error) {
	if !phase.Valid() {
		return PhaseStatus{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"phase": string(phase),
		})
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	window, err := q.Store.GetPhaseWindow(ctx, phase)
	if err != nil {
		if domainerrors.KindOf(err) == domainerrors.KindNotFound {
			return PhaseStatus{Window: entities.PhaseWindow{Phase: phase}}, nil
		}
		return PhaseStatus{}, domainerrors.Unavailable(err)
	}
	return PhaseStatus{Window: window, Configured: true, Open: window.IsOpen(q.now())}, nil
}

func (q ElectionQueries) ListPhaseStatuses(ctx context.Context) ([]PhaseStatus, error) {
	items := make([]PhaseStatus, 0, 3)
	for _, phase := range []entities.Phase{entities.PhaseScreening, entities.PhaseCampaign, entities.PhaseVoting} {
		status, err := q.WindowStatus(ctx, phase)
		if err != nil {
			return nil, err
		}
		items = append(items, status)
	}
	return items, nil
}

func (q ElectionQueries) phaseOpen(ctx context.Context, phase entities.Phase) (bool, error) {
	window, err := q.Store.GetPhaseWindow(ctx, phase)
	if err != nil {
		if domainerrors.KindOf(err) == domainerrors.KindNotFound {
			return false, nil
		}
		return false, domainerrors.Unavailable(err)
	}
	return window.IsOpen(q.now()), nil
}

func (q ElectionQueries) ListActivity(ctx context.Context, actor entities.Actor, limit int) ([]entities.ActivityEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	items, err := q.Store.ListActivity(ctx, limit)
	return items, domainerrors.Unavailable(err)
}

func (q ElectionQueries) ListArchives(ctx context.Context, actor entities.Actor) ([]entities.ArchiveKey, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	keys, err := q.Store.ListArchives(ctx)
	return keys, domainerrors.Unavailable(err)
}

func (q ElectionQueries) GetArchive(ctx context.Context, actor entities.Actor, key entities.ArchiveKey) (entities.ArchiveSnapshot, error) {
	if err := requireAdmin(actor); err != nil {
		return entities.ArchiveSnapshot{}, err
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	snapshot, err := q.Store.GetArchive(ctx, key)
	return snapshot, domainerrors.Unavailable(err)
}

func (q ElectionQueries) GetArchiveRun(ctx context.Context, actor entities.Actor, runID string) (entities.ArchiveRun, error) {
	if err := requireAdmin(actor); err != nil {
		return entities.ArchiveRun{}, err
	}
	ctx, cancel := application.Bound(ctx, q.Timeout)
	defer cancel()
	run, err := q.Store.GetArchiveRun(ctx, runID)
	return run, domainerrors.Unavailable(err)
}

// ExportArchive writes the archive's human-readable report through the
// configured exporter and returns its content type.
func (q ElectionQueries) ExportArchive(ctx context.Context, actor entities.Actor, key entities.ArchiveKey, w io.Writer) (string, error) {
	snapshot, err := q.GetArchive(ctx, actor, key)
	if err != nil {
		return "", err
	}
	if q.Exporter == nil {
		return "", domainerrors.Unavailable(errors.New("archive exporter not configured"))
	}
	if err := q.Exporter.Export(w, snapshot.Report); err != nil {
		application.ResolveLogger(q.Logger).Error("archive export failed",
			"event", "election_archive_export_failed",
			"module", application.Module,
			"layer", "application",
			"archive_key", key.String(),
			"error", err.Error(),
		)
		return "", domainerrors.Unavailable(err)
	}
	return q.Exporter.ContentType(), nil
}
