package httpadapter

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"campusvote/contexts/election-administration/election-service/application/commands"
	"campusvote/contexts/election-administration/election-service/application/queries"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/domain/services"
	"campusvote/contexts/election-administration/election-service/ports"
	httptransport "campusvote/contexts/election-administration/election-service/transport/http"
)

type Handler struct {
	Identities commands.IdentityUseCase
	Candidacy  commands.CandidacyUseCase
	Screening  commands.ScreeningUseCase
	Roster     commands.RosterUseCase
	Campaign   commands.CampaignUseCase
	Ballots    commands.BallotUseCase
	Phases     commands.PhaseUseCase
	Archive    *commands.ArchiveUseCase
	Queries    queries.ElectionQueries
	Logger     *slog.Logger
}

func (h Handler) UpsertIdentityHandler(
	ctx context.Context,
	actor entities.Actor,
	userID string,
	req httptransport.UpsertIdentityRequest,
) (httptransport.IdentityResponse, error) {
	identity, err := h.Identities.UpsertIdentity(ctx, commands.UpsertIdentityCommand{
		Actor: actor,
		Identity: entities.Identity{
			UserID:        userID,
			Email:         req.Email,
			EmailVerified: req.EmailVerified,
			Role:          entities.Role(strings.TrimSpace(req.Role)),
			Institute:     req.Institute,
			StudentID:     req.StudentID,
			DisplayName:   req.DisplayName,
		},
	})
	if err != nil {
		return httptransport.IdentityResponse{}, err
	}
	return httptransport.IdentityResponse{Status: "success", Data: mapIdentity(identity)}, nil
}

func (h Handler) GetIdentityHandler(ctx context.Context, actor entities.Actor, userID string) (httptransport.IdentityResponse, error) {
	identity, err := h.Queries.GetIdentity(ctx, actor, userID)
	if err != nil {
		return httptransport.IdentityResponse{}, err
	}
	return httptransport.IdentityResponse{Status: "success", Data: mapIdentity(identity)}, nil
}

func (h Handler) SubmitCaseHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.SubmitCaseRequest,
) (httptransport.CaseResponse, error) {
	documents := make(map[entities.DocumentKind]string, len(req.Documents))
	for kind, ref := range req.Documents {
		documents[entities.DocumentKind(strings.TrimSpace(kind))] = ref
	}
	item, err := h.Candidacy.SubmitCase(ctx, commands.SubmitCaseCommand{
		Actor:     actor,
		Position:  req.Position,
		Team:      req.Team,
		Documents: documents,
	})
	if err != nil {
		return httptransport.CaseResponse{}, err
	}
	return httptransport.CaseResponse{Status: "success", Data: mapCase(item)}, nil
}

func (h Handler) AttachDocumentHandler(
	ctx context.Context,
	actor entities.Actor,
	caseID string,
	kind string,
	req httptransport.AttachDocumentRequest,
) (httptransport.CaseResponse, error) {
	item, err := h.Candidacy.AttachDocument(ctx, commands.AttachDocumentCommand{
		Actor:     actor,
		CaseID:    caseID,
		Kind:      entities.DocumentKind(strings.TrimSpace(kind)),
		Reference: req.Reference,
	})
	if err != nil {
		return httptransport.CaseResponse{}, err
	}
	return httptransport.CaseResponse{Status: "success", Data: mapCase(item)}, nil
}

func (h Handler) GetCaseHandler(ctx context.Context, actor entities.Actor, caseID string) (httptransport.CaseResponse, error) {
	item, err := h.Queries.GetCase(ctx, actor, caseID)
	if err != nil {
		return httptransport.CaseResponse{}, err
	}
	return httptransport.CaseResponse{Status: "success", Data: mapCase(item)}, nil
}

func (h Handler) ListCasesHandler(
	ctx context.Context,
	actor entities.Actor,
	applicantID string,
	status string,
) (httptransport.CaseListResponse, error) {
	items, err := h.Queries.ListCases(ctx, actor, ports.CaseFilter{
		ApplicantID: strings.TrimSpace(applicantID),
		Status:      entities.CaseStatus(strings.TrimSpace(status)),
	})
	if err != nil {
		return httptransport.CaseListResponse{}, err
	}
	data := make([]httptransport.CaseDTO, 0, len(items))
	for _, item := range items {
		data = append(data, mapCase(item))
	}
	return httptransport.CaseListResponse{Status: "success", Data: data}, nil
}

// TransitionCaseHandler applies review, approve or reject to a case.
func (h Handler) TransitionCaseHandler(
	ctx context.Context,
	actor entities.Actor,
	caseID string,
	action string,
	req httptransport.TransitionCaseRequest,
) (httptransport.CaseResponse, error) {
	cmd := commands.TransitionCaseCommand{Actor: actor, CaseID: caseID, Note: req.Note}
	var (
		item entities.CandidacyCase
		err  error
	)
	switch action {
	case "review":
		item, err = h.Candidacy.ReviewCase(ctx, cmd)
	case "approve":
		item, err = h.Candidacy.ApproveCase(ctx, cmd)
	case "reject":
		item, err = h.Candidacy.RejectCase(ctx, cmd)
	default:
		err = domainerrors.WithDetails(domainerrors.ErrInvalidTransition, map[string]any{"action": action})
	}
	if err != nil {
		return httptransport.CaseResponse{}, err
	}
	return httptransport.CaseResponse{Status: "success", Data: mapCase(item)}, nil
}

func (h Handler) RecordScreeningOutcomeHandler(
	ctx context.Context,
	actor entities.Actor,
	caseID string,
	req httptransport.ScreeningOutcomeRequest,
) (httptransport.CaseResponse, error) {
	item, err := h.Candidacy.RecordScreeningOutcome(ctx, commands.RecordOutcomeCommand{
		Actor:   actor,
		CaseID:  caseID,
		Outcome: entities.ScreeningOutcome(strings.TrimSpace(req.Outcome)),
		Note:    req.Note,
	})
	if err != nil {
		return httptransport.CaseResponse{}, err
	}
	return httptransport.CaseResponse{Status: "success", Data: mapCase(item)}, nil
}

func (h Handler) ReconcileRolesHandler(ctx context.Context, actor entities.Actor) (httptransport.ReconcileRolesResponse, error) {
	result, err := h.Candidacy.ReconcileCandidateRoles(ctx, commands.ReconcileRolesCommand{Actor: actor})
	if err != nil {
		return httptransport.ReconcileRolesResponse{}, err
	}
	resp := httptransport.ReconcileRolesResponse{Status: "success"}
	resp.Data.Promoted = nonNilStrings(result.Promoted)
	resp.Data.Demoted = nonNilStrings(result.Demoted)
	return resp, nil
}

func (h Handler) ListOpenSlotsHandler(ctx context.Context) (httptransport.SlotListResponse, error) {
	slots, err := h.Queries.ListOpenSlots(ctx)
	if err != nil {
		return httptransport.SlotListResponse{}, err
	}
	return httptransport.SlotListResponse{Status: "success", Data: mapSlots(slots)}, nil
}

func (h Handler) ListSlotsHandler(ctx context.Context, actor entities.Actor) (httptransport.SlotListResponse, error) {
	slots, err := h.Queries.ListSlots(ctx, actor)
	if err != nil {
		return httptransport.SlotListResponse{}, err
	}
	return httptransport.SlotListResponse{Status: "success", Data: mapSlots(slots)}, nil
}

func (h Handler) CreateSlotHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.CreateSlotRequest,
) (httptransport.SlotResponse, error) {
	slot, err := h.Screening.CreateSlot(ctx, commands.CreateSlotCommand{
		Actor:   actor,
		SlotKey: req.SlotKey,
		Venue:   req.Venue,
	})
	if err != nil {
		return httptransport.SlotResponse{}, err
	}
	return httptransport.SlotResponse{Status: "success", Data: mapSlot(slot)}, nil
}

func (h Handler) DeleteSlotHandler(ctx context.Context, actor entities.Actor, slotKey string) error {
	return h.Screening.DeleteSlot(ctx, commands.DeleteSlotCommand{Actor: actor, SlotKey: slotKey})
}

func (h Handler) RequestAppointmentHandler(
	ctx context.Context,
	actor entities.Actor,
	caseID string,
	req httptransport.RequestAppointmentRequest,
) (httptransport.CaseResponse, error) {
	item, err := h.Screening.RequestAppointment(ctx, commands.RequestAppointmentCommand{
		Actor:   actor,
		CaseID:  caseID,
		SlotKey: req.SlotKey,
	})
	if err != nil {
		return httptransport.CaseResponse{}, err
	}
	return httptransport.CaseResponse{Status: "success", Data: mapCase(item)}, nil
}

func (h Handler) DecideAppointmentHandler(
	ctx context.Context,
	actor entities.Actor,
	caseID string,
	req httptransport.DecideAppointmentRequest,
) (httptransport.CaseResponse, error) {
	item, err := h.Screening.DecideAppointment(ctx, commands.DecideAppointmentCommand{
		Actor:   actor,
		CaseID:  caseID,
		Approve: req.Approve,
		Note:    req.Note,
	})
	if err != nil {
		return httptransport.CaseResponse{}, err
	}
	return httptransport.CaseResponse{Status: "success", Data: mapCase(item)}, nil
}

func (h Handler) ListRosterHandler(ctx context.Context) (httptransport.RosterListResponse, error) {
	items, err := h.Queries.ListRoster(ctx)
	if err != nil {
		return httptransport.RosterListResponse{}, err
	}
	return httptransport.RosterListResponse{Status: "success", Data: mapRoster(items)}, nil
}

func (h Handler) GetRosterEntryHandler(ctx context.Context, entryID string) (httptransport.RosterEntryResponse, error) {
	item, err := h.Queries.GetRosterEntry(ctx, entryID)
	if err != nil {
		return httptransport.RosterEntryResponse{}, err
	}
	return httptransport.RosterEntryResponse{Status: "success", Data: mapRosterEntry(item)}, nil
}

func (h Handler) CreateRosterEntryHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.CreateRosterEntryRequest,
) (httptransport.RosterEntryResponse, error) {
	item, err := h.Roster.CreateRosterEntry(ctx, commands.CreateRosterEntryCommand{
		Actor:       actor,
		CaseID:      req.CaseID,
		Position:    req.Position,
		Team:        req.Team,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return httptransport.RosterEntryResponse{}, err
	}
	return httptransport.RosterEntryResponse{Status: "success", Data: mapRosterEntry(item)}, nil
}

func (h Handler) UpdateRosterEntryHandler(
	ctx context.Context,
	actor entities.Actor,
	entryID string,
	req httptransport.UpdateRosterEntryRequest,
) (httptransport.RosterEntryResponse, error) {
	item, err := h.Roster.UpdateRosterEntry(ctx, commands.UpdateRosterEntryCommand{
		Actor:       actor,
		EntryID:     entryID,
		Position:    req.Position,
		Team:        req.Team,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return httptransport.RosterEntryResponse{}, err
	}
	return httptransport.RosterEntryResponse{Status: "success", Data: mapRosterEntry(item)}, nil
}

func (h Handler) DeleteRosterEntryHandler(ctx context.Context, actor entities.Actor, entryID string) error {
	return h.Roster.DeleteRosterEntry(ctx, commands.DeleteRosterEntryCommand{Actor: actor, EntryID: entryID})
}

func (h Handler) SubmitMaterialHandler(
	ctx context.Context,
	actor entities.Actor,
	entryID string,
	req httptransport.SubmitMaterialRequest,
) (httptransport.MaterialResponse, error) {
	item, err := h.Campaign.SubmitMaterial(ctx, commands.SubmitMaterialCommand{
		Actor:    actor,
		EntryID:  entryID,
		MediaRef: req.MediaRef,
		Caption:  req.Caption,
	})
	if err != nil {
		return httptransport.MaterialResponse{}, err
	}
	return httptransport.MaterialResponse{Status: "success", Data: mapMaterial(item)}, nil
}

func (h Handler) ReviewMaterialHandler(
	ctx context.Context,
	actor entities.Actor,
	materialID string,
	req httptransport.ReviewMaterialRequest,
) (httptransport.MaterialResponse, error) {
	item, err := h.Campaign.ReviewMaterial(ctx, commands.ReviewMaterialCommand{
		Actor:      actor,
		MaterialID: materialID,
		Approve:    req.Approve,
		Reason:     req.Reason,
	})
	if err != nil {
		return httptransport.MaterialResponse{}, err
	}
	return httptransport.MaterialResponse{Status: "success", Data: mapMaterial(item)}, nil
}

func (h Handler) ListMaterialsHandler(
	ctx context.Context,
	actor entities.Actor,
	entryID string,
	status string,
) (httptransport.MaterialListResponse, error) {
	items, err := h.Queries.ListMaterials(ctx, actor, ports.MaterialFilter{
		EntryID: strings.TrimSpace(entryID),
		Status:  entities.MaterialStatus(strings.TrimSpace(status)),
	})
	if err != nil {
		return httptransport.MaterialListResponse{}, err
	}
	data := make([]httptransport.MaterialDTO, 0, len(items))
	for _, item := range items {
		data = append(data, mapMaterial(item))
	}
	return httptransport.MaterialListResponse{Status: "success", Data: data}, nil
}

func (h Handler) RenderBallotHandler(ctx context.Context, actor entities.Actor) (httptransport.RenderedBallotResponse, error) {
	ballot, err := h.Queries.RenderBallot(ctx, actor)
	if err != nil {
		return httptransport.RenderedBallotResponse{}, err
	}
	resp := httptransport.RenderedBallotResponse{Status: "success"}
	resp.Data.VoterID = ballot.VoterID
	resp.Data.VoterInstitute = ballot.VoterInstitute
	resp.Data.WindowOpen = ballot.WindowOpen
	resp.Data.AlreadyVoted = ballot.AlreadyVoted
	resp.Data.Sections = make([]httptransport.BallotSectionDTO, 0, len(ballot.Sections))
	for _, section := range ballot.Sections {
		resp.Data.Sections = append(resp.Data.Sections, httptransport.BallotSectionDTO{
			Key:           mapPositionKey(section.Key),
			MaxSelections: section.MaxSelections,
			Candidates:    mapRoster(section.Candidates),
		})
	}
	return resp, nil
}

func (h Handler) SubmitBallotHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.SubmitBallotRequest,
) (httptransport.BallotResponse, error) {
	selections := make([]services.Selection, 0, len(req.Selections))
	for _, item := range req.Selections {
		key, err := ParsePositionKey(item.Key)
		if err != nil {
			return httptransport.BallotResponse{}, err
		}
		selections = append(selections, services.Selection{Key: key, CandidateIDs: item.CandidateIDs})
	}
	ballot, err := h.Ballots.SubmitBallot(ctx, commands.SubmitBallotCommand{
		Actor:      actor,
		Selections: selections,
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return httptransport.BallotResponse{Status: "success", Data: mapBallot(ballot)}, nil
}

func (h Handler) GetBallotHandler(ctx context.Context, actor entities.Actor, voterID string) (httptransport.BallotResponse, error) {
	ballot, err := h.Queries.GetBallot(ctx, actor, voterID)
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return httptransport.BallotResponse{Status: "success", Data: mapBallot(ballot)}, nil
}

func (h Handler) TabulateHandler(
	ctx context.Context,
	actor entities.Actor,
	key httptransport.PositionKeyDTO,
) (httptransport.TallyResponse, error) {
	positionKey, err := ParsePositionKey(key)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	tally, err := h.Queries.Tabulate(ctx, actor, positionKey)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return httptransport.TallyResponse{Status: "success", Data: mapTally(tally)}, nil
}

func (h Handler) TabulateAllHandler(ctx context.Context, actor entities.Actor) (httptransport.TallyListResponse, error) {
	tallies, err := h.Queries.TabulateAll(ctx, actor)
	if err != nil {
		return httptransport.TallyListResponse{}, err
	}
	data := make([]httptransport.TallyDTO, 0, len(tallies))
	for _, tally := range tallies {
		data = append(data, mapTally(tally))
	}
	return httptransport.TallyListResponse{Status: "success", Data: data}, nil
}

func (h Handler) ListPhasesHandler(ctx context.Context) (httptransport.PhaseListResponse, error) {
	statuses, err := h.Queries.ListPhaseStatuses(ctx)
	if err != nil {
		return httptransport.PhaseListResponse{}, err
	}
	data := make([]httptransport.PhaseDTO, 0, len(statuses))
	for _, status := range statuses {
		data = append(data, mapPhase(status))
	}
	return httptransport.PhaseListResponse{Status: "success", Data: data}, nil
}

func (h Handler) GetPhaseHandler(ctx context.Context, phase string) (httptransport.PhaseResponse, error) {
	status, err := h.Queries.WindowStatus(ctx, entities.Phase(strings.TrimSpace(phase)))
	if err != nil {
		return httptransport.PhaseResponse{}, err
	}
	return httptransport.PhaseResponse{Status: "success", Data: mapPhase(status)}, nil
}

func (h Handler) SetPhaseWindowHandler(
	ctx context.Context,
	actor entities.Actor,
	phase string,
	req httptransport.SetPhaseWindowRequest,
) (httptransport.PhaseResponse, error) {
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return httptransport.PhaseResponse{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{"starts_at": "must be RFC3339"})
	}
	endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndsAt))
	if err != nil {
		return httptransport.PhaseResponse{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{"ends_at": "must be RFC3339"})
	}
	window, err := h.Phases.SetPhaseWindow(ctx, commands.SetPhaseWindowCommand{
		Actor:    actor,
		Phase:    entities.Phase(strings.TrimSpace(phase)),
		StartsAt: startsAt,
		EndsAt:   endsAt,
	})
	if err != nil {
		return httptransport.PhaseResponse{}, err
	}
	return httptransport.PhaseResponse{Status: "success", Data: mapPhase(queries.PhaseStatus{
		Window:     window,
		Configured: true,
		Open:       window.IsOpen(h.now()),
	})}, nil
}

func (h Handler) ListActivityHandler(ctx context.Context, actor entities.Actor, limit int) (httptransport.ActivityListResponse, error) {
	items, err := h.Queries.ListActivity(ctx, actor, limit)
	if err != nil {
		return httptransport.ActivityListResponse{}, err
	}
	data := make([]httptransport.ActivityDTO, 0, len(items))
	for _, item := range items {
		data = append(data, httptransport.ActivityDTO{
			EntryID:     item.EntryID,
			ActorID:     item.ActorID,
			Action:      item.Action,
			SubjectType: item.SubjectType,
			SubjectID:   item.SubjectID,
			Detail:      item.Detail,
			OccurredAt:  formatTime(item.OccurredAt),
		})
	}
	return httptransport.ActivityListResponse{Status: "success", Data: data}, nil
}

// RunArchiveHandler returns the run record together with any error so a
// fatal partial failure can still report which steps were applied.
func (h Handler) RunArchiveHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.ArchiveRequest,
) (httptransport.ArchiveRunResponse, error) {
	run, err := h.Archive.Archive(ctx, commands.ArchiveCommand{Actor: actor, Year: req.Year})
	return httptransport.ArchiveRunResponse{Status: runStatus(err), Data: mapArchiveRun(run)}, err
}

func (h Handler) ResumeArchiveHandler(ctx context.Context, actor entities.Actor, runID string) (httptransport.ArchiveRunResponse, error) {
	run, err := h.Archive.ResumeArchive(ctx, commands.ResumeArchiveCommand{Actor: actor, RunID: runID})
	return httptransport.ArchiveRunResponse{Status: runStatus(err), Data: mapArchiveRun(run)}, err
}

func (h Handler) GetArchiveRunHandler(ctx context.Context, actor entities.Actor, runID string) (httptransport.ArchiveRunResponse, error) {
	run, err := h.Queries.GetArchiveRun(ctx, actor, runID)
	if err != nil {
		return httptransport.ArchiveRunResponse{}, err
	}
	return httptransport.ArchiveRunResponse{Status: "success", Data: mapArchiveRun(run)}, nil
}

func (h Handler) ListArchivesHandler(ctx context.Context, actor entities.Actor) (httptransport.ArchiveListResponse, error) {
	keys, err := h.Queries.ListArchives(ctx, actor)
	if err != nil {
		return httptransport.ArchiveListResponse{}, err
	}
	data := make([]httptransport.ArchiveKeyDTO, 0, len(keys))
	for _, key := range keys {
		data = append(data, httptransport.ArchiveKeyDTO{Year: key.Year, Timestamp: key.Timestamp})
	}
	return httptransport.ArchiveListResponse{Status: "success", Data: data}, nil
}

func (h Handler) GetArchiveHandler(ctx context.Context, actor entities.Actor, key entities.ArchiveKey) (httptransport.ArchiveResponse, error) {
	snapshot, err := h.Queries.GetArchive(ctx, actor, key)
	if err != nil {
		return httptransport.ArchiveResponse{}, err
	}
	resp := httptransport.ArchiveResponse{Status: "success"}
	resp.Data.Key = httptransport.ArchiveKeyDTO{Year: snapshot.Key.Year, Timestamp: snapshot.Key.Timestamp}
	resp.Data.RunID = snapshot.RunID
	resp.Data.CreatedAt = formatTime(snapshot.CreatedAt)
	resp.Data.CreatedBy = snapshot.CreatedBy
	resp.Data.TotalBallots = snapshot.Report.TotalBallots
	resp.Data.Turnout = snapshot.Report.Turnout
	resp.Data.Results = make([]httptransport.PositionResultDTO, 0, len(snapshot.Report.Results))
	for _, result := range snapshot.Report.Results {
		candidates := make([]httptransport.CandidateResultDTO, 0, len(result.Candidates))
		for _, candidate := range result.Candidates {
			candidates = append(candidates, httptransport.CandidateResultDTO{
				CandidateID: candidate.CandidateID,
				DisplayName: candidate.DisplayName,
				Institute:   candidate.Institute,
				Team:        candidate.Team,
				Votes:       candidate.Votes,
			})
		}
		resp.Data.Results = append(resp.Data.Results, httptransport.PositionResultDTO{
			Key:           mapPositionKey(result.Key),
			MaxSelections: result.MaxSelections,
			Candidates:    candidates,
			Abstentions:   result.Abstentions,
		})
	}
	return resp, nil
}

// ExportArchiveHandler streams the archive report and returns its content
// type.
func (h Handler) ExportArchiveHandler(ctx context.Context, actor entities.Actor, key entities.ArchiveKey, w io.Writer) (string, error) {
	return h.Queries.ExportArchive(ctx, actor, key, w)
}

// ParsePositionKey converts the wire form into the tagged position key.
func ParsePositionKey(dto httptransport.PositionKeyDTO) (entities.PositionKey, error) {
	name := strings.TrimSpace(dto.Position)
	if name == "" {
		return entities.PositionKey{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{"position": "required"})
	}
	switch entities.PositionScope(strings.TrimSpace(dto.Scope)) {
	case entities.ScopeGlobal, "":
		if strings.TrimSpace(dto.Institute) != "" {
			return entities.PositionKey{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
				"institute": "global positions do not take an institute",
			})
		}
		return entities.GlobalPosition(name), nil
	case entities.ScopeInstitute:
		if strings.TrimSpace(dto.Institute) == "" {
			return entities.PositionKey{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{"institute": "required for scoped positions"})
		}
		return entities.ScopedPosition(dto.Institute, name), nil
	default:
		return entities.PositionKey{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{"scope": dto.Scope})
	}
}

func (h Handler) now() time.Time {
	if h.Queries.Clock != nil {
		return h.Queries.Clock.Now()
	}
	return time.Now().UTC()
}

func runStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
