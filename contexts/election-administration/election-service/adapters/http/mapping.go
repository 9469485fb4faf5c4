package httpadapter

import (
	"sort"
	"time"

	"campusvote/contexts/election-administration/election-service/application/queries"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	"campusvote/contexts/election-administration/election-service/domain/services"
	httptransport "campusvote/contexts/election-administration/election-service/transport/http"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

func mapIdentity(identity entities.Identity) httptransport.IdentityDTO {
	return httptransport.IdentityDTO{
		UserID:        identity.UserID,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Role:          string(identity.Role),
		Institute:     identity.Institute,
		StudentID:     identity.StudentID,
		DisplayName:   identity.DisplayName,
		UpdatedAt:     formatTime(identity.UpdatedAt),
	}
}

func mapCase(item entities.CandidacyCase) httptransport.CaseDTO {
	documents := make(map[string]string, len(item.Documents))
	for kind, ref := range item.Documents {
		documents[string(kind)] = ref
	}
	missing := make([]string, 0)
	for _, kind := range item.MissingDocuments() {
		missing = append(missing, string(kind))
	}

	dto := httptransport.CaseDTO{
		CaseID:             item.CaseID,
		ApplicantID:        item.ApplicantID,
		Position:           item.Position,
		Team:               item.Team,
		Documents:          documents,
		MissingDocuments:   missing,
		Status:             string(item.Status),
		ScreeningOutcome:   string(item.ScreeningOutcome),
		AppointmentHistory: make([]httptransport.AppointmentDecisionDTO, 0, len(item.AppointmentHistory)),
		Audit:              make([]httptransport.CaseTransitionDTO, 0, len(item.Audit)),
		CreatedAt:          formatTime(item.CreatedAt),
		UpdatedAt:          formatTime(item.UpdatedAt),
		Version:            item.Version,
	}
	if item.Appointment != nil {
		dto.Appointment = &httptransport.AppointmentDTO{
			SlotKey:   item.Appointment.SlotKey,
			Venue:     item.Appointment.Venue,
			Status:    string(item.Appointment.Status),
			CreatedAt: formatTime(item.Appointment.CreatedAt),
			DecidedAt: formatTimePtr(item.Appointment.DecidedAt),
			DecidedBy: item.Appointment.DecidedBy,
		}
	}
	for _, decision := range item.AppointmentHistory {
		dto.AppointmentHistory = append(dto.AppointmentHistory, httptransport.AppointmentDecisionDTO{
			SlotKey:   decision.SlotKey,
			Venue:     decision.Venue,
			Status:    string(decision.Status),
			DecidedBy: decision.DecidedBy,
			Note:      decision.Note,
			DecidedAt: formatTime(decision.DecidedAt),
		})
	}
	for _, transition := range item.Audit {
		dto.Audit = append(dto.Audit, httptransport.CaseTransitionDTO{
			Field:      transition.Field,
			From:       transition.From,
			To:         transition.To,
			ActorID:    transition.ActorID,
			Note:       transition.Note,
			OccurredAt: formatTime(transition.OccurredAt),
		})
	}
	return dto
}

func mapSlot(slot entities.ScreeningSlot) httptransport.SlotDTO {
	return httptransport.SlotDTO{
		SlotKey:    slot.SlotKey,
		Venue:      slot.Venue,
		Available:  slot.Available,
		ReservedBy: slot.ReservedBy,
	}
}

func mapSlots(slots []entities.ScreeningSlot) []httptransport.SlotDTO {
	items := make([]httptransport.SlotDTO, 0, len(slots))
	for _, slot := range slots {
		items = append(items, mapSlot(slot))
	}
	return items
}

func mapRosterEntry(entry entities.RosterEntry) httptransport.RosterEntryDTO {
	return httptransport.RosterEntryDTO{
		EntryID:     entry.EntryID,
		CaseID:      entry.CaseID,
		CandidateID: entry.CandidateID,
		DisplayName: entry.DisplayName,
		Position:    entry.Position,
		Institute:   entry.Institute,
		Team:        entry.Team,
		UpdatedAt:   formatTime(entry.UpdatedAt),
	}
}

func mapRoster(entries []entities.RosterEntry) []httptransport.RosterEntryDTO {
	items := make([]httptransport.RosterEntryDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, mapRosterEntry(entry))
	}
	return items
}

func mapMaterial(item entities.CampaignMaterial) httptransport.MaterialDTO {
	return httptransport.MaterialDTO{
		MaterialID:  item.MaterialID,
		EntryID:     item.EntryID,
		SubmittedBy: item.SubmittedBy,
		MediaRef:    item.MediaRef,
		Caption:     item.Caption,
		Status:      string(item.Status),
		ReviewedBy:  item.ReviewedBy,
		ReviewedAt:  formatTimePtr(item.ReviewedAt),
		Reason:      item.Reason,
		CreatedAt:   formatTime(item.CreatedAt),
	}
}

func mapPositionKey(key entities.PositionKey) httptransport.PositionKeyDTO {
	return httptransport.PositionKeyDTO{
		Scope:     string(key.Scope()),
		Institute: key.Institute(),
		Position:  key.Name(),
	}
}

// mapBallot decodes stored selections for display. Values that no longer
// decode are shown as nil rather than failing the read.
func mapBallot(ballot entities.BallotRecord) httptransport.BallotDTO {
	selections := make(map[string]any, len(ballot.Selections))
	keys := make([]string, 0, len(ballot.Selections))
	for key := range ballot.Selections {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		ids, ok := services.DecodeSelection(ballot.Selections[key])
		if !ok {
			selections[key] = nil
			continue
		}
		selections[key] = ids
	}
	return httptransport.BallotDTO{
		VoterID:        ballot.VoterID,
		VoterInstitute: ballot.VoterInstitute,
		Selections:     selections,
		SubmittedAt:    formatTime(ballot.SubmittedAt),
	}
}

func mapTally(tally entities.TallyResult) httptransport.TallyDTO {
	candidates := make([]httptransport.CandidateTallyDTO, 0, len(tally.Candidates))
	for _, item := range tally.Candidates {
		candidates = append(candidates, httptransport.CandidateTallyDTO{CandidateID: item.CandidateID, Votes: item.Votes})
	}
	return httptransport.TallyDTO{
		Key:            mapPositionKey(tally.Key),
		MaxSelections:  tally.MaxSelections,
		Candidates:     candidates,
		BallotsCounted: tally.BallotsCounted,
		Abstentions:    tally.Abstentions,
		Malformed:      tally.Malformed,
		Excluded:       tally.Excluded,
	}
}

func mapPhase(status queries.PhaseStatus) httptransport.PhaseDTO {
	dto := httptransport.PhaseDTO{
		Phase:        string(status.Window.Phase),
		Configured:   status.Configured,
		Open:         status.Open,
		CachedActive: status.Window.CachedActive,
		UpdatedBy:    status.Window.UpdatedBy,
	}
	if status.Configured {
		dto.StartsAt = formatTime(status.Window.StartsAt)
		dto.EndsAt = formatTime(status.Window.EndsAt)
	}
	return dto
}

func mapArchiveRun(run entities.ArchiveRun) httptransport.ArchiveRunDTO {
	return httptransport.ArchiveRunDTO{
		RunID:          run.RunID,
		Year:           run.Key.Year,
		Timestamp:      run.Key.Timestamp,
		Status:         string(run.Status),
		CompletedSteps: run.CompletedSteps(),
		FailedStep:     string(run.FailedStep),
		FailureReason:  run.FailureReason,
		StartedAt:      formatTime(run.StartedAt),
		FinishedAt:     formatTimePtr(run.FinishedAt),
	}
}
