package httpserver

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	electionhttp "campusvote/contexts/election-administration/election-service/transport/http"
)

func (s *Server) handleUpsertIdentity(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.UpsertIdentityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.UpsertIdentityHandler(r.Context(), actor, r.PathValue("user_id"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.GetIdentityHandler(r.Context(), actor, r.PathValue("user_id"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitCase(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.SubmitCaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.SubmitCaseHandler(r.Context(), actor, req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	query := r.URL.Query()
	resp, err := s.election.Handler.ListCasesHandler(r.Context(), actor, query.Get("applicant_id"), query.Get("status"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.GetCaseHandler(r.Context(), actor, r.PathValue("case_id"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAttachDocument(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.AttachDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.AttachDocumentHandler(r.Context(), actor, r.PathValue("case_id"), r.PathValue("kind"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransitionCase(action string) actorHandler {
	return func(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
		var req electionhttp.TransitionCaseRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		resp, err := s.election.Handler.TransitionCaseHandler(r.Context(), actor, r.PathValue("case_id"), action, req)
		if err != nil {
			s.writeElectionDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleScreeningOutcome(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.ScreeningOutcomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.RecordScreeningOutcomeHandler(r.Context(), actor, r.PathValue("case_id"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestAppointment(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.RequestAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.RequestAppointmentHandler(r.Context(), actor, r.PathValue("case_id"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDecideAppointment(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.DecideAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.DecideAppointmentHandler(r.Context(), actor, r.PathValue("case_id"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcileRoles(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.ReconcileRolesHandler(r.Context(), actor)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListOpenSlots(w http.ResponseWriter, r *http.Request, _ entities.Actor) {
	resp, err := s.election.Handler.ListOpenSlotsHandler(r.Context())
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.ListSlotsHandler(r.Context(), actor)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.CreateSlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.CreateSlotHandler(r.Context(), actor, req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	if err := s.election.Handler.DeleteSlotHandler(r.Context(), actor, r.PathValue("slot_key")); err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRoster(w http.ResponseWriter, r *http.Request, _ entities.Actor) {
	resp, err := s.election.Handler.ListRosterHandler(r.Context())
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRosterEntry(w http.ResponseWriter, r *http.Request, _ entities.Actor) {
	resp, err := s.election.Handler.GetRosterEntryHandler(r.Context(), r.PathValue("entry_id"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRosterEntry(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.CreateRosterEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.CreateRosterEntryHandler(r.Context(), actor, req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateRosterEntry(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.UpdateRosterEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.UpdateRosterEntryHandler(r.Context(), actor, r.PathValue("entry_id"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRosterEntry(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	if err := s.election.Handler.DeleteRosterEntryHandler(r.Context(), actor, r.PathValue("entry_id")); err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitMaterial(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.SubmitMaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.SubmitMaterialHandler(r.Context(), actor, r.PathValue("entry_id"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	query := r.URL.Query()
	resp, err := s.election.Handler.ListMaterialsHandler(r.Context(), actor, query.Get("entry_id"), query.Get("status"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewMaterial(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.ReviewMaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.ReviewMaterialHandler(r.Context(), actor, r.PathValue("material_id"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRenderBallot(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.RenderBallotHandler(r.Context(), actor)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitBallot(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.SubmitBallotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.SubmitBallotHandler(r.Context(), actor, req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetOwnBallot(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.GetBallotHandler(r.Context(), actor, actor.UserID)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBallot(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.GetBallotHandler(r.Context(), actor, r.PathValue("voter_id"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTabulateAll(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.TabulateAllHandler(r.Context(), actor)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTabulate(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	query := r.URL.Query()
	resp, err := s.election.Handler.TabulateHandler(r.Context(), actor, electionhttp.PositionKeyDTO{
		Scope:     query.Get("scope"),
		Institute: query.Get("institute"),
		Position:  query.Get("position"),
	})
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPhases(w http.ResponseWriter, r *http.Request, _ entities.Actor) {
	resp, err := s.election.Handler.ListPhasesHandler(r.Context())
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPhase(w http.ResponseWriter, r *http.Request, _ entities.Actor) {
	resp, err := s.election.Handler.GetPhaseHandler(r.Context(), r.PathValue("phase"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetPhaseWindow(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.SetPhaseWindowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.SetPhaseWindowHandler(r.Context(), actor, r.PathValue("phase"), req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeElectionError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}
	resp, err := s.election.Handler.ListActivityHandler(r.Context(), actor, limit)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunArchive(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	var req electionhttp.ArchiveRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.election.Handler.RunArchiveHandler(r.Context(), actor, req)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleResumeArchive(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.ResumeArchiveHandler(r.Context(), actor, r.PathValue("run_id"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetArchiveRun(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.GetArchiveRunHandler(r.Context(), actor, r.PathValue("run_id"))
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	resp, err := s.election.Handler.ListArchivesHandler(r.Context(), actor)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	key, ok := archiveKeyFromPath(w, r)
	if !ok {
		return
	}
	resp, err := s.election.Handler.GetArchiveHandler(r.Context(), actor, key)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExportArchive buffers the export so a mid-stream failure still
// produces a proper error response.
func (s *Server) handleExportArchive(w http.ResponseWriter, r *http.Request, actor entities.Actor) {
	key, ok := archiveKeyFromPath(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	contentType, err := s.election.Handler.ExportArchiveHandler(r.Context(), actor, key, &buf)
	if err != nil {
		s.writeElectionDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="election-`+strconv.Itoa(key.Year)+"-"+key.Timestamp+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func archiveKeyFromPath(w http.ResponseWriter, r *http.Request) (entities.ArchiveKey, bool) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year <= 0 {
		writeElectionError(w, http.StatusBadRequest, "invalid_year", "year must be a positive integer", nil)
		return entities.ArchiveKey{}, false
	}
	timestamp := strings.TrimSpace(r.PathValue("timestamp"))
	if timestamp == "" {
		writeElectionError(w, http.StatusBadRequest, "invalid_timestamp", "timestamp is required", nil)
		return entities.ArchiveKey{}, false
	}
	return entities.ArchiveKey{Year: year, Timestamp: timestamp}, true
}
