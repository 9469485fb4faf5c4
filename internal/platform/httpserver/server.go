package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	electionservice "campusvote/contexts/election-administration/election-service"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	electionerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	electionhttp "campusvote/contexts/election-administration/election-service/transport/http"
	"campusvote/internal/platform/auth"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "campusvote/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	election electionservice.Module
	verifier *auth.Verifier
	server   *http.Server
}

func New(
	election electionservice.Module,
	verifier *auth.Verifier,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		election: election,
		verifier: verifier,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("PUT /api/v1/identities/{user_id}", s.authenticated(s.handleUpsertIdentity))
	s.mux.HandleFunc("GET /api/v1/identities/{user_id}", s.authenticated(s.handleGetIdentity))

	s.mux.HandleFunc("POST /api/v1/cases", s.authenticated(s.handleSubmitCase))
	s.mux.HandleFunc("GET /api/v1/cases", s.authenticated(s.handleListCases))
	s.mux.HandleFunc("GET /api/v1/cases/{case_id}", s.authenticated(s.handleGetCase))
	s.mux.HandleFunc("PUT /api/v1/cases/{case_id}/documents/{kind}", s.authenticated(s.handleAttachDocument))
	s.mux.HandleFunc("POST /api/v1/cases/{case_id}/review", s.authenticated(s.handleTransitionCase("review")))
	s.mux.HandleFunc("POST /api/v1/cases/{case_id}/approve", s.authenticated(s.handleTransitionCase("approve")))
	s.mux.HandleFunc("POST /api/v1/cases/{case_id}/reject", s.authenticated(s.handleTransitionCase("reject")))
	s.mux.HandleFunc("POST /api/v1/cases/{case_id}/screening-outcome", s.authenticated(s.handleScreeningOutcome))
	s.mux.HandleFunc("POST /api/v1/cases/{case_id}/appointment", s.authenticated(s.handleRequestAppointment))
	s.mux.HandleFunc("POST /api/v1/cases/{case_id}/appointment/decision", s.authenticated(s.handleDecideAppointment))
	s.mux.HandleFunc("POST /api/v1/admin/reconcile-roles", s.authenticated(s.handleReconcileRoles))

	s.mux.HandleFunc("GET /api/v1/screening/slots/open", s.authenticated(s.handleListOpenSlots))
	s.mux.HandleFunc("GET /api/v1/screening/slots", s.authenticated(s.handleListSlots))
	s.mux.HandleFunc("POST /api/v1/screening/slots", s.authenticated(s.handleCreateSlot))
	s.mux.HandleFunc("DELETE /api/v1/screening/slots/{slot_key}", s.authenticated(s.handleDeleteSlot))

	s.mux.HandleFunc("GET /api/v1/roster", s.authenticated(s.handleListRoster))
	s.mux.HandleFunc("POST /api/v1/roster", s.authenticated(s.handleCreateRosterEntry))
	s.mux.HandleFunc("GET /api/v1/roster/{entry_id}", s.authenticated(s.handleGetRosterEntry))
	s.mux.HandleFunc("PATCH /api/v1/roster/{entry_id}", s.authenticated(s.handleUpdateRosterEntry))
	s.mux.HandleFunc("DELETE /api/v1/roster/{entry_id}", s.authenticated(s.handleDeleteRosterEntry))

	s.mux.HandleFunc("POST /api/v1/roster/{entry_id}/materials", s.authenticated(s.handleSubmitMaterial))
	s.mux.HandleFunc("GET /api/v1/campaign/materials", s.authenticated(s.handleListMaterials))
	s.mux.HandleFunc("POST /api/v1/campaign/materials/{material_id}/decision", s.authenticated(s.handleReviewMaterial))

	s.mux.HandleFunc("GET /api/v1/ballot", s.authenticated(s.handleRenderBallot))
	s.mux.HandleFunc("POST /api/v1/ballot", s.authenticated(s.handleSubmitBallot))
	s.mux.HandleFunc("GET /api/v1/ballot/mine", s.authenticated(s.handleGetOwnBallot))
	s.mux.HandleFunc("GET /api/v1/ballots/{voter_id}", s.authenticated(s.handleGetBallot))

	s.mux.HandleFunc("GET /api/v1/results", s.authenticated(s.handleTabulateAll))
	s.mux.HandleFunc("GET /api/v1/results/position", s.authenticated(s.handleTabulate))

	s.mux.HandleFunc("GET /api/v1/phases", s.authenticated(s.handleListPhases))
	s.mux.HandleFunc("GET /api/v1/phases/{phase}", s.authenticated(s.handleGetPhase))
	s.mux.HandleFunc("PUT /api/v1/phases/{phase}", s.authenticated(s.handleSetPhaseWindow))

	s.mux.HandleFunc("GET /api/v1/activity", s.authenticated(s.handleListActivity))

	s.mux.HandleFunc("POST /api/v1/archives", s.authenticated(s.handleRunArchive))
	s.mux.HandleFunc("GET /api/v1/archives", s.authenticated(s.handleListArchives))
	s.mux.HandleFunc("GET /api/v1/archives/{year}/{timestamp}", s.authenticated(s.handleGetArchive))
	s.mux.HandleFunc("GET /api/v1/archives/{year}/{timestamp}/export", s.authenticated(s.handleExportArchive))
	s.mux.HandleFunc("GET /api/v1/archive-runs/{run_id}", s.authenticated(s.handleGetArchiveRun))
	s.mux.HandleFunc("POST /api/v1/archive-runs/{run_id}/resume", s.authenticated(s.handleResumeArchive))
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor entities.Actor)

// authenticated resolves the caller from the bearer token. The role claim is
// only trusted for known roles; anything else is treated as a voter.
func (s *Server) authenticated(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			writeElectionError(w, http.StatusUnauthorized, "unauthorized", "token verification is not configured", nil)
			return
		}
		raw, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeElectionError(w, http.StatusUnauthorized, "unauthorized", "Authorization bearer token is required", nil)
			return
		}
		claims, err := s.verifier.Verify(raw)
		if err != nil {
			s.logger.Warn("bearer token rejected",
				"event", "http_auth_rejected",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"path", r.URL.Path,
				"error", err.Error(),
			)
			writeElectionError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token", nil)
			return
		}
		role := entities.Role(strings.TrimSpace(claims.Role))
		if !role.Valid() {
			role = entities.RoleVoter
		}
		next(w, r, entities.Actor{UserID: strings.TrimSpace(claims.Subject), Role: role})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeElectionDomainError maps the election error kinds onto HTTP. Unknown
// errors never leak their message.
func (s *Server) writeElectionDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *electionerrors.Error
	if !errors.As(err, &domainErr) {
		if electionerrors.KindOf(err) == electionerrors.KindTransient {
			w.Header().Set("Retry-After", "1")
			writeElectionError(w, http.StatusServiceUnavailable, "timeout", "request timed out", nil)
			return
		}
		s.logger.Error("unhandled election error",
			"event", "http_unhandled_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeElectionError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
		return
	}

	switch domainErr.Kind() {
	case electionerrors.KindValidation:
		writeElectionError(w, http.StatusUnprocessableEntity, domainErr.Code(), domainErr.Message(), domainErr.Details())
	case electionerrors.KindConflict:
		writeElectionError(w, http.StatusConflict, domainErr.Code(), domainErr.Message(), domainErr.Details())
	case electionerrors.KindNotFound:
		writeElectionError(w, http.StatusNotFound, domainErr.Code(), domainErr.Message(), domainErr.Details())
	case electionerrors.KindForbidden:
		writeElectionError(w, http.StatusForbidden, domainErr.Code(), domainErr.Message(), domainErr.Details())
	case electionerrors.KindTransient:
		w.Header().Set("Retry-After", "1")
		writeElectionError(w, http.StatusServiceUnavailable, domainErr.Code(), domainErr.Message(), domainErr.Details())
	case electionerrors.KindFatal:
		s.logger.Error("fatal election error",
			"event", "http_fatal_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"path", r.URL.Path,
			"code", domainErr.Code(),
			"error", err.Error(),
		)
		writeElectionError(w, http.StatusInternalServerError, domainErr.Code(), domainErr.Message(), domainErr.Details())
	default:
		writeElectionError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

func writeElectionError(w http.ResponseWriter, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, electionhttp.ErrorEnvelope{
		Status: "error",
		Error: electionhttp.ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeElectionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
