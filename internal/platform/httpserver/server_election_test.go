package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	electionservice "campusvote/contexts/election-administration/election-service"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	"campusvote/internal/platform/auth"
)

const testSecret = "election-test-secret-0123"

type testEnv struct {
	server   *Server
	module   electionservice.Module
	verifier *auth.Verifier
}

func newTestServer(t *testing.T) testEnv {
	t.Helper()
	definition := entities.BallotDefinition{
		Positions: []entities.PositionDefinition{
			{Name: "President", MaxSelections: 1, Scope: entities.ScopeGlobal},
			{Name: "Multimedia Officers", MaxSelections: 3, Scope: entities.ScopeGlobal},
			{Name: "Governor", MaxSelections: 1, Scope: entities.ScopeInstitute},
		},
		Institutes: []string{"IAS", "IBCE"},
	}
	module := electionservice.NewInMemoryModule(definition, nil)
	verifier := auth.NewVerifier(testSecret)
	return testEnv{
		server:   New(module, verifier, nil, ":0"),
		module:   module,
		verifier: verifier,
	}
}

func (e testEnv) token(t *testing.T, userID string, role entities.Role, institute string) string {
	t.Helper()
	token, err := e.verifier.Issue(userID, string(role), institute, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e testEnv) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.mux.ServeHTTP(rr, req)
	return rr
}

func (e testEnv) seedVoter(t *testing.T, userID string, institute string) {
	t.Helper()
	if err := e.module.Store.UpsertIdentity(context.Background(), entities.Identity{
		UserID:        userID,
		Email:         userID + "@campus.test",
		EmailVerified: true,
		Role:          entities.RoleVoter,
		Institute:     institute,
	}); err != nil {
		t.Fatalf("seed voter: %v", err)
	}
}

func (e testEnv) seedCandidate(t *testing.T, candidateID string, position string, institute string) {
	t.Helper()
	now := time.Now().UTC()
	if err := e.module.Store.CreateRosterEntry(context.Background(), entities.RosterEntry{
		EntryID:     "entry-" + candidateID,
		CaseID:      "case-" + candidateID,
		CandidateID: candidateID,
		DisplayName: "Candidate " + candidateID,
		Position:    position,
		Institute:   institute,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
}

func (e testEnv) openVoting(t *testing.T, adminToken string) {
	t.Helper()
	now := time.Now().UTC()
	rr := e.do(t, http.MethodPut, "/api/v1/phases/voting", adminToken, map[string]string{
		"starts_at": now.Add(-time.Hour).Format(time.RFC3339),
		"ends_at":   now.Add(time.Hour).Format(time.RFC3339),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("open voting: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload struct {
		Status string         `json:"status"`
		Error  map[string]any `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json response: %v body=%s", err, rr.Body.String())
	}
	if payload.Status != "error" {
		t.Fatalf("expected error envelope, got %s", rr.Body.String())
	}
	return payload.Error
}

func TestElectionRoutesRequireBearerToken(t *testing.T) {
	env := newTestServer(t)
	for _, tc := range []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/v1/ballot", tc.token, nil)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestServer(t)
	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestPhaseWindowRequiresAdmin(t *testing.T) {
	env := newTestServer(t)
	voter := env.token(t, "stu-1", entities.RoleVoter, "IAS")
	rr := env.do(t, http.MethodPut, "/api/v1/phases/voting", voter, map[string]string{
		"starts_at": "2026-03-01T08:00:00Z",
		"ends_at":   "2026-03-01T17:00:00Z",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitBallotOutsideWindowIsValidationError(t *testing.T) {
	env := newTestServer(t)
	env.seedVoter(t, "stu-1", "IAS")
	voter := env.token(t, "stu-1", entities.RoleVoter, "IAS")

	rr := env.do(t, http.MethodPost, "/api/v1/ballot", voter, map[string]any{"selections": []any{}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := decodeError(t, rr)["code"]; code != "window_closed" {
		t.Fatalf("expected window_closed, got %v", code)
	}
}

func TestSubmitBallotScopedMismatchIsRejectedAndNothingStored(t *testing.T) {
	env := newTestServer(t)
	admin := env.token(t, "adm-1", entities.RoleAdmin, "")
	env.openVoting(t, admin)
	env.seedVoter(t, "stu-a", "IAS")
	env.seedCandidate(t, "mm-1", "Multimedia Officers", "IAS")
	env.seedCandidate(t, "mm-2", "Multimedia Officers", "IBCE")
	env.seedCandidate(t, "mm-3", "Multimedia Officers", "IAS")
	env.seedCandidate(t, "gov-ibce", "Governor", "IBCE")
	voter := env.token(t, "stu-a", entities.RoleVoter, "IAS")

	rr := env.do(t, http.MethodPost, "/api/v1/ballot", voter, map[string]any{
		"selections": []map[string]any{
			{"key": map[string]string{"scope": "global", "position": "Multimedia Officers"}, "candidate_ids": []string{"mm-1", "mm-2", "mm-3"}},
			{"key": map[string]string{"scope": "institute", "institute": "IBCE", "position": "Governor"}, "candidate_ids": []string{"gov-ibce"}},
		},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if code := decodeError(t, rr)["code"]; code != "institute_mismatch" {
		t.Fatalf("expected institute_mismatch, got %v", code)
	}

	mine := env.do(t, http.MethodGet, "/api/v1/ballot/mine", voter, nil)
	if mine.Code != http.StatusNotFound {
		t.Fatalf("expected no stored ballot, got %d body=%s", mine.Code, mine.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/ballot", voter, map[string]any{
		"selections": []map[string]any{
			{"key": map[string]string{"scope": "global", "position": "Multimedia Officers"}, "candidate_ids": []string{"mm-1", "mm-2", "mm-3"}},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected corrected ballot to be accepted, got %d body=%s", rr.Code, rr.Body.String())
	}

	results := env.do(t, http.MethodGet, "/api/v1/results/position?scope=global&position=Multimedia+Officers", admin, nil)
	if results.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", results.Code, results.Body.String())
	}
	var tally struct {
		Data struct {
			Candidates []struct {
				CandidateID string `json:"candidate_id"`
				Votes       int    `json:"votes"`
			} `json:"candidates"`
		} `json:"data"`
	}
	if err := json.Unmarshal(results.Body.Bytes(), &tally); err != nil {
		t.Fatalf("decode tally: %v", err)
	}
	if len(tally.Data.Candidates) != 3 {
		t.Fatalf("expected three counted candidates, got %+v", tally.Data.Candidates)
	}
	for _, item := range tally.Data.Candidates {
		if item.Votes != 1 {
			t.Fatalf("expected one vote each, got %+v", tally.Data.Candidates)
		}
	}
}

func TestConcurrentBallotSubmissionsSucceedExactlyOnce(t *testing.T) {
	env := newTestServer(t)
	admin := env.token(t, "adm-1", entities.RoleAdmin, "")
	env.openVoting(t, admin)
	env.seedVoter(t, "stu-1", "IAS")
	env.seedCandidate(t, "pres-1", "President", "IAS")
	voter := env.token(t, "stu-1", entities.RoleVoter, "IAS")

	body := map[string]any{
		"selections": []map[string]any{
			{"key": map[string]string{"scope": "global", "position": "President"}, "candidate_ids": []string{"pres-1"}},
		},
	}
	var created, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, _ := json.Marshal(body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ballot", bytes.NewReader(raw))
			req.Header.Set("Authorization", "Bearer "+voter)
			rr := httptest.NewRecorder()
			env.server.mux.ServeHTTP(rr, req)
			switch rr.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 || conflicts.Load() != 11 {
		t.Fatalf("expected 1 created and 11 conflicts, got %d and %d", created.Load(), conflicts.Load())
	}
}

func TestResultsHiddenFromVotersWhileVotingIsOpen(t *testing.T) {
	env := newTestServer(t)
	admin := env.token(t, "adm-1", entities.RoleAdmin, "")
	env.openVoting(t, admin)
	voter := env.token(t, "stu-1", entities.RoleVoter, "IAS")

	rr := env.do(t, http.MethodGet, "/api/v1/results", voter, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodGet, "/api/v1/results", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestTabulateRejectsMalformedPositionKey(t *testing.T) {
	env := newTestServer(t)
	admin := env.token(t, "adm-1", entities.RoleAdmin, "")
	rr := env.do(t, http.MethodGet, "/api/v1/results/position?scope=institute&position=Governor", admin, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestArchiveRunThenExportCSV(t *testing.T) {
	env := newTestServer(t)
	admin := env.token(t, "adm-1", entities.RoleAdmin, "")
	env.seedVoter(t, "stu-1", "IAS")

	rr := env.do(t, http.MethodPost, "/api/v1/archives", admin, map[string]int{"year": 2026})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var run struct {
		Data struct {
			Year           int      `json:"year"`
			Timestamp      string   `json:"timestamp"`
			Status         string   `json:"status"`
			CompletedSteps []string `json:"completed_steps"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Data.Status != string(entities.ArchiveRunCompleted) || len(run.Data.CompletedSteps) != len(entities.ArchiveSteps) {
		t.Fatalf("unexpected run: %+v", run.Data)
	}

	export := env.do(t, http.MethodGet, "/api/v1/archives/2026/"+run.Data.Timestamp+"/export", admin, nil)
	if export.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", export.Code, export.Body.String())
	}
	if !strings.HasPrefix(export.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("expected csv content type, got %q", export.Header().Get("Content-Type"))
	}
	if !strings.Contains(export.Body.String(), "total_ballots") {
		t.Fatalf("expected report summary in export, got %s", export.Body.String())
	}

	missing := env.do(t, http.MethodGet, "/api/v1/archives/2026/19990101T000000Z", admin, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
}

func TestInvalidJSONBodyIsBadRequest(t *testing.T) {
	env := newTestServer(t)
	voter := env.token(t, "stu-1", entities.RoleVoter, "IAS")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+voter)
	rr := httptest.NewRecorder()
	env.server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
