package http

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Status    string    `json:"status"`
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
}

type IdentityDTO struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
	Institute     string `json:"institute,omitempty"`
	StudentID     string `json:"student_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}

type UpsertIdentityRequest struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
	Institute     string `json:"institute"`
	StudentID     string `json:"student_id"`
	DisplayName   string `json:"display_name"`
}

type IdentityResponse struct {
	Status string      `json:"status"`
	Data   IdentityDTO `json:"data"`
}

type AppointmentDTO struct {
	SlotKey   string `json:"slot_key"`
	Venue     string `json:"venue,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	DecidedAt string `json:"decided_at,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
}

type AppointmentDecisionDTO struct {
	SlotKey   string `json:"slot_key"`
	Venue     string `json:"venue,omitempty"`
	Status    string `json:"status"`
	DecidedBy string `json:"decided_by"`
	Note      string `json:"note,omitempty"`
	DecidedAt string `json:"decided_at"`
}

type CaseTransitionDTO struct {
	Field      string `json:"field"`
	From       string `json:"from"`
	To         string `json:"to"`
	ActorID    string `json:"actor_id"`
	Note       string `json:"note,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type CaseDTO struct {
	CaseID             string                   `json:"case_id"`
	ApplicantID        string                   `json:"applicant_id"`
	Position           string                   `json:"position"`
	Team               string                   `json:"team,omitempty"`
	Documents          map[string]string        `json:"documents"`
	MissingDocuments   []string                 `json:"missing_documents"`
	Status             string                   `json:"status"`
	ScreeningOutcome   string                   `json:"screening_outcome,omitempty"`
	Appointment        *AppointmentDTO          `json:"appointment,omitempty"`
	AppointmentHistory []AppointmentDecisionDTO `json:"appointment_history"`
	Audit              []CaseTransitionDTO      `json:"audit"`
	CreatedAt          string                   `json:"created_at"`
	UpdatedAt          string                   `json:"updated_at"`
	Version            int64                    `json:"version"`
}

type SubmitCaseRequest struct {
	Position  string            `json:"position"`
	Team      string            `json:"team"`
	Documents map[string]string `json:"documents"`
}

type AttachDocumentRequest struct {
	Reference string `json:"reference"`
}

type TransitionCaseRequest struct {
	Note string `json:"note"`
}

type ScreeningOutcomeRequest struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note"`
}

type CaseResponse struct {
	Status string  `json:"status"`
	Data   CaseDTO `json:"data"`
}

type CaseListResponse struct {
	Status string    `json:"status"`
	Data   []CaseDTO `json:"data"`
}

type ReconcileRolesResponse struct {
	Status string `json:"status"`
	Data   struct {
		Promoted []string `json:"promoted"`
		Demoted  []string `json:"demoted"`
	} `json:"data"`
}

type SlotDTO struct {
	SlotKey    string `json:"slot_key"`
	Venue      string `json:"venue,omitempty"`
	Available  bool   `json:"available"`
	ReservedBy string `json:"reserved_by,omitempty"`
}

type CreateSlotRequest struct {
	SlotKey string `json:"slot_key"`
	Venue   string `json:"venue"`
}

type SlotResponse struct {
	Status string  `json:"status"`
	Data   SlotDTO `json:"data"`
}

type SlotListResponse struct {
	Status string    `json:"status"`
	Data   []SlotDTO `json:"data"`
}

type RequestAppointmentRequest struct {
	SlotKey string `json:"slot_key"`
}

type DecideAppointmentRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

type RosterEntryDTO struct {
	EntryID     string `json:"entry_id"`
	CaseID      string `json:"case_id"`
	CandidateID string `json:"candidate_id"`
	DisplayName string `json:"display_name"`
	Position    string `json:"position"`
	Institute   string `json:"institute,omitempty"`
	Team        string `json:"team,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

type CreateRosterEntryRequest struct {
	CaseID      string `json:"case_id"`
	Position    string `json:"position"`
	Team        string `json:"team"`
	DisplayName string `json:"display_name"`
}

// UpdateRosterEntryRequest only changes fields that are present.
type UpdateRosterEntryRequest struct {
	Position    *string `json:"position"`
	Team        *string `json:"team"`
	DisplayName *string `json:"display_name"`
}

type RosterEntryResponse struct {
	Status string         `json:"status"`
	Data   RosterEntryDTO `json:"data"`
}

type RosterListResponse struct {
	Status string           `json:"status"`
	Data   []RosterEntryDTO `json:"data"`
}

type MaterialDTO struct {
	MaterialID  string `json:"material_id"`
	EntryID     string `json:"entry_id"`
	SubmittedBy string `json:"submitted_by"`
	MediaRef    string `json:"media_ref"`
	Caption     string `json:"caption,omitempty"`
	Status      string `json:"status"`
	ReviewedBy  string `json:"reviewed_by,omitempty"`
	ReviewedAt  string `json:"reviewed_at,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type SubmitMaterialRequest struct {
	MediaRef string `json:"media_ref"`
	Caption  string `json:"caption"`
}

type ReviewMaterialRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type MaterialResponse struct {
	Status string      `json:"status"`
	Data   MaterialDTO `json:"data"`
}

type MaterialListResponse struct {
	Status string        `json:"status"`
	Data   []MaterialDTO `json:"data"`
}

// PositionKeyDTO is the wire form of a ballot section key. Institute is set
// only for institute-scoped positions.
type PositionKeyDTO struct {
	Scope     string `json:"scope"`
	Institute string `json:"institute,omitempty"`
	Position  string `json:"position"`
}

type BallotSectionDTO struct {
	Key           PositionKeyDTO   `json:"key"`
	MaxSelections int              `json:"max_selections"`
	Candidates    []RosterEntryDTO `json:"candidates"`
}

type RenderedBallotResponse struct {
	Status string `json:"status"`
	Data   struct {
		VoterID        string             `json:"voter_id"`
		VoterInstitute string             `json:"voter_institute"`
		WindowOpen     bool               `json:"window_open"`
		AlreadyVoted   bool               `json:"already_voted"`
		Sections       []BallotSectionDTO `json:"sections"`
	} `json:"data"`
}

type SelectionDTO struct {
	Key          PositionKeyDTO `json:"key"`
	CandidateIDs []string       `json:"candidate_ids"`
}

type SubmitBallotRequest struct {
	Selections []SelectionDTO `json:"selections"`
}

type BallotDTO struct {
	VoterID        string         `json:"voter_id"`
	VoterInstitute string         `json:"voter_institute"`
	Selections     map[string]any `json:"selections"`
	SubmittedAt    string         `json:"submitted_at"`
}

type BallotResponse struct {
	Status string    `json:"status"`
	Data   BallotDTO `json:"data"`
}

type CandidateTallyDTO struct {
	CandidateID string `json:"candidate_id"`
	Votes       int    `json:"votes"`
}

type TallyDTO struct {
	Key            PositionKeyDTO      `json:"key"`
	MaxSelections  int                 `json:"max_selections"`
	Candidates     []CandidateTallyDTO `json:"candidates"`
	BallotsCounted int                 `json:"ballots_counted"`
	Abstentions    int                 `json:"abstentions"`
	Malformed      int                 `json:"malformed"`
	Excluded       int                 `json:"excluded"`
}

type TallyResponse struct {
	Status string   `json:"status"`
	Data   TallyDTO `json:"data"`
}

type TallyListResponse struct {
	Status string     `json:"status"`
	Data   []TallyDTO `json:"data"`
}

type PhaseDTO struct {
	Phase        string `json:"phase"`
	Configured   bool   `json:"configured"`
	Open         bool   `json:"open"`
	CachedActive bool   `json:"cached_active"`
	StartsAt     string `json:"starts_at,omitempty"`
	EndsAt       string `json:"ends_at,omitempty"`
	UpdatedBy    string `json:"updated_by,omitempty"`
}

type SetPhaseWindowRequest struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type PhaseResponse struct {
	Status string   `json:"status"`
	Data   PhaseDTO `json:"data"`
}

type PhaseListResponse struct {
	Status string     `json:"status"`
	Data   []PhaseDTO `json:"data"`
}

type ArchiveRequest struct {
	Year int `json:"year"`
}

type ArchiveRunDTO struct {
	RunID          string   `json:"run_id"`
	Year           int      `json:"year"`
	Timestamp      string   `json:"timestamp"`
	Status         string   `json:"status"`
	CompletedSteps []string `json:"completed_steps"`
	FailedStep     string   `json:"failed_step,omitempty"`
	FailureReason  string   `json:"failure_reason,omitempty"`
	StartedAt      string   `json:"started_at"`
	FinishedAt     string   `json:"finished_at,omitempty"`
}

type ArchiveRunResponse struct {
	Status string        `json:"status"`
	Data   ArchiveRunDTO `json:"data"`
}

type ArchiveKeyDTO struct {
	Year      int    `json:"year"`
	Timestamp string `json:"timestamp"`
}

type ArchiveListResponse struct {
	Status string          `json:"status"`
	Data   []ArchiveKeyDTO `json:"data"`
}

type PositionResultDTO struct {
	Key           PositionKeyDTO       `json:"key"`
	MaxSelections int                  `json:"max_selections"`
	Candidates    []CandidateResultDTO `json:"candidates"`
	Abstentions   int                  `json:"abstentions"`
}

type CandidateResultDTO struct {
	CandidateID string `json:"candidate_id"`
	DisplayName string `json:"display_name"`
	Institute   string `json:"institute,omitempty"`
	Team        string `json:"team,omitempty"`
	Votes       int    `json:"votes"`
}

type ArchiveResponse struct {
	Status string `json:"status"`
	Data   struct {
		Key          ArchiveKeyDTO       `json:"key"`
		RunID        string              `json:"run_id"`
		CreatedAt    string              `json:"created_at"`
		CreatedBy    string              `json:"created_by"`
		TotalBallots int                 `json:"total_ballots"`
		Turnout      map[string]int      `json:"turnout"`
		Results      []PositionResultDTO `json:"results"`
	} `json:"data"`
}

type ActivityDTO struct {
	EntryID     string            `json:"entry_id"`
	ActorID     string            `json:"actor_id"`
	Action      string            `json:"action"`
	SubjectType string            `json:"subject_type"`
	SubjectID   string            `json:"subject_id"`
	Detail      map[string]string `json:"detail,omitempty"`
	OccurredAt  string            `json:"occurred_at"`
}

type ActivityListResponse struct {
	Status string        `json:"status"`
	Data   []ActivityDTO `json:"data"`
}
