package postgresadapter

import (
	"encoding/json"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

type identityModel struct {
	UserID        string    `gorm:"column:user_id;primaryKey"`
	Email         string    `gorm:"column:email"`
	EmailVerified bool      `gorm:"column:email_verified"`
	Role          string    `gorm:"column:role"`
	Institute     string    `gorm:"column:institute"`
	StudentID     string    `gorm:"column:student_id"`
	DisplayName   string    `gorm:"column:display_name"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (identityModel) TableName() string {
	return "election_identities"
}

func identityModelFromEntity(item entities.Identity) identityModel {
	return identityModel{
		UserID:        item.UserID,
		Email:         item.Email,
		EmailVerified: item.EmailVerified,
		Role:          string(item.Role),
		Institute:     item.Institute,
		StudentID:     item.StudentID,
		DisplayName:   item.DisplayName,
		UpdatedAt:     item.UpdatedAt.UTC(),
	}
}

func (m identityModel) toEntity() entities.Identity {
	return entities.Identity{
		UserID:        m.UserID,
		Email:         m.Email,
		EmailVerified: m.EmailVerified,
		Role:          entities.Role(m.Role),
		Institute:     m.Institute,
		StudentID:     m.StudentID,
		DisplayName:   m.DisplayName,
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

type caseModel struct {
	CaseID             string     `gorm:"column:case_id;primaryKey"`
	ApplicantID        string     `gorm:"column:applicant_id"`
	Position           string     `gorm:"column:position"`
	Team               string     `gorm:"column:team"`
	Status             string     `gorm:"column:status"`
	ScreeningOutcome   string     `gorm:"column:screening_outcome"`
	Documents          []byte     `gorm:"column:documents;type:jsonb"`
	Appointment        []byte     `gorm:"column:appointment;type:jsonb"`
	AppointmentHistory []byte     `gorm:"column:appointment_history;type:jsonb"`
	Audit              []byte     `gorm:"column:audit;type:jsonb"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
	ReviewedAt         *time.Time `gorm:"column:reviewed_at"`
	ReviewedBy         string     `gorm:"column:reviewed_by"`
	Version            int64      `gorm:"column:version"`
}

func (caseModel) TableName() string {
	return "election_cases"
}

func caseModelFromEntity(item entities.CandidacyCase) (caseModel, error) {
	documents := item.Documents
	if documents == nil {
		documents = map[entities.DocumentKind]string{}
	}
	documentsJSON, err := json.Marshal(documents)
	if err != nil {
		return caseModel{}, err
	}
	var appointmentJSON []byte
	if item.Appointment != nil {
		if appointmentJSON, err = json.Marshal(item.Appointment); err != nil {
			return caseModel{}, err
		}
	}
	history := item.AppointmentHistory
	if history == nil {
		history = []entities.AppointmentDecision{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return caseModel{}, err
	}
	audit := item.Audit
	if audit == nil {
		audit = []entities.CaseTransition{}
	}
	auditJSON, err := json.Marshal(audit)
	if err != nil {
		return caseModel{}, err
	}
	return caseModel{
		CaseID:             item.CaseID,
		ApplicantID:        item.ApplicantID,
		Position:           item.Position,
		Team:               item.Team,
		Status:             string(item.Status),
		ScreeningOutcome:   string(item.ScreeningOutcome),
		Documents:          documentsJSON,
		Appointment:        appointmentJSON,
		AppointmentHistory: historyJSON,
		Audit:              auditJSON,
		CreatedAt:          item.CreatedAt.UTC(),
		UpdatedAt:          item.UpdatedAt.UTC(),
		ReviewedAt:         utcPtr(item.ReviewedAt),
		ReviewedBy:         item.ReviewedBy,
		Version:            item.Version,
	}, nil
}

func (m caseModel) toEntity() (entities.CandidacyCase, error) {
	item := entities.CandidacyCase{
		CaseID:           m.CaseID,
		ApplicantID:      m.ApplicantID,
		Position:         m.Position,
		Team:             m.Team,
		Status:           entities.CaseStatus(m.Status),
		ScreeningOutcome: entities.ScreeningOutcome(m.ScreeningOutcome),
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
		ReviewedAt:       utcPtr(m.ReviewedAt),
		ReviewedBy:       m.ReviewedBy,
		Version:          m.Version,
	}
	if len(m.Documents) > 0 {
		if err := json.Unmarshal(m.Documents, &item.Documents); err != nil {
			return entities.CandidacyCase{}, err
		}
	}
	if len(m.Appointment) > 0 && string(m.Appointment) != "null" {
		var appointment entities.Appointment
		if err := json.Unmarshal(m.Appointment, &appointment); err != nil {
			return entities.CandidacyCase{}, err
		}
		item.Appointment = &appointment
	}
	if len(m.AppointmentHistory) > 0 {
		if err := json.Unmarshal(m.AppointmentHistory, &item.AppointmentHistory); err != nil {
			return entities.CandidacyCase{}, err
		}
	}
	if len(m.Audit) > 0 {
		if err := json.Unmarshal(m.Audit, &item.Audit); err != nil {
			return entities.CandidacyCase{}, err
		}
	}
	return item, nil
}

type slotModel struct {
	SlotKey    string    `gorm:"column:slot_key;primaryKey"`
	Venue      string    `gorm:"column:venue"`
	Available  bool      `gorm:"column:available"`
	ReservedBy string    `gorm:"column:reserved_by"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (slotModel) TableName() string {
	return "election_slots"
}

func (m slotModel) toEntity() entities.ScreeningSlot {
	return entities.ScreeningSlot{
		SlotKey:    m.SlotKey,
		Venue:      m.Venue,
		Available:  m.Available,
		ReservedBy: m.ReservedBy,
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type rosterModel struct {
	EntryID     string    `gorm:"column:entry_id;primaryKey"`
	CaseID      string    `gorm:"column:case_id"`
	CandidateID string    `gorm:"column:candidate_id"`
	DisplayName string    `gorm:"column:display_name"`
	Position    string    `gorm:"column:position"`
	Institute   string    `gorm:"column:institute"`
	Team        string    `gorm:"column:team"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
	EditedBy    string    `gorm:"column:edited_by"`
}

func (rosterModel) TableName() string {
	return "election_roster"
}

func rosterModelFromEntity(item entities.RosterEntry) rosterModel {
	return rosterModel{
		EntryID:     item.EntryID,
		CaseID:      item.CaseID,
		CandidateID: item.CandidateID,
		DisplayName: item.DisplayName,
		Position:    item.Position,
		Institute:   item.Institute,
		Team:        item.Team,
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
		EditedBy:    item.EditedBy,
	}
}

func (m rosterModel) toEntity() entities.RosterEntry {
	return entities.RosterEntry{
		EntryID:     m.EntryID,
		CaseID:      m.CaseID,
		CandidateID: m.CandidateID,
		DisplayName: m.DisplayName,
		Position:    m.Position,
		Institute:   m.Institute,
		Team:        m.Team,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		EditedBy:    m.EditedBy,
	}
}

type materialModel struct {
	MaterialID  string     `gorm:"column:material_id;primaryKey"`
	EntryID     string     `gorm:"column:entry_id"`
	SubmittedBy string     `gorm:"column:submitted_by"`
	MediaRef    string     `gorm:"column:media_ref"`
	Caption     string     `gorm:"column:caption"`
	Status      string     `gorm:"column:status"`
	ReviewedBy  string     `gorm:"column:reviewed_by"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at"`
	Reason      string     `gorm:"column:reason"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (materialModel) TableName() string {
	return "election_materials"
}

func materialModelFromEntity(item entities.CampaignMaterial) materialModel {
	return materialModel{
		MaterialID:  item.MaterialID,
		EntryID:     item.EntryID,
		SubmittedBy: item.SubmittedBy,
		MediaRef:    item.MediaRef,
		Caption:     item.Caption,
		Status:      string(item.Status),
		ReviewedBy:  item.ReviewedBy,
		ReviewedAt:  utcPtr(item.ReviewedAt),
		Reason:      item.Reason,
		CreatedAt:   item.CreatedAt.UTC(),
	}
}

func (m materialModel) toEntity() entities.CampaignMaterial {
	return entities.CampaignMaterial{
		MaterialID:  m.MaterialID,
		EntryID:     m.EntryID,
		SubmittedBy: m.SubmittedBy,
		MediaRef:    m.MediaRef,
		Caption:     m.Caption,
		Status:      entities.MaterialStatus(m.Status),
		ReviewedBy:  m.ReviewedBy,
		ReviewedAt:  utcPtr(m.ReviewedAt),
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type ballotModel struct {
	VoterID        string    `gorm:"column:voter_id;primaryKey"`
	VoterInstitute string    `gorm:"column:voter_institute"`
	Selections     []byte    `gorm:"column:selections;type:jsonb"`
	SubmittedAt    time.Time `gorm:"column:submitted_at"`
}

func (ballotModel) TableName() string {
	return "election_ballots"
}

func ballotModelFromEntity(item entities.BallotRecord) (ballotModel, error) {
	selections := item.Selections
	if selections == nil {
		selections = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(selections)
	if err != nil {
		return ballotModel{}, err
	}
	return ballotModel{
		VoterID:        item.VoterID,
		VoterInstitute: item.VoterInstitute,
		Selections:     raw,
		SubmittedAt:    item.SubmittedAt.UTC(),
	}, nil
}

// toEntity keeps each selection raw; a malformed value surfaces at
// tabulation, not here.
func (m ballotModel) toEntity() (entities.BallotRecord, error) {
	item := entities.BallotRecord{
		VoterID:        m.VoterID,
		VoterInstitute: m.VoterInstitute,
		Selections:     map[string]json.RawMessage{},
		SubmittedAt:    m.SubmittedAt.UTC(),
	}
	if len(m.Selections) > 0 {
		if err := json.Unmarshal(m.Selections, &item.Selections); err != nil {
			return entities.BallotRecord{}, err
		}
	}
	return item, nil
}

type phaseWindowModel struct {
	Phase        string    `gorm:"column:phase;primaryKey"`
	StartsAt     time.Time `gorm:"column:starts_at"`
	EndsAt       time.Time `gorm:"column:ends_at"`
	CachedActive bool      `gorm:"column:cached_active"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
	UpdatedBy    string    `gorm:"column:updated_by"`
}

func (phaseWindowModel) TableName() string {
	return "election_phase_windows"
}

func (m phaseWindowModel) toEntity() entities.PhaseWindow {
	return entities.PhaseWindow{
		Phase:        entities.Phase(m.Phase),
		StartsAt:     m.StartsAt.UTC(),
		EndsAt:       m.EndsAt.UTC(),
		CachedActive: m.CachedActive,
		UpdatedAt:    m.UpdatedAt.UTC(),
		UpdatedBy:    m.UpdatedBy,
	}
}

type activityModel struct {
	EntryID     string    `gorm:"column:entry_id;primaryKey"`
	ActorID     string    `gorm:"column:actor_id"`
	Action      string    `gorm:"column:action"`
	SubjectType string    `gorm:"column:subject_type"`
	SubjectID   string    `gorm:"column:subject_id"`
	Detail      []byte    `gorm:"column:detail;type:jsonb"`
	OccurredAt  time.Time `gorm:"column:occurred_at"`
}

func (activityModel) TableName() string {
	return "election_activity"
}

func (m activityModel) toEntity() entities.ActivityEntry {
	item := entities.ActivityEntry{
		EntryID:     m.EntryID,
		ActorID:     m.ActorID,
		Action:      m.Action,
		SubjectType: m.SubjectType,
		SubjectID:   m.SubjectID,
		OccurredAt:  m.OccurredAt.UTC(),
	}
	_ = json.Unmarshal(m.Detail, &item.Detail)
	return item
}

type notificationModel struct {
	NotificationID string     `gorm:"column:notification_id;primaryKey"`
	Recipient      string     `gorm:"column:recipient"`
	TemplateKind   string     `gorm:"column:template_kind"`
	TemplateData   []byte     `gorm:"column:template_data;type:jsonb"`
	Status         string     `gorm:"column:status"`
	Attempts       int        `gorm:"column:attempts"`
	LastError      string     `gorm:"column:last_error"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	SentAt         *time.Time `gorm:"column:sent_at"`
}

func (notificationModel) TableName() string {
	return "election_notifications"
}

func (m notificationModel) toEntity() entities.Notification {
	item := entities.Notification{
		NotificationID: m.NotificationID,
		Recipient:      m.Recipient,
		TemplateKind:   m.TemplateKind,
		Status:         entities.NotificationStatus(m.Status),
		Attempts:       m.Attempts,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt.UTC(),
		SentAt:         utcPtr(m.SentAt),
	}
	_ = json.Unmarshal(m.TemplateData, &item.TemplateData)
	return item
}

type archiveLockModel struct {
	LockName   string    `gorm:"column:lock_name;primaryKey"`
	RunID      string    `gorm:"column:run_id"`
	AcquiredAt time.Time `gorm:"column:acquired_at"`
}

func (archiveLockModel) TableName() string {
	return "election_archive_lock"
}

type archiveRunModel struct {
	RunID            string     `gorm:"column:run_id;primaryKey"`
	Year             int        `gorm:"column:year"`
	ArchiveTimestamp string     `gorm:"column:archive_timestamp"`
	RequestedBy      string     `gorm:"column:requested_by"`
	Status           string     `gorm:"column:status"`
	Steps            []byte     `gorm:"column:steps;type:jsonb"`
	FailedStep       string     `gorm:"column:failed_step"`
	FailureReason    string     `gorm:"column:failure_reason"`
	StartedAt        time.Time  `gorm:"column:started_at"`
	FinishedAt       *time.Time `gorm:"column:finished_at"`
}

func (archiveRunModel) TableName() string {
	return "election_archive_runs"
}

func archiveRunModelFromEntity(item entities.ArchiveRun) (archiveRunModel, error) {
	steps := item.Steps
	if steps == nil {
		steps = []entities.ArchiveStepRecord{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return archiveRunModel{}, err
	}
	return archiveRunModel{
		RunID:            item.RunID,
		Year:             item.Key.Year,
		ArchiveTimestamp: item.Key.Timestamp,
		RequestedBy:      item.RequestedBy,
		Status:           string(item.Status),
		Steps:            raw,
		FailedStep:       string(item.FailedStep),
		FailureReason:    item.FailureReason,
		StartedAt:        item.StartedAt.UTC(),
		FinishedAt:       utcPtr(item.FinishedAt),
	}, nil
}

func (m archiveRunModel) toEntity() (entities.ArchiveRun, error) {
	item := entities.ArchiveRun{
		RunID:         m.RunID,
		Key:           entities.ArchiveKey{Year: m.Year, Timestamp: m.ArchiveTimestamp},
		RequestedBy:   m.RequestedBy,
		Status:        entities.ArchiveRunStatus(m.Status),
		FailedStep:    entities.ArchiveStep(m.FailedStep),
		FailureReason: m.FailureReason,
		StartedAt:     m.StartedAt.UTC(),
		FinishedAt:    utcPtr(m.FinishedAt),
	}
	if len(m.Steps) > 0 {
		if err := json.Unmarshal(m.Steps, &item.Steps); err != nil {
			return entities.ArchiveRun{}, err
		}
	}
	return item, nil
}

type archiveModel struct {
	Year             int       `gorm:"column:year;primaryKey"`
	ArchiveTimestamp string    `gorm:"column:archive_timestamp;primaryKey"`
	RunID            string    `gorm:"column:run_id"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	CreatedBy        string    `gorm:"column:created_by"`
	Report           []byte    `gorm:"column:report;type:jsonb"`
	Raw              []byte    `gorm:"column:raw;type:jsonb"`
}

func (archiveModel) TableName() string {
	return "election_archives"
}

func archiveModelFromEntity(item entities.ArchiveSnapshot) (archiveModel, error) {
	report, err := json.Marshal(item.Report)
	if err != nil {
		return archiveModel{}, err
	}
	raw, err := json.Marshal(item.Raw)
	if err != nil {
		return archiveModel{}, err
	}
	return archiveModel{
		Year:             item.Key.Year,
		ArchiveTimestamp: item.Key.Timestamp,
		RunID:            item.RunID,
		CreatedAt:        item.CreatedAt.UTC(),
		CreatedBy:        item.CreatedBy,
		Report:           report,
		Raw:              raw,
	}, nil
}

func (m archiveModel) toEntity() (entities.ArchiveSnapshot, error) {
	item := entities.ArchiveSnapshot{
		Key:       entities.ArchiveKey{Year: m.Year, Timestamp: m.ArchiveTimestamp},
		RunID:     m.RunID,
		CreatedAt: m.CreatedAt.UTC(),
		CreatedBy: m.CreatedBy,
	}
	if err := json.Unmarshal(m.Report, &item.Report); err != nil {
		return entities.ArchiveSnapshot{}, err
	}
	if err := json.Unmarshal(m.Raw, &item.Raw); err != nil {
		return entities.ArchiveSnapshot{}, err
	}
	return item, nil
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := value.UTC()
	return &out
}

func jsonOrEmpty(value map[string]string) []byte {
	if value == nil {
		return []byte("{}")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
