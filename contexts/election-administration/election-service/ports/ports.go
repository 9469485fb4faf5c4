package ports

import (
	"context"
	"io"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	"campusvote/internal/shared/events"
)

type IdentityDirectory interface {
	GetIdentity(ctx context.Context, userID string) (entities.Identity, error)
	UpsertIdentity(ctx context.Context, identity entities.Identity) error
	ListIdentitiesByRole(ctx context.Context, role entities.Role) ([]entities.Identity, error)
	SetRole(ctx context.Context, userID string, role entities.Role, now time.Time) error
}

// RoleChange is applied in the same atomic unit as the case mutation that
// carries it.
type RoleChange struct {
	UserID string
	Role   entities.Role
}

// CaseMutation is the single atomic write primitive over a case. The store
// commits the case (version+1), the slot flips and the role change together
// or not at all. ExpectedVersion must match the stored case version.
type CaseMutation struct {
	Case            entities.CandidacyCase
	ExpectedVersion int64
	ReserveSlot     string
	ReleaseSlot     string
	RoleChange      *RoleChange
	Now             time.Time
}

type CaseFilter struct {
	ApplicantID string
	Status      entities.CaseStatus
}

type CaseRepository interface {
	// CreateCase fails with ErrActiveCaseExists when the applicant already
	// holds an active case.
	CreateCase(ctx context.Context, c entities.CandidacyCase) error
	GetCase(ctx context.Context, caseID string) (entities.CandidacyCase, error)
	ListCases(ctx context.Context, filter CaseFilter) ([]entities.CandidacyCase, error)
	ApplyCaseMutation(ctx context.Context, mutation CaseMutation) (entities.CandidacyCase, error)
}

type SlotRepository interface {
	CreateSlot(ctx context.Context, slot entities.ScreeningSlot) error
	GetSlot(ctx context.Context, slotKey string) (entities.ScreeningSlot, error)
	ListSlots(ctx context.Context) ([]entities.ScreeningSlot, error)
	// DeleteSlot only removes an available slot.
	DeleteSlot(ctx context.Context, slotKey string) error
}

type RosterRepository interface {
	// CreateRosterEntry fails with ErrRosterEntryExists when the candidate
	// already has an entry.
	CreateRosterEntry(ctx context.Context, entry entities.RosterEntry) error
	GetRosterEntry(ctx context.Context, entryID string) (entities.RosterEntry, error)
	UpdateRosterEntry(ctx context.Context, entry entities.RosterEntry) error
	DeleteRosterEntry(ctx context.Context, entryID string) error
	ListRoster(ctx context.Context) ([]entities.RosterEntry, error)
}

type MaterialFilter struct {
	EntryID string
	Status  entities.MaterialStatus
}

type CampaignRepository interface {
	CreateMaterial(ctx context.Context, material entities.CampaignMaterial) error
	GetMaterial(ctx context.Context, materialID string) (entities.CampaignMaterial, error)
	// DecideMaterial writes the decision only while the stored material is
	// still pending.
	DecideMaterial(ctx context.Context, material entities.CampaignMaterial) error
	ListMaterials(ctx context.Context, filter MaterialFilter) ([]entities.CampaignMaterial, error)
}

type BallotRepository interface {
	// CreateBallot is a create-if-absent keyed by voter id; a collision
	// fails with ErrBallotAlreadyCast and leaves the stored ballot intact.
	CreateBallot(ctx context.Context, ballot entities.BallotRecord) error
	GetBallot(ctx context.Context, voterID string) (entities.BallotRecord, error)
	ListBallots(ctx context.Context) ([]entities.BallotRecord, error)
}

type PhaseRepository interface {
	GetPhaseWindow(ctx context.Context, phase entities.Phase) (entities.PhaseWindow, error)
	SavePhaseWindow(ctx context.Context, window entities.PhaseWindow) error
	ListPhaseWindows(ctx context.Context) ([]entities.PhaseWindow, error)
}

type ActivityLog interface {
	AppendActivity(ctx context.Context, entry entities.ActivityEntry) error
	ListActivity(ctx context.Context, limit int) ([]entities.ActivityEntry, error)
}

type ArchiveRepository interface {
	// AcquireArchiveLock fails with ErrArchiveInProgress while any run,
	// including a failed one awaiting resume, holds the lock.
	AcquireArchiveLock(ctx context.Context, runID string, now time.Time) error
	ReleaseArchiveLock(ctx context.Context, runID string) error
	SaveArchiveRun(ctx context.Context, run entities.ArchiveRun) error
	GetArchiveRun(ctx context.Context, runID string) (entities.ArchiveRun, error)
	LoadLiveState(ctx context.Context) (entities.LiveState, error)
	// WriteArchive is idempotent for the same run id and fails with
	// ErrArchiveExists for a different run.
	WriteArchive(ctx context.Context, snapshot entities.ArchiveSnapshot) error
	GetArchive(ctx context.Context, key entities.ArchiveKey) (entities.ArchiveSnapshot, error)
	ListArchives(ctx context.Context) ([]entities.ArchiveKey, error)
	DemoteCandidates(ctx context.Context, now time.Time) (int, error)
	ClearLiveState(ctx context.Context) error
}

type NotificationOutbox interface {
	EnqueueNotification(ctx context.Context, notification entities.Notification) error
	ListPendingNotifications(ctx context.Context, limit int) ([]entities.Notification, error)
	// MarkNotificationDispatched records that the row was handed to the bus.
	MarkNotificationDispatched(ctx context.Context, notificationID string) error
	GetNotification(ctx context.Context, notificationID string) (entities.Notification, error)
	MarkNotificationSent(ctx context.Context, notificationID string, at time.Time) error
	MarkNotificationFailed(ctx context.Context, notificationID string, reason string) error
}

// Notifier delivers one message. Callers treat it as fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, notification entities.Notification) error
}

type ArchiveExporter interface {
	ContentType() string
	Export(w io.Writer, report entities.ArchiveReport) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, events.Envelope) error,
	) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Store is implemented by every persistence adapter.
type Store interface {
	IdentityDirectory
	CaseRepository
	SlotRepository
	RosterRepository
	CampaignRepository
	BallotRepository
	PhaseRepository
	ActivityLog
	ArchiveRepository
	NotificationOutbox
}
