package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"

	"github.com/google/uuid"
)

// Store keeps every election collection in process memory. Each exported
// method holds the mutex for its whole read-check-write, which is what makes
// slot reservation and ballot creation atomic here.
type Store struct {
	mu sync.RWMutex

	identities    map[string]entities.Identity
	cases         map[string]entities.CandidacyCase
	slots         map[string]entities.ScreeningSlot
	roster        map[string]entities.RosterEntry
	materials     map[string]entities.CampaignMaterial
	ballots       map[string]entities.BallotRecord
	phases        map[entities.Phase]entities.PhaseWindow
	activity      []entities.ActivityEntry
	notifications map[string]entities.Notification

	archiveLock string
	archiveRuns map[string]entities.ArchiveRun
	archives    map[entities.ArchiveKey]entities.ArchiveSnapshot
}

func NewStore() *Store {
	s := &Store{
		identities:    make(map[string]entities.Identity),
		notifications: make(map[string]entities.Notification),
		archiveRuns:   make(map[string]entities.ArchiveRun),
		archives:      make(map[entities.ArchiveKey]entities.ArchiveSnapshot),
	}
	s.resetLiveLocked()
	return s
}

func (s *Store) resetLiveLocked() {
	s.cases = make(map[string]entities.CandidacyCase)
	s.slots = make(map[string]entities.ScreeningSlot)
	s.roster = make(map[string]entities.RosterEntry)
	s.materials = make(map[string]entities.CampaignMaterial)
	s.ballots = make(map[string]entities.BallotRecord)
	s.phases = make(map[entities.Phase]entities.PhaseWindow)
	s.activity = nil
}

func (s *Store) GetIdentity(_ context.Context, userID string) (entities.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[strings.TrimSpace(userID)]
	if !ok {
		return entities.Identity{}, domainerrors.ErrIdentityNotFound
	}
	return identity, nil
}

func (s *Store) UpsertIdentity(_ context.Context, identity entities.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[strings.TrimSpace(identity.UserID)] = identity
	return nil
}

func (s *Store) ListIdentitiesByRole(_ context.Context, role entities.Role) ([]entities.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Identity, 0)
	for _, identity := range s.identities {
		if role == "" || identity.Role == role {
			items = append(items, identity)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UserID < items[j].UserID })
	return items, nil
}

func (s *Store) SetRole(_ context.Context, userID string, role entities.Role, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[strings.TrimSpace(userID)]
	if !ok {
		return domainerrors.ErrIdentityNotFound
	}
	identity.Role = role
	identity.UpdatedAt = now
	s.identities[identity.UserID] = identity
	return nil
}

func (s *Store) CreateCase(_ context.Context, c entities.CandidacyCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.CaseID]; exists {
		return domainerrors.ErrConcurrentModification
	}
	for _, existing := range s.cases {
		if existing.ApplicantID == c.ApplicantID && existing.Active() {
			return domainerrors.WithDetails(domainerrors.ErrActiveCaseExists, map[string]any{
				"case_id": existing.CaseID,
			})
		}
	}
	s.cases[c.CaseID] = c.Clone()
	return nil
}

func (s *Store) GetCase(_ context.Context, caseID string) (entities.CandidacyCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[strings.TrimSpace(caseID)]
	if !ok {
		return entities.CandidacyCase{}, domainerrors.ErrCaseNotFound
	}
	return c.Clone(), nil
}

func (s *Store) ListCases(_ context.Context, filter ports.CaseFilter) ([]entities.CandidacyCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.CandidacyCase, 0)
	for _, c := range s.cases {
		if filter.ApplicantID != "" && c.ApplicantID != filter.ApplicantID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		items = append(items, c.Clone())
	}
	sortCases(items)
	return items, nil
}

func (s *Store) ApplyCaseMutation(_ context.Context, mutation ports.CaseMutation) (entities.CandidacyCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caseID := mutation.Case.CaseID
	current, ok := s.cases[caseID]
	if !ok {
		return entities.CandidacyCase{}, domainerrors.ErrCaseNotFound
	}
	if current.Version != mutation.ExpectedVersion {
		return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrConcurrentModification, map[string]any{
			"case_id":          caseID,
			"expected_version": mutation.ExpectedVersion,
			"stored_version":   current.Version,
		})
	}

	// Validate everything before the first write so a failure leaves no trace.
	var reserved entities.ScreeningSlot
	if mutation.ReserveSlot != "" {
		slot, ok := s.slots[mutation.ReserveSlot]
		if !ok {
			return entities.CandidacyCase{}, domainerrors.ErrSlotNotFound
		}
		if !slot.Available {
			return entities.CandidacyCase{}, domainerrors.WithDetails(domainerrors.ErrSlotTaken, map[string]any{
				"slot_key": slot.SlotKey,
			})
		}
		reserved = slot
	}
	var identity entities.Identity
	if mutation.RoleChange != nil {
		found, ok := s.identities[mutation.RoleChange.UserID]
		if !ok {
			return entities.CandidacyCase{}, domainerrors.ErrIdentityNotFound
		}
		identity = found
	}

	if mutation.ReserveSlot != "" {
		reserved.Available = false
		reserved.ReservedBy = caseID
		reserved.UpdatedAt = mutation.Now
		s.slots[reserved.SlotKey] = reserved
	}
	if mutation.ReleaseSlot != "" {
		if slot, ok := s.slots[mutation.ReleaseSlot]; ok && slot.ReservedBy == caseID {
			slot.Available = true
			slot.ReservedBy = ""
			slot.UpdatedAt = mutation.Now
			s.slots[slot.SlotKey] = slot
		}
	}
	if mutation.RoleChange != nil {
		identity.Role = mutation.RoleChange.Role
		identity.UpdatedAt = mutation.Now
		s.identities[identity.UserID] = identity
	}
	next := mutation.Case.Clone()
	next.Version = current.Version + 1
	s.cases[caseID] = next
	return next.Clone(), nil
}

func (s *Store) CreateSlot(_ context.Context, slot entities.ScreeningSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.slots[slot.SlotKey]; exists {
		return domainerrors.ErrSlotExists
	}
	s.slots[slot.SlotKey] = slot
	return nil
}

func (s *Store) GetSlot(_ context.Context, slotKey string) (entities.ScreeningSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[strings.TrimSpace(slotKey)]
	if !ok {
		return entities.ScreeningSlot{}, domainerrors.ErrSlotNotFound
	}
	return slot, nil
}

func (s *Store) ListSlots(_ context.Context) ([]entities.ScreeningSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.ScreeningSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		items = append(items, slot)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SlotKey < items[j].SlotKey })
	return items, nil
}

func (s *Store) DeleteSlot(_ context.Context, slotKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[strings.TrimSpace(slotKey)]
	if !ok {
		return domainerrors.ErrSlotNotFound
	}
	if !slot.Available {
		return domainerrors.ErrSlotReserved
	}
	delete(s.slots, slot.SlotKey)
	return nil
}

func (s *Store) CreateRosterEntry(_ context.Context, entry entities.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roster {
		if existing.CandidateID == entry.CandidateID {
			return domainerrors.WithDetails(domainerrors.ErrRosterEntryExists, map[string]any{
				"entry_id": existing.EntryID,
			})
		}
	}
	s.roster[entry.EntryID] = entry
	return nil
}

func (s *Store) GetRosterEntry(_ context.Context, entryID string) (entities.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.roster[strings.TrimSpace(entryID)]
	if !ok {
		return entities.RosterEntry{}, domainerrors.ErrRosterEntryNotFound
	}
	return entry, nil
}

func (s *Store) UpdateRosterEntry(_ context.Context, entry entities.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.roster[entry.EntryID]
	if !ok {
		return domainerrors.ErrRosterEntryNotFound
	}
	entry.CandidateID = current.CandidateID
	entry.CaseID = current.CaseID
	entry.CreatedAt = current.CreatedAt
	s.roster[entry.EntryID] = entry
	return nil
}

func (s *Store) DeleteRosterEntry(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roster[strings.TrimSpace(entryID)]; !ok {
		return domainerrors.ErrRosterEntryNotFound
	}
	delete(s.roster, strings.TrimSpace(entryID))
	return nil
}

func (s *Store) ListRoster(_ context.Context) ([]entities.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.RosterEntry, 0, len(s.roster))
	for _, entry := range s.roster {
		items = append(items, entry)
	}
	sortRoster(items)
	return items, nil
}

func (s *Store) CreateMaterial(_ context.Context, material entities.CampaignMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[material.MaterialID] = material
	return nil
}

func (s *Store) GetMaterial(_ context.Context, materialID string) (entities.CampaignMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	material, ok := s.materials[strings.TrimSpace(materialID)]
	if !ok {
		return entities.CampaignMaterial{}, domainerrors.ErrMaterialNotFound
	}
	return material, nil
}

func (s *Store) DecideMaterial(_ context.Context, material entities.CampaignMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.materials[material.MaterialID]
	if !ok {
		return domainerrors.ErrMaterialNotFound
	}
	if current.Status != entities.MaterialStatusPending {
		return domainerrors.ErrMaterialDecided
	}
	s.materials[material.MaterialID] = material
	return nil
}

func (s *Store) ListMaterials(_ context.Context, filter ports.MaterialFilter) ([]entities.CampaignMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.CampaignMaterial, 0)
	for _, material := range s.materials {
		if filter.EntryID != "" && material.EntryID != filter.EntryID {
			continue
		}
		if filter.Status != "" && material.Status != filter.Status {
			continue
		}
		items = append(items, material)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].MaterialID < items[j].MaterialID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) CreateBallot(_ context.Context, ballot entities.BallotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ballots[ballot.VoterID]; exists {
		return domainerrors.WithDetails(domainerrors.ErrBallotAlreadyCast, map[string]any{
			"voter_id": ballot.VoterID,
		})
	}
	s.ballots[ballot.VoterID] = ballot.Clone()
	return nil
}

func (s *Store) GetBallot(_ context.Context, voterID string) (entities.BallotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[strings.TrimSpace(voterID)]
	if !ok {
		return entities.BallotRecord{}, domainerrors.ErrBallotNotFound
	}
	return ballot.Clone(), nil
}

func (s *Store) ListBallots(_ context.Context) ([]entities.BallotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.BallotRecord, 0, len(s.ballots))
	for _, ballot := range s.ballots {
		items = append(items, ballot.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].VoterID < items[j].VoterID })
	return items, nil
}

func (s *Store) GetPhaseWindow(_ context.Context, phase entities.Phase) (entities.PhaseWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window, ok := s.phases[phase]
	if !ok {
		return entities.PhaseWindow{}, domainerrors.ErrWindowNotFound
	}
	return window, nil
}

func (s *Store) SavePhaseWindow(_ context.Context, window entities.PhaseWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[window.Phase] = window
	return nil
}

func (s *Store) ListPhaseWindows(_ context.Context) ([]entities.PhaseWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.PhaseWindow, 0, len(s.phases))
	for _, window := range s.phases {
		items = append(items, window)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Phase < items[j].Phase })
	return items, nil
}

func (s *Store) AppendActivity(_ context.Context, entry entities.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, entry)
	return nil
}

func (s *Store) ListActivity(_ context.Context, limit int) ([]entities.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := append([]entities.ActivityEntry(nil), s.activity...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].OccurredAt.After(items[j].OccurredAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) AcquireArchiveLock(_ context.Context, runID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archiveLock != "" && s.archiveLock != runID {
		return domainerrors.WithDetails(domainerrors.ErrArchiveInProgress, map[string]any{
			"run_id": s.archiveLock,
		})
	}
	s.archiveLock = runID
	return nil
}

func (s *Store) ReleaseArchiveLock(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archiveLock == runID {
		s.archiveLock = ""
	}
	return nil
}

func (s *Store) SaveArchiveRun(_ context.Context, run entities.ArchiveRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Steps = append([]entities.ArchiveStepRecord(nil), run.Steps...)
	s.archiveRuns[run.RunID] = run
	return nil
}

func (s *Store) GetArchiveRun(_ context.Context, runID string) (entities.ArchiveRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.archiveRuns[strings.TrimSpace(runID)]
	if !ok {
		return entities.ArchiveRun{}, domainerrors.ErrArchiveRunNotFound
	}
	run.Steps = append([]entities.ArchiveStepRecord(nil), run.Steps...)
	return run, nil
}

func (s *Store) LoadLiveState(_ context.Context) (entities.LiveState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := entities.LiveState{
		Identities: make([]entities.Identity, 0, len(s.identities)),
		Cases:      make([]entities.CandidacyCase, 0, len(s.cases)),
		Slots:      make([]entities.ScreeningSlot, 0, len(s.slots)),
		Roster:     make([]entities.RosterEntry, 0, len(s.roster)),
		Materials:  make([]entities.CampaignMaterial, 0, len(s.materials)),
		Ballots:    make([]entities.BallotRecord, 0, len(s.ballots)),
		Phases:     make([]entities.PhaseWindow, 0, len(s.phases)),
		Activity:   append([]entities.ActivityEntry(nil), s.activity...),
	}
	for _, identity := range s.identities {
		state.Identities = append(state.Identities, identity)
	}
	for _, c := range s.cases {
		state.Cases = append(state.Cases, c.Clone())
	}
	for _, slot := range s.slots {
		state.Slots = append(state.Slots, slot)
	}
	for _, entry := range s.roster {
		state.Roster = append(state.Roster, entry)
	}
	for _, material := range s.materials {
		state.Materials = append(state.Materials, material)
	}
	for _, ballot := range s.ballots {
		state.Ballots = append(state.Ballots, ballot.Clone())
	}
	for _, window := range s.phases {
		state.Phases = append(state.Phases, window)
	}
	sort.Slice(state.Identities, func(i, j int) bool { return state.Identities[i].UserID < state.Identities[j].UserID })
	sortCases(state.Cases)
	sort.Slice(state.Slots, func(i, j int) bool { return state.Slots[i].SlotKey < state.Slots[j].SlotKey })
	sortRoster(state.Roster)
	sort.Slice(state.Materials, func(i, j int) bool { return state.Materials[i].MaterialID < state.Materials[j].MaterialID })
	sort.Slice(state.Ballots, func(i, j int) bool { return state.Ballots[i].VoterID < state.Ballots[j].VoterID })
	sort.Slice(state.Phases, func(i, j int) bool { return state.Phases[i].Phase < state.Phases[j].Phase })
	return state, nil
}

func (s *Store) WriteArchive(_ context.Context, snapshot entities.ArchiveSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.archives[snapshot.Key]; ok {
		if existing.RunID == snapshot.RunID {
			return nil
		}
		return domainerrors.ErrArchiveExists
	}
	s.archives[snapshot.Key] = snapshot
	return nil
}

func (s *Store) GetArchive(_ context.Context, key entities.ArchiveKey) (entities.ArchiveSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.archives[key]
	if !ok {
		return entities.ArchiveSnapshot{}, domainerrors.ErrArchiveNotFound
	}
	return snapshot, nil
}

func (s *Store) ListArchives(_ context.Context) ([]entities.ArchiveKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]entities.ArchiveKey, 0, len(s.archives))
	for key := range s.archives {
		keys = append(keys, key)
	}
	sortArchiveKeys(keys)
	return keys, nil
}

func (s *Store) DemoteCandidates(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	demoted := 0
	for id, identity := range s.identities {
		if identity.Role != entities.RoleCandidate {
			continue
		}
		identity.Role = entities.RoleVoter
		identity.UpdatedAt = now
		s.identities[id] = identity
		demoted++
	}
	return demoted, nil
}

func (s *Store) ClearLiveState(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLiveLocked()
	return nil
}

func (s *Store) EnqueueNotification(_ context.Context, notification entities.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[notification.NotificationID] = notification
	return nil
}

func (s *Store) ListPendingNotifications(_ context.Context, limit int) ([]entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Notification, 0)
	for _, notification := range s.notifications {
		if notification.Status == entities.NotificationStatusPending {
			items = append(items, notification)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].NotificationID < items[j].NotificationID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkNotificationDispatched(_ context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok || notification.Status != entities.NotificationStatusPending {
		return nil
	}
	notification.Status = entities.NotificationStatusDispatched
	s.notifications[notificationID] = notification
	return nil
}

func (s *Store) GetNotification(_ context.Context, notificationID string) (entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	return notification, nil
}

func (s *Store) MarkNotificationSent(_ context.Context, notificationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return nil
	}
	sentAt := at
	notification.Status = entities.NotificationStatusSent
	notification.SentAt = &sentAt
	notification.Attempts++
	s.notifications[notificationID] = notification
	return nil
}

func (s *Store) MarkNotificationFailed(_ context.Context, notificationID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[notificationID]
	if !ok {
		return nil
	}
	notification.Status = entities.NotificationStatusFailed
	notification.LastError = reason
	notification.Attempts++
	s.notifications[notificationID] = notification
	return nil
}

// Notifications returns every queued notification; used by tests.
func (s *Store) Notifications() []entities.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Notification, 0, len(s.notifications))
	for _, notification := range s.notifications {
		items = append(items, notification)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].NotificationID < items[j].NotificationID })
	return items
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortCases(items []entities.CandidacyCase) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CaseID < items[j].CaseID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func sortRoster(items []entities.RosterEntry) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		if items[i].Institute != items[j].Institute {
			return items[i].Institute < items[j].Institute
		}
		return items[i].CandidateID < items[j].CandidateID
	})
}

func sortArchiveKeys(keys []entities.ArchiveKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year > keys[j].Year
		}
		return keys[i].Timestamp > keys[j].Timestamp
	})
}

var _ ports.Store = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
