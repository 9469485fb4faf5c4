package firestoreadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"
)

// Repository stores the election in Firestore. Every multi-document
// invariant (single active case, slot reservation with its case, roster
// uniqueness, the archive lock) is enforced inside a transaction.
type Repository struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewRepository(client *firestore.Client, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{client: client, logger: logger}
}

func (r *Repository) doc(collection string, id string) *firestore.DocumentRef {
	return r.client.Collection(collection).Doc(strings.TrimSpace(id))
}

func (r *Repository) GetIdentity(ctx context.Context, userID string) (entities.Identity, error) {
	snap, err := r.doc(identitiesCollection, userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.Identity{}, domainerrors.ErrIdentityNotFound
		}
		return entities.Identity{}, err
	}
	var identity entities.Identity
	return identity, decode(snap, &identity)
}

func (r *Repository) UpsertIdentity(ctx context.Context, identity entities.Identity) error {
	data, err := encode(identity, map[string]any{"role": string(identity.Role)})
	if err != nil {
		return err
	}
	_, err = r.doc(identitiesCollection, identity.UserID).Set(ctx, data)
	return err
}

func (r *Repository) ListIdentitiesByRole(ctx context.Context, role entities.Role) ([]entities.Identity, error) {
	query := r.client.Collection(identitiesCollection).Query
	if role != "" {
		query = query.Where("role", "==", string(role))
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.Identity](snaps)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UserID < items[j].UserID })
	return items, nil
}

func (r *Repository) SetRole(ctx context.Context, userID string, role entities.Role, now time.Time) error {
	ref := r.doc(identitiesCollection, userID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domainerrors.ErrIdentityNotFound
			}
			return err
		}
		var identity entities.Identity
		if err := decode(snap, &identity); err != nil {
			return err
		}
		identity.Role = role
		identity.UpdatedAt = now.UTC()
		data, err := encode(identity, map[string]any{"role": string(role)})
		if err != nil {
			return err
		}
		return tx.Set(ref, data)
	})
}

func caseFields(c entities.CandidacyCase) map[string]any {
	return map[string]any{
		"applicant_id": c.ApplicantID,
		"status":       string(c.Status),
		"version":      c.Version,
	}
}

// CreateCase claims the applicant lock document. A lock pointing at a case
// that is no longer active is taken over.
func (r *Repository) CreateCase(ctx context.Context, c entities.CandidacyCase) error {
	caseRef := r.doc(casesCollection, c.CaseID)
	lockRef := r.doc(applicantLocksCollection, c.ApplicantID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		lock, err := tx.Get(lockRef)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil {
			heldBy, _ := lock.Data()["case_id"].(string)
			held, err := tx.Get(r.doc(casesCollection, heldBy))
			if err != nil && !isNotFound(err) {
				return err
			}
			if err == nil {
				var existing entities.CandidacyCase
				if err := decode(held, &existing); err != nil {
					return err
				}
				if existing.Active() {
					return domainerrors.WithDetails(domainerrors.ErrActiveCaseExists, map[string]any{
						"case_id": existing.CaseID,
					})
				}
			}
		}
		data, err := encode(c, caseFields(c))
		if err != nil {
			return err
		}
		if err := tx.Create(caseRef, data); err != nil {
			return err
		}
		return tx.Set(lockRef, map[string]any{"case_id": c.CaseID})
	})
}

func (r *Repository) GetCase(ctx context.Context, caseID string) (entities.CandidacyCase, error) {
	snap, err := r.doc(casesCollection, caseID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.CandidacyCase{}, domainerrors.ErrCaseNotFound
		}
		return entities.CandidacyCase{}, err
	}
	var c entities.CandidacyCase
	return c, decode(snap, &c)
}

func (r *Repository) ListCases(ctx context.Context, filter ports.CaseFilter) ([]entities.CandidacyCase, error) {
	query := r.client.Collection(casesCollection).Query
	if strings.TrimSpace(filter.ApplicantID) != "" {
		query = query.Where("applicant_id", "==", strings.TrimSpace(filter.ApplicantID))
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.CandidacyCase](snaps)
	if err != nil {
		return nil, err
	}
	sortCases(items)
	return items, nil
}

// ApplyCaseMutation reads the case, slots and identity first and then
// writes, as Firestore transactions require.
func (r *Repository) ApplyCaseMutation(ctx context.Context, mutation ports.CaseMutation) (entities.CandidacyCase, error) {
	caseID := strings.TrimSpace(mutation.Case.CaseID)
	caseRef := r.doc(casesCollection, caseID)
	now := mutation.Now.UTC()
	var stored entities.CandidacyCase

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(caseRef)
		if err != nil {
			if isNotFound(err) {
				return domainerrors.ErrCaseNotFound
			}
			return err
		}
		var current entities.CandidacyCase
		if err := decode(snap, &current); err != nil {
			return err
		}
		if current.Version != mutation.ExpectedVersion {
			return domainerrors.WithDetails(domainerrors.ErrConcurrentModification, map[string]any{
				"case_id":          caseID,
				"expected_version": mutation.ExpectedVersion,
				"stored_version":   current.Version,
			})
		}

		var reserve, release *entities.ScreeningSlot
		if mutation.ReserveSlot != "" {
			slot, err := txSlot(tx, r.doc(slotsCollection, mutation.ReserveSlot))
			if err != nil {
				return err
			}
			if !slot.Available {
				return domainerrors.WithDetails(domainerrors.ErrSlotTaken, map[string]any{
					"slot_key": slot.SlotKey,
				})
			}
			reserve = &slot
		}
		if mutation.ReleaseSlot != "" {
			slot, err := txSlot(tx, r.doc(slotsCollection, mutation.ReleaseSlot))
			if err != nil && domainerrors.KindOf(err) != domainerrors.KindNotFound {
				return err
			}
			if err == nil && slot.ReservedBy == caseID {
				release = &slot
			}
		}
		var identity *entities.Identity
		if mutation.RoleChange != nil {
			snap, err := tx.Get(r.doc(identitiesCollection, mutation.RoleChange.UserID))
			if err != nil {
				if isNotFound(err) {
					return domainerrors.ErrIdentityNotFound
				}
				return err
			}
			var found entities.Identity
			if err := decode(snap, &found); err != nil {
				return err
			}
			identity = &found
		}

		if reserve != nil {
			reserve.Available = false
			reserve.ReservedBy = caseID
			reserve.UpdatedAt = now
			if err := txSetSlot(tx, r.doc(slotsCollection, reserve.SlotKey), *reserve); err != nil {
				return err
			}
		}
		if release != nil {
			release.Available = true
			release.ReservedBy = ""
			release.UpdatedAt = now
			if err := txSetSlot(tx, r.doc(slotsCollection, release.SlotKey), *release); err != nil {
				return err
			}
		}
		if identity != nil {
			identity.Role = mutation.RoleChange.Role
			identity.UpdatedAt = now
			data, err := encode(*identity, map[string]any{"role": string(identity.Role)})
			if err != nil {
				return err
			}
			if err := tx.Set(r.doc(identitiesCollection, identity.UserID), data); err != nil {
				return err
			}
		}

		next := mutation.Case.Clone()
		next.Version = current.Version + 1
		data, err := encode(next, caseFields(next))
		if err != nil {
			return err
		}
		if err := tx.Set(caseRef, data); err != nil {
			return err
		}
		stored = next
		return nil
	})
	if err != nil {
		return entities.CandidacyCase{}, err
	}
	return stored, nil
}

func txSlot(tx *firestore.Transaction, ref *firestore.DocumentRef) (entities.ScreeningSlot, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return entities.ScreeningSlot{}, domainerrors.ErrSlotNotFound
		}
		return entities.ScreeningSlot{}, err
	}
	var slot entities.ScreeningSlot
	return slot, decode(snap, &slot)
}

func txSetSlot(tx *firestore.Transaction, ref *firestore.DocumentRef, slot entities.ScreeningSlot) error {
	data, err := encode(slot, map[string]any{"available": slot.Available})
	if err != nil {
		return err
	}
	return tx.Set(ref, data)
}

func (r *Repository) CreateSlot(ctx context.Context, slot entities.ScreeningSlot) error {
	data, err := encode(slot, map[string]any{"available": slot.Available})
	if err != nil {
		return err
	}
	if _, err := r.doc(slotsCollection, slot.SlotKey).Create(ctx, data); err != nil {
		if isAlreadyExists(err) {
			return domainerrors.ErrSlotExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetSlot(ctx context.Context, slotKey string) (entities.ScreeningSlot, error) {
	snap, err := r.doc(slotsCollection, slotKey).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.ScreeningSlot{}, domainerrors.ErrSlotNotFound
		}
		return entities.ScreeningSlot{}, err
	}
	var slot entities.ScreeningSlot
	return slot, decode(snap, &slot)
}

func (r *Repository) ListSlots(ctx context.Context) ([]entities.ScreeningSlot, error) {
	snaps, err := r.client.Collection(slotsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.ScreeningSlot](snaps)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SlotKey < items[j].SlotKey })
	return items, nil
}

func (r *Repository) DeleteSlot(ctx context.Context, slotKey string) error {
	ref := r.doc(slotsCollection, slotKey)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		slot, err := txSlot(tx, ref)
		if err != nil {
			return err
		}
		if !slot.Available {
			return domainerrors.ErrSlotReserved
		}
		return tx.Delete(ref)
	})
}

func rosterFields(entry entities.RosterEntry) map[string]any {
	return map[string]any{
		"candidate_id": entry.CandidateID,
		"position":     entry.Position,
		"institute":    entry.Institute,
	}
}

func (r *Repository) CreateRosterEntry(ctx context.Context, entry entities.RosterEntry) error {
	entryRef := r.doc(rosterCollection, entry.EntryID)
	candidateRef := r.doc(rosterCandidatesCollection, entry.CandidateID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Get(candidateRef)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil {
			entryID, _ := existing.Data()["entry_id"].(string)
			return domainerrors.WithDetails(domainerrors.ErrRosterEntryExists, map[string]any{
				"entry_id": entryID,
			})
		}
		data, err := encode(entry, rosterFields(entry))
		if err != nil {
			return err
		}
		if err := tx.Create(entryRef, data); err != nil {
			return err
		}
		return tx.Create(candidateRef, map[string]any{"entry_id": entry.EntryID})
	})
}

func (r *Repository) GetRosterEntry(ctx context.Context, entryID string) (entities.RosterEntry, error) {
	snap, err := r.doc(rosterCollection, entryID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.RosterEntry{}, domainerrors.ErrRosterEntryNotFound
		}
		return entities.RosterEntry{}, err
	}
	var entry entities.RosterEntry
	return entry, decode(snap, &entry)
}

func (r *Repository) UpdateRosterEntry(ctx context.Context, entry entities.RosterEntry) error {
	ref := r.doc(rosterCollection, entry.EntryID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domainerrors.ErrRosterEntryNotFound
			}
			return err
		}
		var current entities.RosterEntry
		if err := decode(snap, &current); err != nil {
			return err
		}
		entry.CandidateID = current.CandidateID
		entry.CaseID = current.CaseID
		entry.CreatedAt = current.CreatedAt
		data, err := encode(entry, rosterFields(entry))
		if err != nil {
			return err
		}
		return tx.Set(ref, data)
	})
}

func (r *Repository) DeleteRosterEntry(ctx context.Context, entryID string) error {
	ref := r.doc(rosterCollection, entryID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domainerrors.ErrRosterEntryNotFound
			}
			return err
		}
		var entry entities.RosterEntry
		if err := decode(snap, &entry); err != nil {
			return err
		}
		if err := tx.Delete(ref); err != nil {
			return err
		}
		return tx.Delete(r.doc(rosterCandidatesCollection, entry.CandidateID))
	})
}

func (r *Repository) ListRoster(ctx context.Context) ([]entities.RosterEntry, error) {
	snaps, err := r.client.Collection(rosterCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.RosterEntry](snaps)
	if err != nil {
		return nil, err
	}
	sortRoster(items)
	return items, nil
}

func materialFields(material entities.CampaignMaterial) map[string]any {
	return map[string]any{
		"entry_id": material.EntryID,
		"status":   string(material.Status),
	}
}

func (r *Repository) CreateMaterial(ctx context.Context, material entities.CampaignMaterial) error {
	data, err := encode(material, materialFields(material))
	if err != nil {
		return err
	}
	_, err = r.doc(materialsCollection, material.MaterialID).Create(ctx, data)
	return err
}

func (r *Repository) GetMaterial(ctx context.Context, materialID string) (entities.CampaignMaterial, error) {
	snap, err := r.doc(materialsCollection, materialID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.CampaignMaterial{}, domainerrors.ErrMaterialNotFound
		}
		return entities.CampaignMaterial{}, err
	}
	var material entities.CampaignMaterial
	return material, decode(snap, &material)
}

func (r *Repository) DecideMaterial(ctx context.Context, material entities.CampaignMaterial) error {
	ref := r.doc(materialsCollection, material.MaterialID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domainerrors.ErrMaterialNotFound
			}
			return err
		}
		var current entities.CampaignMaterial
		if err := decode(snap, &current); err != nil {
			return err
		}
		if current.Status != entities.MaterialStatusPending {
			return domainerrors.ErrMaterialDecided
		}
		data, err := encode(material, materialFields(material))
		if err != nil {
			return err
		}
		return tx.Set(ref, data)
	})
}

func (r *Repository) ListMaterials(ctx context.Context, filter ports.MaterialFilter) ([]entities.CampaignMaterial, error) {
	query := r.client.Collection(materialsCollection).Query
	if strings.TrimSpace(filter.EntryID) != "" {
		query = query.Where("entry_id", "==", strings.TrimSpace(filter.EntryID))
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.CampaignMaterial](snaps)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].MaterialID < items[j].MaterialID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// CreateBallot uses the voter id as document id; Create fails with
// AlreadyExists on any second write.
func (r *Repository) CreateBallot(ctx context.Context, ballot entities.BallotRecord) error {
	data, err := encode(ballot, map[string]any{"voter_institute": ballot.VoterInstitute})
	if err != nil {
		return err
	}
	if _, err := r.doc(ballotsCollection, ballot.VoterID).Create(ctx, data); err != nil {
		if isAlreadyExists(err) {
			return domainerrors.WithDetails(domainerrors.ErrBallotAlreadyCast, map[string]any{
				"voter_id": ballot.VoterID,
			})
		}
		return err
	}
	return nil
}

func (r *Repository) GetBallot(ctx context.Context, voterID string) (entities.BallotRecord, error) {
	snap, err := r.doc(ballotsCollection, voterID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.BallotRecord{}, domainerrors.ErrBallotNotFound
		}
		return entities.BallotRecord{}, err
	}
	var ballot entities.BallotRecord
	return ballot, decode(snap, &ballot)
}

func (r *Repository) ListBallots(ctx context.Context) ([]entities.BallotRecord, error) {
	snaps, err := r.client.Collection(ballotsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.BallotRecord](snaps)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].VoterID < items[j].VoterID })
	return items, nil
}

func (r *Repository) GetPhaseWindow(ctx context.Context, phase entities.Phase) (entities.PhaseWindow, error) {
	snap, err := r.doc(phasesCollection, string(phase)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.PhaseWindow{}, domainerrors.ErrWindowNotFound
		}
		return entities.PhaseWindow{}, err
	}
	var window entities.PhaseWindow
	return window, decode(snap, &window)
}

func (r *Repository) SavePhaseWindow(ctx context.Context, window entities.PhaseWindow) error {
	data, err := encode(window, nil)
	if err != nil {
		return err
	}
	_, err = r.doc(phasesCollection, string(window.Phase)).Set(ctx, data)
	return err
}

func (r *Repository) ListPhaseWindows(ctx context.Context) ([]entities.PhaseWindow, error) {
	snaps, err := r.client.Collection(phasesCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.PhaseWindow](snaps)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Phase < items[j].Phase })
	return items, nil
}

func (r *Repository) AppendActivity(ctx context.Context, entry entities.ActivityEntry) error {
	data, err := encode(entry, map[string]any{"occurred_at": entry.OccurredAt.UTC()})
	if err != nil {
		return err
	}
	_, err = r.doc(activityCollection, entry.EntryID).Create(ctx, data)
	return err
}

func (r *Repository) ListActivity(ctx context.Context, limit int) ([]entities.ActivityEntry, error) {
	query := r.client.Collection(activityCollection).OrderBy("occurred_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.ActivityEntry](snaps)
}

// AcquireArchiveLock is re-entrant for the run that holds the lock.
func (r *Repository) AcquireArchiveLock(ctx context.Context, runID string, now time.Time) error {
	ref := r.doc(locksCollection, archiveLockDoc)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil {
			holder, _ := snap.Data()["run_id"].(string)
			if holder == runID {
				return nil
			}
			return domainerrors.WithDetails(domainerrors.ErrArchiveInProgress, map[string]any{
				"run_id": holder,
			})
		}
		return tx.Create(ref, map[string]any{"run_id": runID, "acquired_at": now.UTC()})
	})
}

func (r *Repository) ReleaseArchiveLock(ctx context.Context, runID string) error {
	ref := r.doc(locksCollection, archiveLockDoc)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if holder, _ := snap.Data()["run_id"].(string); holder != runID {
			return nil
		}
		return tx.Delete(ref)
	})
}

func (r *Repository) SaveArchiveRun(ctx context.Context, run entities.ArchiveRun) error {
	data, err := encode(run, map[string]any{"status": string(run.Status)})
	if err != nil {
		return err
	}
	_, err = r.doc(archiveRunsCollection, run.RunID).Set(ctx, data)
	return err
}

func (r *Repository) GetArchiveRun(ctx context.Context, runID string) (entities.ArchiveRun, error) {
	snap, err := r.doc(archiveRunsCollection, runID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.ArchiveRun{}, domainerrors.ErrArchiveRunNotFound
		}
		return entities.ArchiveRun{}, err
	}
	var run entities.ArchiveRun
	return run, decode(snap, &run)
}

// LoadLiveState reads every live collection concurrently at one read time so
// the collections are mutually consistent.
func (r *Repository) LoadLiveState(ctx context.Context) (entities.LiveState, error) {
	readTime := time.Now().UTC().Truncate(time.Microsecond)
	var state entities.LiveState
	group, groupCtx := errgroup.WithContext(ctx)
	read := func(collection string) ([]*firestore.DocumentSnapshot, error) {
		return r.client.Collection(collection).
			WithReadOptions(firestore.ReadTime(readTime)).
			Documents(groupCtx).
			GetAll()
	}
	load := func(collection string, assign func([]*firestore.DocumentSnapshot) error) {
		group.Go(func() error {
			snaps, err := read(collection)
			if err != nil {
				return fmt.Errorf("read %s: %w", collection, err)
			}
			return assign(snaps)
		})
	}

	load(identitiesCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Identities, err = decodeAll[entities.Identity](snaps)
		return err
	})
	load(casesCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Cases, err = decodeAll[entities.CandidacyCase](snaps)
		return err
	})
	load(slotsCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Slots, err = decodeAll[entities.ScreeningSlot](snaps)
		return err
	})
	load(rosterCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Roster, err = decodeAll[entities.RosterEntry](snaps)
		return err
	})
	load(materialsCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Materials, err = decodeAll[entities.CampaignMaterial](snaps)
		return err
	})
	load(ballotsCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Ballots, err = decodeAll[entities.BallotRecord](snaps)
		return err
	})
	load(phasesCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Phases, err = decodeAll[entities.PhaseWindow](snaps)
		return err
	})
	load(activityCollection, func(snaps []*firestore.DocumentSnapshot) (err error) {
		state.Activity, err = decodeAll[entities.ActivityEntry](snaps)
		return err
	})
	if err := group.Wait(); err != nil {
		return entities.LiveState{}, err
	}

	sort.Slice(state.Identities, func(i, j int) bool { return state.Identities[i].UserID < state.Identities[j].UserID })
	sortCases(state.Cases)
	sort.Slice(state.Slots, func(i, j int) bool { return state.Slots[i].SlotKey < state.Slots[j].SlotKey })
	sortRoster(state.Roster)
	sort.Slice(state.Materials, func(i, j int) bool { return state.Materials[i].MaterialID < state.Materials[j].MaterialID })
	sort.Slice(state.Ballots, func(i, j int) bool { return state.Ballots[i].VoterID < state.Ballots[j].VoterID })
	sort.Slice(state.Phases, func(i, j int) bool { return state.Phases[i].Phase < state.Phases[j].Phase })
	sort.SliceStable(state.Activity, func(i, j int) bool { return state.Activity[i].OccurredAt.Before(state.Activity[j].OccurredAt) })
	return state, nil
}

// WriteArchive creates the archive header and writes each raw live row as
// its own record document, which keeps every document under the size cap.
// The header is written last, so a readable archive is always complete.
func (r *Repository) WriteArchive(ctx context.Context, snapshot entities.ArchiveSnapshot) error {
	ref := r.doc(archivesCollection, archiveDocID(snapshot.Key))
	existing, err := ref.Get(ctx)
	switch {
	case err == nil:
		if runID, _ := existing.Data()["run_id"].(string); runID == snapshot.RunID {
			return nil
		}
		return domainerrors.ErrArchiveExists
	case !isNotFound(err):
		return err
	}

	records, err := archiveRecords(snapshot.Raw)
	if err != nil {
		return err
	}
	writer := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	for id, record := range records {
		data, err := encode(record, map[string]any{"kind": record.Kind})
		if err != nil {
			writer.End()
			return err
		}
		job, err := writer.Set(ref.Collection(archiveRecordsCollection).Doc(id), data)
		if err != nil {
			writer.End()
			return err
		}
		jobs = append(jobs, job)
	}
	writer.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write archive record: %w", err)
		}
	}

	header := snapshot
	header.Raw = entities.LiveState{}
	data, err := encode(header, map[string]any{
		"year":      snapshot.Key.Year,
		"timestamp": snapshot.Key.Timestamp,
		"run_id":    snapshot.RunID,
	})
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, data); err != nil {
		if isAlreadyExists(err) {
			return domainerrors.ErrArchiveExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetArchive(ctx context.Context, key entities.ArchiveKey) (entities.ArchiveSnapshot, error) {
	ref := r.doc(archivesCollection, archiveDocID(key))
	snap, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.ArchiveSnapshot{}, domainerrors.ErrArchiveNotFound
		}
		return entities.ArchiveSnapshot{}, err
	}
	var snapshot entities.ArchiveSnapshot
	if err := decode(snap, &snapshot); err != nil {
		return entities.ArchiveSnapshot{}, err
	}
	recordSnaps, err := ref.Collection(archiveRecordsCollection).Documents(ctx).GetAll()
	if err != nil {
		return entities.ArchiveSnapshot{}, err
	}
	records, err := decodeAll[archiveRecord](recordSnaps)
	if err != nil {
		return entities.ArchiveSnapshot{}, err
	}
	if snapshot.Raw, err = liveStateFromRecords(records); err != nil {
		return entities.ArchiveSnapshot{}, err
	}
	return snapshot, nil
}

func (r *Repository) ListArchives(ctx context.Context) ([]entities.ArchiveKey, error) {
	snaps, err := r.client.Collection(archivesCollection).Select("year", "timestamp").Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	keys := make([]entities.ArchiveKey, 0, len(snaps))
	for _, snap := range snaps {
		year, _ := snap.Data()["year"].(int64)
		timestamp, _ := snap.Data()["timestamp"].(string)
		keys = append(keys, entities.ArchiveKey{Year: int(year), Timestamp: timestamp})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year > keys[j].Year
		}
		return keys[i].Timestamp > keys[j].Timestamp
	})
	return keys, nil
}

func (r *Repository) DemoteCandidates(ctx context.Context, now time.Time) (int, error) {
	snaps, err := r.client.Collection(identitiesCollection).
		Where("role", "==", string(entities.RoleCandidate)).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, err
	}
	writer := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		var identity entities.Identity
		if err := decode(snap, &identity); err != nil {
			writer.End()
			return 0, err
		}
		identity.Role = entities.RoleVoter
		identity.UpdatedAt = now.UTC()
		data, err := encode(identity, map[string]any{"role": string(identity.Role)})
		if err != nil {
			writer.End()
			return 0, err
		}
		job, err := writer.Set(snap.Ref, data)
		if err != nil {
			writer.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	writer.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, err
		}
	}
	return len(jobs), nil
}

// ClearLiveState deletes every live document. A partial failure is safe to
// retry: the next run deletes whatever remains.
func (r *Repository) ClearLiveState(ctx context.Context) error {
	writer := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0)
	for _, collection := range liveCollections {
		refs, err := r.client.Collection(collection).DocumentRefs(ctx).GetAll()
		if err != nil {
			writer.End()
			return fmt.Errorf("list %s: %w", collection, err)
		}
		for _, ref := range refs {
			job, err := writer.Delete(ref)
			if err != nil {
				writer.End()
				return err
			}
			jobs = append(jobs, job)
		}
	}
	writer.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("delete live document: %w", err)
		}
	}
	r.logger.Info("election live state cleared",
		"event", "election_live_state_cleared",
		"module", "election-administration/election-service",
		"layer", "adapter",
		"deleted_count", len(jobs),
	)
	return nil
}

func (r *Repository) EnqueueNotification(ctx context.Context, notification entities.Notification) error {
	if notification.Status == "" {
		notification.Status = entities.NotificationStatusPending
	}
	data, err := encode(notification, map[string]any{
		"status":     string(notification.Status),
		"created_at": notification.CreatedAt.UTC(),
	})
	if err != nil {
		return err
	}
	if _, err := r.doc(notificationsCollection, notification.NotificationID).Create(ctx, data); err != nil && !isAlreadyExists(err) {
		return err
	}
	return nil
}

func (r *Repository) ListPendingNotifications(ctx context.Context, limit int) ([]entities.Notification, error) {
	snaps, err := r.client.Collection(notificationsCollection).
		Where("status", "==", string(entities.NotificationStatusPending)).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[entities.Notification](snaps)
	if err != nil {
		return nil, err
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

func (r *Repository) updateNotification(ctx context.Context, notificationID string, apply func(*entities.Notification) bool) error {
	ref := r.doc(notificationsCollection, notificationID)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		var notification entities.Notification
		if err := decode(snap, &notification); err != nil {
			return err
		}
		if !apply(&notification) {
			return nil
		}
		data, err := encode(notification, map[string]any{
			"status":     string(notification.Status),
			"created_at": notification.CreatedAt.UTC(),
		})
		if err != nil {
			return err
		}
		return tx.Set(ref, data)
	})
}

func (r *Repository) MarkNotificationDispatched(ctx context.Context, notificationID string) error {
	return r.updateNotification(ctx, notificationID, func(n *entities.Notification) bool {
		if n.Status != entities.NotificationStatusPending {
			return false
		}
		n.Status = entities.NotificationStatusDispatched
		return true
	})
}

func (r *Repository) GetNotification(ctx context.Context, notificationID string) (entities.Notification, error) {
	snap, err := r.doc(notificationsCollection, notificationID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return entities.Notification{}, domainerrors.ErrNotificationNotFound
		}
		return entities.Notification{}, err
	}
	var notification entities.Notification
	return notification, decode(snap, &notification)
}

func (r *Repository) MarkNotificationSent(ctx context.Context, notificationID string, at time.Time) error {
	return r.updateNotification(ctx, notificationID, func(n *entities.Notification) bool {
		sentAt := at.UTC()
		n.Status = entities.NotificationStatusSent
		n.SentAt = &sentAt
		n.Attempts++
		return true
	})
}

func (r *Repository) MarkNotificationFailed(ctx context.Context, notificationID string, reason string) error {
	return r.updateNotification(ctx, notificationID, func(n *entities.Notification) bool {
		n.Status = entities.NotificationStatusFailed
		n.LastError = reason
		n.Attempts++
		return true
	})
}

func archiveRecords(state entities.LiveState) (map[string]archiveRecord, error) {
	records := make(map[string]archiveRecord)
	add := func(kind string, id string, value any) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		records[kind+"_"+strings.ReplaceAll(id, "/", "_")] = archiveRecord{Kind: kind, Payload: raw}
		return nil
	}
	for _, item := range state.Identities {
		if err := add("identity", item.UserID, item); err != nil {
			return nil, err
		}
	}
	for _, item := range state.Cases {
		if err := add("case", item.CaseID, item); err != nil {
			return nil, err
		}
	}
	for _, item := range state.Slots {
		if err := add("slot", item.SlotKey, item); err != nil {
			return nil, err
		}
	}
	for _, item := range state.Roster {
		if err := add("roster", item.EntryID, item); err != nil {
			return nil, err
		}
	}
	for _, item := range state.Materials {
		if err := add("material", item.MaterialID, item); err != nil {
			return nil, err
		}
	}
	for _, item := range state.Ballots {
		if err := add("ballot", item.VoterID, item); err != nil {
			return nil, err
		}
	}
	for _, item := range state.Phases {
		if err := add("phase", string(item.Phase), item); err != nil {
			return nil, err
		}
	}
	for _, item := range state.Activity {
		if err := add("activity", item.EntryID, item); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func liveStateFromRecords(records []archiveRecord) (entities.LiveState, error) {
	var state entities.LiveState
	for _, record := range records {
		var err error
		switch record.Kind {
		case "identity":
			err = appendRecord(record.Payload, &state.Identities)
		case "case":
			err = appendRecord(record.Payload, &state.Cases)
		case "slot":
			err = appendRecord(record.Payload, &state.Slots)
		case "roster":
			err = appendRecord(record.Payload, &state.Roster)
		case "material":
			err = appendRecord(record.Payload, &state.Materials)
		case "ballot":
			err = appendRecord(record.Payload, &state.Ballots)
		case "phase":
			err = appendRecord(record.Payload, &state.Phases)
		case "activity":
			err = appendRecord(record.Payload, &state.Activity)
		default:
			err = fmt.Errorf("%w: kind %q", errMalformedRecord, record.Kind)
		}
		if err != nil {
			return entities.LiveState{}, err
		}
	}
	sortCases(state.Cases)
	sortRoster(state.Roster)
	sort.Slice(state.Ballots, func(i, j int) bool { return state.Ballots[i].VoterID < state.Ballots[j].VoterID })
	return state, nil
}

func appendRecord[T any](raw json.RawMessage, into *[]T) error {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return err
	}
	*into = append(*into, item)
	return nil
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

var _ ports.Store = (*Repository)(nil)
