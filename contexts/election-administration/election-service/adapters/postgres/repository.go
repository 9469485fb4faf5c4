package postgresadapter

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	archiveLockName      = "election_archive"
	activeCaseConstraint = "election_cases_one_active"
)

// liveTables are cleared by the archive reset, children first.
var liveTables = []string{
	"election_ballots",
	"election_materials",
	"election_roster",
	"election_slots",
	"election_cases",
	"election_phase_windows",
	"election_activity",
}

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetIdentity(ctx context.Context, userID string) (entities.Identity, error) {
	var row identityModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Identity{}, domainerrors.ErrIdentityNotFound
		}
		return entities.Identity{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) UpsertIdentity(ctx context.Context, identity entities.Identity) error {
	row := identityModelFromEntity(identity)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) ListIdentitiesByRole(ctx context.Context, role entities.Role) ([]entities.Identity, error) {
	tx := r.db.WithContext(ctx).Model(&identityModel{})
	if role != "" {
		tx = tx.Where("role = ?", string(role))
	}
	var rows []identityModel
	if err := tx.Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Identity, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SetRole(ctx context.Context, userID string, role entities.Role, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&identityModel{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Updates(map[string]any{
			"role":       string(role),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrIdentityNotFound
	}
	return nil
}

func (r *Repository) CreateCase(ctx context.Context, c entities.CandidacyCase) error {
	row, err := caseModelFromEntity(c)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == activeCaseConstraint {
				return domainerrors.WithDetails(domainerrors.ErrActiveCaseExists, map[string]any{
					"applicant_id": c.ApplicantID,
				})
			}
			return domainerrors.ErrConcurrentModification
		}
		return err
	}
	return nil
}

func (r *Repository) GetCase(ctx context.Context, caseID string) (entities.CandidacyCase, error) {
	return getCaseTx(r.db.WithContext(ctx), caseID, false)
}

func (r *Repository) ListCases(ctx context.Context, filter ports.CaseFilter) ([]entities.CandidacyCase, error) {
	tx := r.db.WithContext(ctx).Model(&caseModel{})
	if strings.TrimSpace(filter.ApplicantID) != "" {
		tx = tx.Where("applicant_id = ?", strings.TrimSpace(filter.ApplicantID))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var rows []caseModel
	if err := tx.Order("created_at ASC, case_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return casesFromRows(rows)
}

// ApplyCaseMutation locks the case row, checks the version and applies the
// slot flips, the role change and the case write in one transaction.
func (r *Repository) ApplyCaseMutation(ctx context.Context, mutation ports.CaseMutation) (entities.CandidacyCase, error) {
	caseID := strings.TrimSpace(mutation.Case.CaseID)
	now := mutation.Now.UTC()
	var stored entities.CandidacyCase

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getCaseTx(tx, caseID, true)
		if err != nil {
			return err
		}
		if current.Version != mutation.ExpectedVersion {
			return domainerrors.WithDetails(domainerrors.ErrConcurrentModification, map[string]any{
				"case_id":          caseID,
				"expected_version": mutation.ExpectedVersion,
				"stored_version":   current.Version,
			})
		}

		if mutation.ReserveSlot != "" {
			result := tx.Model(&slotModel{}).
				Where("slot_key = ? AND available = ?", mutation.ReserveSlot, true).
				Updates(map[string]any{
					"available":   false,
					"reserved_by": caseID,
					"updated_at":  now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&slotModel{}).Where("slot_key = ?", mutation.ReserveSlot).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return domainerrors.ErrSlotNotFound
				}
				return domainerrors.WithDetails(domainerrors.ErrSlotTaken, map[string]any{
					"slot_key": mutation.ReserveSlot,
				})
			}
		}
		if mutation.ReleaseSlot != "" {
			if err := tx.Model(&slotModel{}).
				Where("slot_key = ? AND reserved_by = ?", mutation.ReleaseSlot, caseID).
				Updates(map[string]any{
					"available":   true,
					"reserved_by": "",
					"updated_at":  now,
				}).Error; err != nil {
				return err
			}
		}
		if mutation.RoleChange != nil {
			result := tx.Model(&identityModel{}).
				Where("user_id = ?", mutation.RoleChange.UserID).
				Updates(map[string]any{
					"role":       string(mutation.RoleChange.Role),
					"updated_at": now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrIdentityNotFound
			}
		}

		next := mutation.Case.Clone()
		next.Version = current.Version + 1
		row, err := caseModelFromEntity(next)
		if err != nil {
			return err
		}
		result := tx.Model(&caseModel{}).
			Where("case_id = ? AND version = ?", caseID, current.Version).
			Updates(map[string]any{
				"position":            row.Position,
				"team":                row.Team,
				"status":              row.Status,
				"screening_outcome":   row.ScreeningOutcome,
				"documents":           row.Documents,
				"appointment":         row.Appointment,
				"appointment_history": row.AppointmentHistory,
				"audit":               row.Audit,
				"updated_at":          row.UpdatedAt,
				"reviewed_at":         row.ReviewedAt,
				"reviewed_by":         row.ReviewedBy,
				"version":             row.Version,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrConcurrentModification
		}
		stored = next
		return nil
	})
	if err != nil {
		return entities.CandidacyCase{}, err
	}
	return stored, nil
}

func getCaseTx(tx *gorm.DB, caseID string, forUpdate bool) (entities.CandidacyCase, error) {
	query := tx
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row caseModel
	err := query.
		Where("case_id = ?", strings.TrimSpace(caseID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CandidacyCase{}, domainerrors.ErrCaseNotFound
		}
		return entities.CandidacyCase{}, err
	}
	return row.toEntity()
}

func (r *Repository) CreateSlot(ctx context.Context, slot entities.ScreeningSlot) error {
	row := slotModel{
		SlotKey:    slot.SlotKey,
		Venue:      slot.Venue,
		Available:  slot.Available,
		ReservedBy: slot.ReservedBy,
		UpdatedAt:  slot.UpdatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			return domainerrors.ErrSlotExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetSlot(ctx context.Context, slotKey string) (entities.ScreeningSlot, error) {
	var row slotModel
	err := r.db.WithContext(ctx).
		Where("slot_key = ?", strings.TrimSpace(slotKey)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ScreeningSlot{}, domainerrors.ErrSlotNotFound
		}
		return entities.ScreeningSlot{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListSlots(ctx context.Context) ([]entities.ScreeningSlot, error) {
	var rows []slotModel
	if err := r.db.WithContext(ctx).Order("slot_key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.ScreeningSlot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) DeleteSlot(ctx context.Context, slotKey string) error {
	key := strings.TrimSpace(slotKey)
	result := r.db.WithContext(ctx).
		Where("slot_key = ? AND available = ?", key, true).
		Delete(&slotModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetSlot(ctx, key); err != nil {
		return err
	}
	return domainerrors.ErrSlotReserved
}

func (r *Repository) CreateRosterEntry(ctx context.Context, entry entities.RosterEntry) error {
	row := rosterModelFromEntity(entry)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			return domainerrors.WithDetails(domainerrors.ErrRosterEntryExists, map[string]any{
				"candidate_id": entry.CandidateID,
			})
		}
		return err
	}
	return nil
}

func (r *Repository) GetRosterEntry(ctx context.Context, entryID string) (entities.RosterEntry, error) {
	var row rosterModel
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", strings.TrimSpace(entryID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RosterEntry{}, domainerrors.ErrRosterEntryNotFound
		}
		return entities.RosterEntry{}, err
	}
	return row.toEntity(), nil
}

// UpdateRosterEntry never rewrites the candidate, the case or the creation
// time.
func (r *Repository) UpdateRosterEntry(ctx context.Context, entry entities.RosterEntry) error {
	result := r.db.WithContext(ctx).
		Model(&rosterModel{}).
		Where("entry_id = ?", strings.TrimSpace(entry.EntryID)).
		Updates(map[string]any{
			"display_name": entry.DisplayName,
			"position":     entry.Position,
			"institute":    entry.Institute,
			"team":         entry.Team,
			"updated_at":   entry.UpdatedAt.UTC(),
			"edited_by":    entry.EditedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRosterEntryNotFound
	}
	return nil
}

func (r *Repository) DeleteRosterEntry(ctx context.Context, entryID string) error {
	result := r.db.WithContext(ctx).
		Where("entry_id = ?", strings.TrimSpace(entryID)).
		Delete(&rosterModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRosterEntryNotFound
	}
	return nil
}

func (r *Repository) ListRoster(ctx context.Context) ([]entities.RosterEntry, error) {
	return listRosterTx(r.db.WithContext(ctx))
}

func listRosterTx(tx *gorm.DB) ([]entities.RosterEntry, error) {
	var rows []rosterModel
	if err := tx.Order("position ASC, institute ASC, candidate_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.RosterEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateMaterial(ctx context.Context, material entities.CampaignMaterial) error {
	row := materialModelFromEntity(material)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) GetMaterial(ctx context.Context, materialID string) (entities.CampaignMaterial, error) {
	var row materialModel
	err := r.db.WithContext(ctx).
		Where("material_id = ?", strings.TrimSpace(materialID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CampaignMaterial{}, domainerrors.ErrMaterialNotFound
		}
		return entities.CampaignMaterial{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) DecideMaterial(ctx context.Context, material entities.CampaignMaterial) error {
	result := r.db.WithContext(ctx).
		Model(&materialModel{}).
		Where("material_id = ? AND status = ?", strings.TrimSpace(material.MaterialID), string(entities.MaterialStatusPending)).
		Updates(map[string]any{
			"status":      string(material.Status),
			"reviewed_by": material.ReviewedBy,
			"reviewed_at": utcPtr(material.ReviewedAt),
			"reason":      material.Reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetMaterial(ctx, material.MaterialID); err != nil {
		return err
	}
	return domainerrors.ErrMaterialDecided
}

func (r *Repository) ListMaterials(ctx context.Context, filter ports.MaterialFilter) ([]entities.CampaignMaterial, error) {
	tx := r.db.WithContext(ctx).Model(&materialModel{})
	if strings.TrimSpace(filter.EntryID) != "" {
		tx = tx.Where("entry_id = ?", strings.TrimSpace(filter.EntryID))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var rows []materialModel
	if err := tx.Order("created_at ASC, material_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.CampaignMaterial, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// CreateBallot relies on the voter_id primary key: the conflicting insert
// writes nothing and reports the existing ballot.
func (r *Repository) CreateBallot(ctx context.Context, ballot entities.BallotRecord) error {
	row, err := ballotModelFromEntity(ballot)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "voter_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.WithDetails(domainerrors.ErrBallotAlreadyCast, map[string]any{
			"voter_id": ballot.VoterID,
		})
	}
	return nil
}

func (r *Repository) GetBallot(ctx context.Context, voterID string) (entities.BallotRecord, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.BallotRecord{}, domainerrors.ErrBallotNotFound
		}
		return entities.BallotRecord{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListBallots(ctx context.Context) ([]entities.BallotRecord, error) {
	return listBallotsTx(r.db.WithContext(ctx))
}

func listBallotsTx(tx *gorm.DB) ([]entities.BallotRecord, error) {
	var rows []ballotModel
	if err := tx.Order("voter_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.BallotRecord, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository) GetPhaseWindow(ctx context.Context, phase entities.Phase) (entities.PhaseWindow, error) {
	var row phaseWindowModel
	err := r.db.WithContext(ctx).
		Where("phase = ?", string(phase)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PhaseWindow{}, domainerrors.ErrWindowNotFound
		}
		return entities.PhaseWindow{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) SavePhaseWindow(ctx context.Context, window entities.PhaseWindow) error {
	row := phaseWindowModel{
		Phase:        string(window.Phase),
		StartsAt:     window.StartsAt.UTC(),
		EndsAt:       window.EndsAt.UTC(),
		CachedActive: window.CachedActive,
		UpdatedAt:    window.UpdatedAt.UTC(),
		UpdatedBy:    window.UpdatedBy,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phase"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) ListPhaseWindows(ctx context.Context) ([]entities.PhaseWindow, error) {
	return listPhaseWindowsTx(r.db.WithContext(ctx))
}

func listPhaseWindowsTx(tx *gorm.DB) ([]entities.PhaseWindow, error) {
	var rows []phaseWindowModel
	if err := tx.Order("phase ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.PhaseWindow, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AppendActivity(ctx context.Context, entry entities.ActivityEntry) error {
	row := activityModel{
		EntryID:     entry.EntryID,
		ActorID:     entry.ActorID,
		Action:      entry.Action,
		SubjectType: entry.SubjectType,
		SubjectID:   entry.SubjectID,
		Detail:      jsonOrEmpty(entry.Detail),
		OccurredAt:  entry.OccurredAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) ListActivity(ctx context.Context, limit int) ([]entities.ActivityEntry, error) {
	tx := r.db.WithContext(ctx).Order("occurred_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return listActivityTx(tx)
}

func listActivityTx(tx *gorm.DB) ([]entities.ActivityEntry, error) {
	var rows []activityModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// AcquireArchiveLock takes the single lock row. Re-acquiring with the run
// that already holds it succeeds, which is what resume relies on.
func (r *Repository) AcquireArchiveLock(ctx context.Context, runID string, now time.Time) error {
	row := archiveLockModel{LockName: archiveLockName, RunID: runID, AcquiredAt: now.UTC()}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lock_name"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var holder archiveLockModel
	if err := r.db.WithContext(ctx).
		Where("lock_name = ?", archiveLockName).
		First(&holder).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrArchiveInProgress
		}
		return err
	}
	if holder.RunID == runID {
		return nil
	}
	return domainerrors.WithDetails(domainerrors.ErrArchiveInProgress, map[string]any{
		"run_id": holder.RunID,
	})
}

func (r *Repository) ReleaseArchiveLock(ctx context.Context, runID string) error {
	return r.db.WithContext(ctx).
		Where("lock_name = ? AND run_id = ?", archiveLockName, runID).
		Delete(&archiveLockModel{}).
		Error
}

func (r *Repository) SaveArchiveRun(ctx context.Context, run entities.ArchiveRun) error {
	row, err := archiveRunModelFromEntity(run)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) GetArchiveRun(ctx context.Context, runID string) (entities.ArchiveRun, error) {
	var row archiveRunModel
	err := r.db.WithContext(ctx).
		Where("run_id = ?", strings.TrimSpace(runID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ArchiveRun{}, domainerrors.ErrArchiveRunNotFound
		}
		return entities.ArchiveRun{}, err
	}
	return row.toEntity()
}

// LoadLiveState reads every live collection inside one repeatable-read
// transaction so the snapshot is consistent.
func (r *Repository) LoadLiveState(ctx context.Context) (entities.LiveState, error) {
	var state entities.LiveState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var identityRows []identityModel
		if err := tx.Order("user_id ASC").Find(&identityRows).Error; err != nil {
			return err
		}
		state.Identities = make([]entities.Identity, 0, len(identityRows))
		for _, row := range identityRows {
			state.Identities = append(state.Identities, row.toEntity())
		}

		var caseRows []caseModel
		if err := tx.Order("created_at ASC, case_id ASC").Find(&caseRows).Error; err != nil {
			return err
		}
		cases, err := casesFromRows(caseRows)
		if err != nil {
			return err
		}
		state.Cases = cases

		var slotRows []slotModel
		if err := tx.Order("slot_key ASC").Find(&slotRows).Error; err != nil {
			return err
		}
		state.Slots = make([]entities.ScreeningSlot, 0, len(slotRows))
		for _, row := range slotRows {
			state.Slots = append(state.Slots, row.toEntity())
		}

		if state.Roster, err = listRosterTx(tx); err != nil {
			return err
		}

		var materialRows []materialModel
		if err := tx.Order("material_id ASC").Find(&materialRows).Error; err != nil {
			return err
		}
		state.Materials = make([]entities.CampaignMaterial, 0, len(materialRows))
		for _, row := range materialRows {
			state.Materials = append(state.Materials, row.toEntity())
		}

		if state.Ballots, err = listBallotsTx(tx); err != nil {
			return err
		}
		if state.Phases, err = listPhaseWindowsTx(tx); err != nil {
			return err
		}
		state.Activity, err = listActivityTx(tx.Order("occurred_at ASC"))
		return err
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return entities.LiveState{}, err
	}
	return state, nil
}

func (r *Repository) WriteArchive(ctx context.Context, snapshot entities.ArchiveSnapshot) error {
	row, err := archiveModelFromEntity(snapshot)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year"}, {Name: "archive_timestamp"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var existing archiveModel
	if err := r.db.WithContext(ctx).
		Select("run_id").
		Where("year = ? AND archive_timestamp = ?", row.Year, row.ArchiveTimestamp).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RunID == snapshot.RunID {
		return nil
	}
	return domainerrors.ErrArchiveExists
}

func (r *Repository) GetArchive(ctx context.Context, key entities.ArchiveKey) (entities.ArchiveSnapshot, error) {
	var row archiveModel
	err := r.db.WithContext(ctx).
		Where("year = ? AND archive_timestamp = ?", key.Year, key.Timestamp).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ArchiveSnapshot{}, domainerrors.ErrArchiveNotFound
		}
		return entities.ArchiveSnapshot{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListArchives(ctx context.Context) ([]entities.ArchiveKey, error) {
	var rows []archiveModel
	if err := r.db.WithContext(ctx).
		Select("year", "archive_timestamp").
		Order("year DESC, archive_timestamp DESC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	keys := make([]entities.ArchiveKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, entities.ArchiveKey{Year: row.Year, Timestamp: row.ArchiveTimestamp})
	}
	return keys, nil
}

func (r *Repository) DemoteCandidates(ctx context.Context, now time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&identityModel{}).
		Where("role = ?", string(entities.RoleCandidate)).
		Updates(map[string]any{
			"role":       string(entities.RoleVoter),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) ClearLiveState(ctx context.Context) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range liveTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("election live state cleared",
		"event", "election_live_state_cleared",
		"module", "election-administration/election-service",
		"layer", "adapter",
		"table_count", len(liveTables),
	)
	return nil
}

func (r *Repository) EnqueueNotification(ctx context.Context, notification entities.Notification) error {
	status := notification.Status
	if status == "" {
		status = entities.NotificationStatusPending
	}
	row := notificationModel{
		NotificationID: notification.NotificationID,
		Recipient:      notification.Recipient,
		TemplateKind:   notification.TemplateKind,
		TemplateData:   jsonOrEmpty(notification.TemplateData),
		Status:         string(status),
		Attempts:       notification.Attempts,
		LastError:      notification.LastError,
		CreatedAt:      notification.CreatedAt.UTC(),
		SentAt:         utcPtr(notification.SentAt),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) ListPendingNotifications(ctx context.Context, limit int) ([]entities.Notification, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ?", string(entities.NotificationStatusPending)).
		Order("created_at ASC, notification_id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []notificationModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) MarkNotificationDispatched(ctx context.Context, notificationID string) error {
	return r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("notification_id = ? AND status = ?", strings.TrimSpace(notificationID), string(entities.NotificationStatusPending)).
		Update("status", string(entities.NotificationStatusDispatched)).
		Error
}

func (r *Repository) GetNotification(ctx context.Context, notificationID string) (entities.Notification, error) {
	var row notificationModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", strings.TrimSpace(notificationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Notification{}, domainerrors.ErrNotificationNotFound
		}
		return entities.Notification{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) MarkNotificationSent(ctx context.Context, notificationID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("notification_id = ?", strings.TrimSpace(notificationID)).
		Updates(map[string]any{
			"status":   string(entities.NotificationStatusSent),
			"sent_at":  at.UTC(),
			"attempts": gorm.Expr("attempts + 1"),
		}).
		Error
}

func (r *Repository) MarkNotificationFailed(ctx context.Context, notificationID string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("notification_id = ?", strings.TrimSpace(notificationID)).
		Updates(map[string]any{
			"status":     string(entities.NotificationStatusFailed),
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + 1"),
		}).
		Error
}

func casesFromRows(rows []caseModel) ([]entities.CandidacyCase, error) {
	items := make([]entities.CandidacyCase, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

var _ ports.Store = (*Repository)(nil)
