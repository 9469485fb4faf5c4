package commands

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/domain/services"
	"campusvote/contexts/election-administration/election-service/ports"
)

// ArchiveTimestampLayout names snapshots within a year.
const ArchiveTimestampLayout = "20060102T150405Z"

type ArchiveCommand struct {
	Actor entities.Actor
	// Year defaults to the current year when zero.
	Year int
}

type ResumeArchiveCommand struct {
	Actor entities.Actor
	RunID string
}

// ArchiveUseCase snapshots the election and resets live state. Runs are
// serialized twice: a process-local try-lock and the store's archive lock,
// which stays held by a failed run until it is resumed.
type ArchiveUseCase struct {
	Archives   ports.ArchiveRepository
	Definition entities.BallotDefinition
	Effects    Effects
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Timeout    time.Duration
	Logger     *slog.Logger

	running sync.Mutex
}

func (uc *ArchiveUseCase) Archive(ctx context.Context, cmd ArchiveCommand) (entities.ArchiveRun, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.ArchiveRun{}, err
	}
	now := nowFrom(uc.Clock)
	year := cmd.Year
	if year == 0 {
		year = now.Year()
	}
	if year < 2000 || year > 9999 {
		return entities.ArchiveRun{}, domainerrors.WithDetails(domainerrors.ErrInvalidInput, map[string]any{
			"year": strconv.Itoa(year),
		})
	}
	if !uc.running.TryLock() {
		return entities.ArchiveRun{}, domainerrors.ErrArchiveInProgress
	}
	defer uc.running.Unlock()

	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	runID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.ArchiveRun{}, domainerrors.Unavailable(err)
	}
	if err := uc.Archives.AcquireArchiveLock(ctx, runID, now); err != nil {
		logger.Warn("archive lock unavailable",
			"event", "election_archive_lock_refused",
			"module", application.Module,
			"layer", "application",
			"run_id", runID,
			"error", err.Error(),
		)
		return entities.ArchiveRun{}, domainerrors.Unavailable(err)
	}
	run := entities.ArchiveRun{
		RunID:       runID,
		Key:         entities.ArchiveKey{Year: year, Timestamp: now.Format(ArchiveTimestampLayout)},
		RequestedBy: cmd.Actor.UserID,
		Status:      entities.ArchiveRunRunning,
		StartedAt:   now,
	}
	if err := uc.Archives.SaveArchiveRun(ctx, run); err != nil {
		uc.releaseLock(ctx, runID)
		return entities.ArchiveRun{}, domainerrors.Unavailable(err)
	}
	logger.Info("archive run started",
		"event", "election_archive_started",
		"module", application.Module,
		"layer", "application",
		"run_id", runID,
		"archive_key", run.Key.String(),
	)
	return uc.execute(ctx, run)
}

// ResumeArchive finishes a failed run. Completed steps are skipped and every
// remaining step is idempotent, so resuming twice is safe.
func (uc *ArchiveUseCase) ResumeArchive(ctx context.Context, cmd ResumeArchiveCommand) (entities.ArchiveRun, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := requireAdmin(cmd.Actor); err != nil {
		return entities.ArchiveRun{}, err
	}
	if !uc.running.TryLock() {
		return entities.ArchiveRun{}, domainerrors.ErrArchiveInProgress
	}
	defer uc.running.Unlock()

	ctx, cancel := application.Bound(ctx, uc.Timeout)
	defer cancel()

	run, err := uc.Archives.GetArchiveRun(ctx, strings.TrimSpace(cmd.RunID))
	if err != nil {
		return entities.ArchiveRun{}, domainerrors.Unavailable(err)
	}
	if run.Status != entities.ArchiveRunFailed {
		return entities.ArchiveRun{}, domainerrors.WithDetails(domainerrors.ErrArchiveNotResumable, map[string]any{
			"run_id": run.RunID,
			"status": string(run.Status),
		})
	}
	if err := uc.Archives.AcquireArchiveLock(ctx, run.RunID, nowFrom(uc.Clock)); err != nil {
		return entities.ArchiveRun{}, domainerrors.Unavailable(err)
	}
	run.Status = entities.ArchiveRunRunning
	run.FailedStep = ""
	run.FailureReason = ""
	if err := uc.Archives.SaveArchiveRun(ctx, run); err != nil {
		return entities.ArchiveRun{}, domainerrors.Unavailable(err)
	}
	logger.Info("archive run resumed",
		"event", "election_archive_resumed",
		"module", application.Module,
		"layer", "application",
		"run_id", run.RunID,
		"completed_steps", run.CompletedSteps(),
	)
	return uc.execute(ctx, run)
}

func (uc *ArchiveUseCase) execute(ctx context.Context, run entities.ArchiveRun) (entities.ArchiveRun, error) {
	logger := application.ResolveLogger(uc.Logger)

	if !run.Completed(entities.ArchiveStepSnapshotWritten) {
		state, err := uc.Archives.LoadLiveState(ctx)
		if err != nil {
			// Nothing has been applied yet: free the lock and let the caller retry.
			run.Status = entities.ArchiveRunFailed
			run.FailedStep = entities.ArchiveStepLiveStateLoaded
			run.FailureReason = err.Error()
			uc.saveRun(ctx, run)
			uc.releaseLock(ctx, run.RunID)
			logger.Error("archive live state load failed",
				"event", "election_archive_load_failed",
				"module", application.Module,
				"layer", "application",
				"run_id", run.RunID,
				"error", err.Error(),
			)
			return run, domainerrors.Unavailable(err)
		}
		run = uc.completeStep(ctx, run, entities.ArchiveStepLiveStateLoaded,
			"ballots="+strconv.Itoa(len(state.Ballots))+" cases="+strconv.Itoa(len(state.Cases)))

		now := nowFrom(uc.Clock)
		snapshot := entities.ArchiveSnapshot{
			Key:       run.Key,
			RunID:     run.RunID,
			CreatedAt: now,
			CreatedBy: run.RequestedBy,
			Report:    services.BuildReport(run.Key, uc.Definition, state, now),
			Raw:       state,
		}
		if err := uc.Archives.WriteArchive(ctx, snapshot); err != nil {
			return uc.fail(ctx, run, entities.ArchiveStepSnapshotWritten, err)
		}
		run = uc.completeStep(ctx, run, entities.ArchiveStepSnapshotWritten, run.Key.String())
	}

	if !run.Completed(entities.ArchiveStepCandidatesDemoted) {
		demoted, err := uc.Archives.DemoteCandidates(ctx, nowFrom(uc.Clock))
		if err != nil {
			return uc.fail(ctx, run, entities.ArchiveStepCandidatesDemoted, err)
		}
		run = uc.completeStep(ctx, run, entities.ArchiveStepCandidatesDemoted, "demoted="+strconv.Itoa(demoted))
	}

	if !run.Completed(entities.ArchiveStepLiveStateCleared) {
		if err := uc.Archives.ClearLiveState(ctx); err != nil {
			return uc.fail(ctx, run, entities.ArchiveStepLiveStateCleared, err)
		}
		run = uc.completeStep(ctx, run, entities.ArchiveStepLiveStateCleared, "")
	}

	finished := nowFrom(uc.Clock)
	run.Status = entities.ArchiveRunCompleted
	run.FinishedAt = &finished
	uc.saveRun(ctx, run)
	uc.releaseLock(ctx, run.RunID)
	uc.Effects.Record(ctx, run.RequestedBy, "archive_completed", "archive", run.Key.String(), map[string]string{
		"run_id": run.RunID,
	}, finished)
	logger.Info("archive run completed",
		"event", "election_archive_completed",
		"module", application.Module,
		"layer", "application",
		"run_id", run.RunID,
		"archive_key", run.Key.String(),
	)
	return run, nil
}

func (uc *ArchiveUseCase) completeStep(ctx context.Context, run entities.ArchiveRun, step entities.ArchiveStep, detail string) entities.ArchiveRun {
	if !run.Completed(step) {
		run.Steps = append(run.Steps, entities.ArchiveStepRecord{
			Step:        step,
			CompletedAt: nowFrom(uc.Clock),
			Detail:      detail,
		})
	}
	uc.saveRun(ctx, run)
	return run
}

// fail keeps the store lock held so no other run can start on top of a
// half-applied reset, and surfaces the journal to the operator.
func (uc *ArchiveUseCase) fail(ctx context.Context, run entities.ArchiveRun, step entities.ArchiveStep, cause error) (entities.ArchiveRun, error) {
	run.Status = entities.ArchiveRunFailed
	run.FailedStep = step
	run.FailureReason = cause.Error()
	uc.saveRun(ctx, run)
	application.ResolveLogger(uc.Logger).Error("archive run incomplete",
		"event", "election_archive_incomplete",
		"module", application.Module,
		"layer", "application",
		"run_id", run.RunID,
		"failed_step", string(step),
		"completed_steps", run.CompletedSteps(),
		"error", cause.Error(),
	)
	return run, domainerrors.WithDetails(domainerrors.Wrap(domainerrors.ErrArchiveIncomplete, cause), map[string]any{
		"run_id":          run.RunID,
		"archive_key":     run.Key.String(),
		"completed_steps": run.CompletedSteps(),
		"failed_step":     string(step),
	})
}

func (uc *ArchiveUseCase) saveRun(ctx context.Context, run entities.ArchiveRun) {
	if err := uc.Archives.SaveArchiveRun(ctx, run); err != nil {
		application.ResolveLogger(uc.Logger).Error("archive run journal write failed",
			"event", "election_archive_journal_failed",
			"module", application.Module,
			"layer", "application",
			"run_id", run.RunID,
			"status", string(run.Status),
			"error", err.Error(),
		)
	}
}

func (uc *ArchiveUseCase) releaseLock(ctx context.Context, runID string) {
	if err := uc.Archives.ReleaseArchiveLock(ctx, runID); err != nil {
		application.ResolveLogger(uc.Logger).Error("archive lock release failed",
			"event", "election_archive_unlock_failed",
			"module", application.Module,
			"layer", "application",
			"run_id", runID,
			"error", err.Error(),
		)
	}
}
