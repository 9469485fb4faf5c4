package workers

import (
	"context"
	"log/slog"
	"time"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/ports"
)

// PhaseFlagRefresher rewrites the advisory cached-active flag of every
// phase window whose stored value disagrees with its interval. Nothing
// gates on the flag.
type PhaseFlagRefresher struct {
	Phases ports.PhaseRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

func (j PhaseFlagRefresher) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}

	windows, err := j.Phases.ListPhaseWindows(ctx)
	if err != nil {
		logger.Error("phase window list failed",
			"event", "election_phase_refresh_list_failed",
			"module", application.Module,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	refreshed := 0
	for _, window := range windows {
		open := window.IsOpen(now)
		if window.CachedActive == open {
			continue
		}
		window.CachedActive = open
		if err := j.Phases.SavePhaseWindow(ctx, window); err != nil {
			logger.Error("phase flag refresh failed",
				"event", "election_phase_refresh_failed",
				"module", application.Module,
				"layer", "worker",
				"phase", string(window.Phase),
				"error", err.Error(),
			)
			return err
		}
		refreshed++
	}
	if refreshed > 0 {
		logger.Info("phase flags refreshed",
			"event", "election_phase_refresh_completed",
			"module", application.Module,
			"layer", "worker",
			"refreshed_count", refreshed,
		)
	}
	return nil
}
