package workers

import (
	"context"
	"log/slog"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/application/commands"
)

// RoleReconciler runs role reconciliation on the worker schedule.
type RoleReconciler struct {
	Reconciliation commands.RoleReconciliation
	Logger         *slog.Logger
}

func (j RoleReconciler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	result, err := j.Reconciliation.Run(ctx)
	if err != nil {
		logger.Error("role reconciliation sweep failed",
			"event", "election_role_reconciliation_failed",
			"module", application.Module,
			"layer", "worker",
			"promoted_count", len(result.Promoted),
			"demoted_count", len(result.Demoted),
			"error", err.Error(),
		)
		return err
	}
	return nil
}
