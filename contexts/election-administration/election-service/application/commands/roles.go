package commands

import (
	"context"
	"log/slog"
	"sort"

	application "campusvote/contexts/election-administration/election-service/application"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
	"campusvote/contexts/election-administration/election-service/ports"
)

type ReconcileResult struct {
	Promoted []string
	Demoted  []string
}

// RoleReconciliation repairs drift between case state and identity roles:
// an applicant with an approved, not failed case is a candidate and any other
// candidate is a voter. Admin roles are never touched. Running it twice is a
// no-op.
type RoleReconciliation struct {
	Cases      ports.CaseRepository
	Identities ports.IdentityDirectory
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (r RoleReconciliation) Run(ctx context.Context) (ReconcileResult, error) {
	logger := application.ResolveLogger(r.Logger)
	approved, err := r.Cases.ListCases(ctx, ports.CaseFilter{Status: entities.CaseStatusApproved})
	if err != nil {
		return ReconcileResult{}, domainerrors.Unavailable(err)
	}
	shouldBeCandidate := make(map[string]struct{}, len(approved))
	for _, c := range approved {
		if c.ScreeningOutcome != entities.ScreeningOutcomeFailed {
			shouldBeCandidate[c.ApplicantID] = struct{}{}
		}
	}

	now := nowFrom(r.Clock)
	result := ReconcileResult{Promoted: []string{}, Demoted: []string{}}

	applicants := make([]string, 0, len(shouldBeCandidate))
	for userID := range shouldBeCandidate {
		applicants = append(applicants, userID)
	}
	sort.Strings(applicants)
	for _, userID := range applicants {
		identity, err := r.Identities.GetIdentity(ctx, userID)
		if err != nil {
			if domainerrors.KindOf(err) == domainerrors.KindNotFound {
				logger.Warn("role reconciliation skipped unknown applicant",
					"event", "election_roles_applicant_missing",
					"module", application.Module,
					"layer", "application",
					"user_id", userID,
				)
				continue
			}
			return result, domainerrors.Unavailable(err)
		}
		if identity.Role != entities.RoleVoter {
			continue
		}
		if err := r.Identities.SetRole(ctx, userID, entities.RoleCandidate, now); err != nil {
			return result, domainerrors.Unavailable(err)
		}
		result.Promoted = append(result.Promoted, userID)
	}

	candidates, err := r.Identities.ListIdentitiesByRole(ctx, entities.RoleCandidate)
	if err != nil {
		return result, domainerrors.Unavailable(err)
	}
	for _, identity := range candidates {
		if _, ok := shouldBeCandidate[identity.UserID]; ok {
			continue
		}
		if err := r.Identities.SetRole(ctx, identity.UserID, entities.RoleVoter, now); err != nil {
			return result, domainerrors.Unavailable(err)
		}
		result.Demoted = append(result.Demoted, identity.UserID)
	}

	if len(result.Promoted) > 0 || len(result.Demoted) > 0 {
		logger.Info("candidate roles reconciled",
			"event", "election_roles_reconciled",
			"module", application.Module,
			"layer", "application",
			"promoted_count", len(result.Promoted),
			"demoted_count", len(result.Demoted),
		)
	}
	return result, nil
}
