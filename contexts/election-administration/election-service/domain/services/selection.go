package services

import (
	"sort"
	"strings"

	"campusvote/contexts/election-administration/election-service/domain/entities"
	domainerrors "campusvote/contexts/election-administration/election-service/domain/errors"
)

// Selection is a voter's choice for one ballot section.
type Selection struct {
	Key          entities.PositionKey
	CandidateIDs []string
}

// NormalizeSelections validates a ballot against the definition and roster
// and returns the selections keyed by position, with duplicate picks
// collapsed in first-seen order. Empty sections are dropped.
func NormalizeSelections(
	definition entities.BallotDefinition,
	voter entities.Identity,
	roster []entities.RosterEntry,
	selections []Selection,
) (map[entities.PositionKey][]string, error) {
	eligible := make(map[entities.PositionKey]map[string]struct{})
	for _, entry := range roster {
		for _, key := range definition.AllKeys() {
			if !entry.EligibleFor(key) {
				continue
			}
			if eligible[key] == nil {
				eligible[key] = make(map[string]struct{})
			}
			eligible[key][entry.CandidateID] = struct{}{}
		}
	}

	out := make(map[entities.PositionKey][]string, len(selections))
	for _, selection := range selections {
		key := selection.Key
		position, ok := definition.Lookup(key)
		if !ok {
			return nil, domainerrors.WithDetails(domainerrors.ErrUnknownPosition, map[string]any{
				"position": key.StorageKey(),
			})
		}
		if key.Scoped() && key.Institute() != voter.Institute {
			return nil, domainerrors.WithDetails(domainerrors.ErrInstituteMismatch, map[string]any{
				"position":        key.StorageKey(),
				"voter_institute": voter.Institute,
			})
		}
		picks := append(out[key], selection.CandidateIDs...)
		picks = dedupe(picks)
		if len(picks) > position.MaxSelections {
			return nil, domainerrors.WithDetails(domainerrors.ErrCardinalityExceeded, map[string]any{
				"position":       key.StorageKey(),
				"selected":       len(picks),
				"max_selections": position.MaxSelections,
			})
		}
		for _, candidateID := range picks {
			if _, ok := eligible[key][candidateID]; !ok {
				return nil, domainerrors.WithDetails(domainerrors.ErrIneligibleCandidate, map[string]any{
					"position":     key.StorageKey(),
					"candidate_id": candidateID,
				})
			}
		}
		if len(picks) > 0 {
			out[key] = picks
		}
	}
	return out, nil
}

// EligibleCandidates returns roster entries selectable under key, ordered by
// display name then candidate id.
func EligibleCandidates(roster []entities.RosterEntry, key entities.PositionKey) []entities.RosterEntry {
	items := make([]entities.RosterEntry, 0)
	for _, entry := range roster {
		if entry.EligibleFor(key) {
			items = append(items, entry)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].DisplayName == items[j].DisplayName {
			return items[i].CandidateID < items[j].CandidateID
		}
		return items[i].DisplayName < items[j].DisplayName
	})
	return items
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
