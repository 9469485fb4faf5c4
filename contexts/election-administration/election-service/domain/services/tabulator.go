package services

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

// Tabulate counts votes for one position across ballots. It never fails: a
// missing selection is an abstention, an undecodable or over-limit one counts
// as no vote, and picks for candidates not eligible under key are excluded.
// The result depends only on the set of ballots, never on their order.
func Tabulate(
	key entities.PositionKey,
	position entities.PositionDefinition,
	ballots []entities.BallotRecord,
	roster []entities.RosterEntry,
) entities.TallyResult {
	eligible := make(map[string]struct{})
	for _, entry := range roster {
		if entry.EligibleFor(key) {
			eligible[entry.CandidateID] = struct{}{}
		}
	}

	counts := make(map[string]int, len(eligible))
	for candidateID := range eligible {
		counts[candidateID] = 0
	}
	result := entities.TallyResult{
		Key:           key,
		MaxSelections: position.MaxSelections,
	}

	storageKey := key.StorageKey()
	for _, ballot := range ballots {
		if key.Scoped() && ballot.VoterInstitute != key.Institute() {
			if _, present := ballot.Selections[storageKey]; present {
				result.Excluded++
			}
			continue
		}
		result.BallotsCounted++
		raw, present := ballot.Selections[storageKey]
		if !present {
			result.Abstentions++
			continue
		}
		ids, ok := DecodeSelection(raw)
		if !ok || len(ids) > position.MaxSelections {
			result.Malformed++
			continue
		}
		if len(ids) == 0 {
			result.Abstentions++
			continue
		}
		for _, id := range ids {
			if _, ok := eligible[id]; !ok {
				result.Excluded++
				continue
			}
			counts[id]++
		}
	}

	result.Candidates = make([]entities.CandidateTally, 0, len(counts))
	for candidateID, votes := range counts {
		result.Candidates = append(result.Candidates, entities.CandidateTally{
			CandidateID: candidateID,
			Votes:       votes,
		})
	}
	sort.Slice(result.Candidates, func(i, j int) bool {
		if result.Candidates[i].Votes == result.Candidates[j].Votes {
			return result.Candidates[i].CandidateID < result.Candidates[j].CandidateID
		}
		return result.Candidates[i].Votes > result.Candidates[j].Votes
	})
	return result
}

// DecodeSelection accepts a JSON string or an array of strings and returns
// the distinct non-empty ids. Anything else reports ok=false.
func DecodeSelection(raw json.RawMessage) ([]string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, true
	}
	switch trimmed[0] {
	case '"':
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, false
		}
		return dedupe([]string{single}), true
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			var id string
			if err := json.Unmarshal(item, &id); err != nil {
				return nil, false
			}
			ids = append(ids, strings.TrimSpace(id))
		}
		return dedupe(ids), true
	default:
		return nil, false
	}
}

// EncodeSelection is the canonical persisted form of a selection.
func EncodeSelection(ids []string) json.RawMessage {
	raw, _ := json.Marshal(dedupe(ids))
	return raw
}
