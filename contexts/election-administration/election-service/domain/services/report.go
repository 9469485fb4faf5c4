package services

import (
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

// BuildReport projects a live state into the human-readable archive report.
// Tallies use the same rules as live tabulation.
func BuildReport(
	key entities.ArchiveKey,
	definition entities.BallotDefinition,
	state entities.LiveState,
	now time.Time,
) entities.ArchiveReport {
	entries := make(map[string]entities.RosterEntry, len(state.Roster))
	for _, entry := range state.Roster {
		entries[entry.CandidateID] = entry
	}

	report := entities.ArchiveReport{
		Key:          key,
		GeneratedAt:  now,
		TotalBallots: len(state.Ballots),
		Turnout:      make(map[string]int),
		Results:      make([]entities.PositionResult, 0),
	}
	for _, ballot := range state.Ballots {
		report.Turnout[ballot.VoterInstitute]++
	}

	for _, positionKey := range definition.AllKeys() {
		position, ok := definition.Lookup(positionKey)
		if !ok {
			continue
		}
		tally := Tabulate(positionKey, position, state.Ballots, state.Roster)
		result := entities.PositionResult{
			Key:           positionKey,
			MaxSelections: position.MaxSelections,
			Candidates:    make([]entities.CandidateResult, 0, len(tally.Candidates)),
			Abstentions:   tally.Abstentions,
		}
		for _, candidate := range tally.Candidates {
			entry := entries[candidate.CandidateID]
			result.Candidates = append(result.Candidates, entities.CandidateResult{
				CandidateID: candidate.CandidateID,
				DisplayName: entry.DisplayName,
				Institute:   entry.Institute,
				Team:        entry.Team,
				Votes:       candidate.Votes,
			})
		}
		report.Results = append(report.Results, result)
	}

	for _, c := range state.Cases {
		report.Cases.Submitted++
		if c.ReviewedAt != nil {
			report.Cases.Reviewed++
		}
		switch c.Status {
		case entities.CaseStatusApproved:
			report.Cases.Approved++
		case entities.CaseStatusRejected:
			report.Cases.Rejected++
		}
		switch c.ScreeningOutcome {
		case entities.ScreeningOutcomePassed:
			report.Cases.Passed++
		case entities.ScreeningOutcomeFailed:
			report.Cases.Failed++
		}
	}
	return report
}
