package entities

import (
	"encoding/json"
	"time"
)

// BallotRecord is one voter's immutable ballot as persisted. Selections are
// kept raw per storage key: historical rows may hold a single id string where
// current rows hold an ordered array, and tabulation must tolerate both.
type BallotRecord struct {
	VoterID        string
	VoterInstitute string
	Selections     map[string]json.RawMessage
	SubmittedAt    time.Time
}

// Clone copies the selection map and raw payloads.
func (b BallotRecord) Clone() BallotRecord {
	out := b
	out.Selections = make(map[string]json.RawMessage, len(b.Selections))
	for key, raw := range b.Selections {
		out.Selections[key] = append(json.RawMessage(nil), raw...)
	}
	return out
}

type CandidateTally struct {
	CandidateID string
	Votes       int
}

// TallyResult is derived on read and never persisted.
type TallyResult struct {
	Key            PositionKey
	MaxSelections  int
	Candidates     []CandidateTally
	BallotsCounted int
	Abstentions    int
	Malformed      int
	Excluded       int
}

func (t TallyResult) VotesFor(candidateID string) int {
	for _, item := range t.Candidates {
		if item.CandidateID == candidateID {
			return item.Votes
		}
	}
	return 0
}
