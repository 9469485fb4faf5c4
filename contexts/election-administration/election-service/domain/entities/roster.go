package entities

import "time"

// RosterEntry promotes a passed case to an actual ballot candidate.
// CandidateID is the applicant's identity id and is what ballots select.
type RosterEntry struct {
	EntryID     string
	CaseID      string
	CandidateID string
	DisplayName string
	Position    string
	Institute   string
	Team        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	EditedBy    string
}

// EligibleFor reports whether the entry may be selected under key.
func (e RosterEntry) EligibleFor(key PositionKey) bool {
	if e.Position != key.Name() {
		return false
	}
	if key.Scoped() {
		return e.Institute == key.Institute()
	}
	return true
}
