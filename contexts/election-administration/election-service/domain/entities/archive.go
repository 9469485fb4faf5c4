package entities

import (
	"strconv"
	"time"
)

type ArchiveStep string

const (
	ArchiveStepLiveStateLoaded   ArchiveStep = "live_state_loaded"
	ArchiveStepSnapshotWritten   ArchiveStep = "snapshot_written"
	ArchiveStepCandidatesDemoted ArchiveStep = "candidates_demoted"
	ArchiveStepLiveStateCleared  ArchiveStep = "live_state_cleared"
)

// ArchiveSteps is the execution order of an archive run.
var ArchiveSteps = []ArchiveStep{
	ArchiveStepLiveStateLoaded,
	ArchiveStepSnapshotWritten,
	ArchiveStepCandidatesDemoted,
	ArchiveStepLiveStateCleared,
}

type ArchiveRunStatus string

const (
	ArchiveRunRunning   ArchiveRunStatus = "running"
	ArchiveRunCompleted ArchiveRunStatus = "completed"
	ArchiveRunFailed    ArchiveRunStatus = "failed"
)

type ArchiveKey struct {
	Year      int
	Timestamp string
}

func (k ArchiveKey) String() string {
	return strconv.Itoa(k.Year) + "/" + k.Timestamp
}

type ArchiveStepRecord struct {
	Step        ArchiveStep
	CompletedAt time.Time
	Detail      string
}

// ArchiveRun is the audit record of one archive attempt; it is what an
// operator reads to learn exactly which steps were applied.
type ArchiveRun struct {
	RunID         string
	Key           ArchiveKey
	RequestedBy   string
	Status        ArchiveRunStatus
	Steps         []ArchiveStepRecord
	FailedStep    ArchiveStep
	FailureReason string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

func (r ArchiveRun) Completed(step ArchiveStep) bool {
	for _, item := range r.Steps {
		if item.Step == step {
			return true
		}
	}
	return false
}

func (r ArchiveRun) CompletedSteps() []string {
	items := make([]string, 0, len(r.Steps))
	for _, item := range r.Steps {
		items = append(items, string(item.Step))
	}
	return items
}

// LiveState is every live collection read by the archive transaction.
type LiveState struct {
	Identities []Identity
	Cases      []CandidacyCase
	Slots      []ScreeningSlot
	Roster     []RosterEntry
	Materials  []CampaignMaterial
	Ballots    []BallotRecord
	Phases     []PhaseWindow
	Activity   []ActivityEntry
}

type CandidateResult struct {
	CandidateID string
	DisplayName string
	Institute   string
	Team        string
	Votes       int
}

type PositionResult struct {
	Key           PositionKey
	MaxSelections int
	Candidates    []CandidateResult
	Abstentions   int
}

type CaseSummary struct {
	Submitted int
	Reviewed  int
	Approved  int
	Rejected  int
	Passed    int
	Failed    int
}

// ArchiveReport is the human-readable projection consumed by exporters.
type ArchiveReport struct {
	Key          ArchiveKey
	GeneratedAt  time.Time
	TotalBallots int
	Turnout      map[string]int
	Results      []PositionResult
	Cases        CaseSummary
}

type ArchiveSnapshot struct {
	Key       ArchiveKey
	RunID     string
	CreatedAt time.Time
	CreatedBy string
	Report    ArchiveReport
	Raw       LiveState
}
