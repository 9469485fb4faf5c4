package entities

import "time"

type Phase string

const (
	PhaseVoting    Phase = "voting"
	PhaseScreening Phase = "screening"
	PhaseCampaign  Phase = "campaign"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseVoting, PhaseScreening, PhaseCampaign:
		return true
	default:
		return false
	}
}

// PhaseWindow gates one election phase by the closed interval
// [StartsAt, EndsAt]. CachedActive is advisory display state only.
type PhaseWindow struct {
	Phase        Phase
	StartsAt     time.Time
	EndsAt       time.Time
	CachedActive bool
	UpdatedAt    time.Time
	UpdatedBy    string
}

// IsOpen derives the gate from the interval on every call. An unconfigured
// window is closed.
func (w PhaseWindow) IsOpen(now time.Time) bool {
	if w.StartsAt.IsZero() || w.EndsAt.IsZero() {
		return false
	}
	return !now.Before(w.StartsAt) && !now.After(w.EndsAt)
}
