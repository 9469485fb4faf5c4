package entities

import (
	"strings"
	"time"
)

type Role string

const (
	RoleVoter     Role = "voter"
	RoleCandidate Role = "candidate"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleVoter, RoleCandidate, RoleAdmin:
		return true
	default:
		return false
	}
}

// Identity is the profile the identity collaborator supplies for an account.
// Only Role, Institute and EmailVerified drive eligibility decisions.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
	Role          Role
	Institute     string
	StudentID     string
	DisplayName   string
	UpdatedAt     time.Time
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) Is(userID string) bool {
	return strings.TrimSpace(a.UserID) != "" && strings.TrimSpace(a.UserID) == strings.TrimSpace(userID)
}
