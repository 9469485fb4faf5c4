package entities

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending  AppointmentStatus = "pending"
	AppointmentStatusApproved AppointmentStatus = "approved"
	AppointmentStatusRejected AppointmentStatus = "rejected"
)

// ScreeningSlot is a globally shared time slot. SlotKey is an RFC3339
// timestamp string.
type ScreeningSlot struct {
	SlotKey    string
	Venue      string
	Available  bool
	ReservedBy string
	UpdatedAt  time.Time
}

type Appointment struct {
	SlotKey   string
	Venue     string
	Status    AppointmentStatus
	CreatedAt time.Time
	DecidedAt *time.Time
	DecidedBy string
}

type AppointmentDecision struct {
	SlotKey   string
	Venue     string
	Status    AppointmentStatus
	DecidedBy string
	Note      string
	DecidedAt time.Time
}
