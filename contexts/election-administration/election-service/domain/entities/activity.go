package entities

import "time"

type ActivityEntry struct {
	EntryID     string
	ActorID     string
	Action      string
	SubjectType string
	SubjectID   string
	Detail      map[string]string
	OccurredAt  time.Time
}

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusDispatched NotificationStatus = "dispatched"
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusFailed     NotificationStatus = "failed"
)

// Notification template kinds.
const (
	TemplateCaseReviewed       = "case_reviewed"
	TemplateCaseApproved       = "case_approved"
	TemplateCaseRejected       = "case_rejected"
	TemplateAppointmentDecided = "appointment_decided"
	TemplateScreeningOutcome   = "screening_outcome"
	TemplateMaterialReviewed   = "campaign_material_reviewed"
)

type Notification struct {
	NotificationID string
	Recipient      string
	TemplateKind   string
	TemplateData   map[string]string
	Status         NotificationStatus
	Attempts       int
	LastError      string
	CreatedAt      time.Time
	SentAt         *time.Time
}
