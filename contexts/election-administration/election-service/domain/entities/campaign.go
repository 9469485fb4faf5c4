package entities

import "time"

type MaterialStatus string

const (
	MaterialStatusPending  MaterialStatus = "pending"
	MaterialStatusApproved MaterialStatus = "approved"
	MaterialStatusRejected MaterialStatus = "rejected"
)

type CampaignMaterial struct {
	MaterialID  string
	EntryID     string
	SubmittedBy string
	MediaRef    string
	Caption     string
	Status      MaterialStatus
	ReviewedBy  string
	ReviewedAt  *time.Time
	Reason      string
	CreatedAt   time.Time
}
