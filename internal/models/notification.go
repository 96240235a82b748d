package models

import "time"

// NotificationType identifies what triggered a notification.
type NotificationType string

// Notification triggers emitted by the campaign workflow.
const (
	NotificationCampaignActivated NotificationType = "CAMPAIGN_ACTIVATED"
	NotificationConsentRequested  NotificationType = "CONSENT_REQUESTED"
	NotificationConsentRecorded   NotificationType = "CONSENT_RECORDED"
	NotificationResultRecorded    NotificationType = "RESULT_RECORDED"
)

// Notification is the fire-and-forget message handed to the dispatcher.
// Delivery failures never roll back the operation that produced it.
type Notification struct {
	Type       NotificationType `json:"type"`
	CampaignID string           `json:"campaign_id,omitempty"`
	StudentIDs []string         `json:"student_ids,omitempty"`
	Message    string           `json:"message"`
	CreatedAt  time.Time        `json:"created_at"`
}
