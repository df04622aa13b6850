package models

import "time"

// Notification types emitted by the workflow core.
const (
	NotificationTypeReviewerInvited   = "reviewer_invited"
	NotificationTypeReviewsCompleted  = "reviews_completed"
	NotificationTypeDecisionRendered  = "decision_rendered"
	NotificationTypeDeadlineReminder  = "deadline_reminder"
	NotificationTypeManuscriptUpdated = "manuscript_updated"
)

// Notification is an advisory message addressed to one recipient.
type Notification struct {
	ID          string         `json:"id"`
	RecipientID string         `json:"recipient_id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Seen        bool           `json:"seen"`

	// CreatedAt is assigned by the store at write time and orders notifications.
	CreatedAt time.Time `json:"created_at"`
	// CreatedAtClient is the caller-supplied display timestamp.
	CreatedAtClient time.Time `json:"created_at_client"`
}
