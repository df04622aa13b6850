package web

import (
	"time"

	"github.com/dukex/folio/pkg/deadline"
	"github.com/dukex/folio/pkg/models"
)

// CallerHeader carries the authenticated user id set by the gateway.
const CallerHeader = "X-User-ID"

type AssignReviewerRequest struct {
	ReviewerID         string     `json:"reviewer_id"          validate:"required"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	ReminderEnabled    bool       `json:"reminder_enabled"`
	ReminderDaysBefore int        `json:"reminder_days_before" validate:"gte=0,lte=30"`
}

type InvitationResponseRequest struct {
	Response models.InvitationStatus `json:"response" validate:"required,oneof=accepted declined"`
}

type DecisionRequest struct {
	Outcome models.Status `json:"outcome" validate:"required"`
}

// UpdateDeadlineRequest is a partial update; omitted fields keep their value.
type UpdateDeadlineRequest struct {
	Deadline           *time.Time `json:"deadline,omitempty"`
	ReminderEnabled    *bool      `json:"reminder_enabled,omitempty"`
	ReminderDaysBefore *int       `json:"reminder_days_before,omitempty" validate:"omitempty,gte=0,lte=30"`
}

type UpdateDeadlinesRequest struct {
	Kind deadline.Kind `json:"kind" validate:"required,oneof=invitation review minor major finalization"`
}

type MarkSeenRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// DeadlineResponse lists the deadlines the caller may see for one manuscript.
type DeadlineResponse struct {
	ManuscriptID string                   `json:"manuscript_id"`
	Manuscript   *deadline.Info           `json:"manuscript,omitempty"`
	Reviewers    map[string]deadline.Info `json:"reviewers,omitempty"`
}
