package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/folio/pkg/eventbus"
	"github.com/dukex/folio/pkg/events"
	"github.com/dukex/folio/pkg/models"
)

// TransitionHandler notifies every holder of a role when a manuscript moves
// into the watched status. Delivery is at least once, so a redelivered event
// can produce duplicate notifications.
type TransitionHandler struct {
	service  *Service
	watched  models.Status
	role     models.Role
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

const (
	DefaultDeliveryAttempts = 3
	DefaultDeliveryBackoff  = 200 * time.Millisecond
)

type TransitionOption func(*TransitionHandler)

func WithWatchedStatus(status models.Status) TransitionOption {
	return func(h *TransitionHandler) {
		h.watched = status
	}
}

func WithRecipientRole(role models.Role) TransitionOption {
	return func(h *TransitionHandler) {
		h.role = role
	}
}

// WithDeliveryRetry bounds how often a failed batch write is retried before
// the event is acknowledged anyway. The wait doubles after each attempt.
func WithDeliveryRetry(attempts int, backoff time.Duration) TransitionOption {
	return func(h *TransitionHandler) {
		h.attempts = max(attempts, 1)
		h.backoff = backoff
	}
}

func NewTransitionHandler(service *Service, logger *slog.Logger, opts ...TransitionOption) *TransitionHandler {
	h := &TransitionHandler{
		service: service,
		watched:  models.StatusBackToAdmin,
		role:     models.RoleAdmin,
		attempts: DefaultDeliveryAttempts,
		backoff:  DefaultDeliveryBackoff,
		logger:   logger.With("module", "notification_trigger"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *TransitionHandler) Register(sub eventbus.EventSubscriber) error {
	return sub.Handle(events.ManuscriptStatusChangedEvent, h.Handle)
}

// Handle never returns an error: a fan-out that still fails after the bounded
// retries is logged and the event is acknowledged, since the status change it reacts to is already committed.
func (h *TransitionHandler) Handle(ctx context.Context, event events.Event) error {
	changed, ok := asStatusChanged(event)
	if !ok {
		return nil
	}

	if changed.From == changed.To || changed.To != h.watched {
		return nil
	}

	logger := h.logger.With("manuscript_id", changed.ManuscriptID, "event_id", changed.ID)

	users, err := h.service.directory.UsersByRole(ctx, h.role)
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve recipients", "role", h.role, "error", err)

		return nil
	}

	if len(users) == 0 {
		logger.WarnContext(ctx, "no recipients hold role", "role", h.role)

		return nil
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	at := changed.Timestamp

	err = h.deliver(ctx, logger, Request{
		RecipientIDs: ids,
		Type:         typeFor(h.watched),
		Title:        titleFor(h.watched),
		Message:      fmt.Sprintf("Manuscript %s moved from %s to %s.", changed.ManuscriptID, changed.From, changed.To),
		Metadata: map[string]any{
			"manuscript_id":  changed.ManuscriptID,
			"from":           string(changed.From),
			"to":             string(changed.To),
			"version_number": changed.VersionNumber,
		},
		CreatedAtClient: &at,
	})
	if err != nil {
		logger.ErrorContext(ctx, "transition fan-out failed", "attempts", h.attempts, "error", err)
	}

	return nil
}

// deliver retries failed batch writes. The batch is atomic, so a retry never
// duplicates a partial write. Invalid requests are not retried.
func (h *TransitionHandler) deliver(ctx context.Context, logger *slog.Logger, req Request) error {
	wait := h.backoff

	var err error

	for attempt := 1; ; attempt++ {
		if _, err = h.service.deliver(ctx, "trigger", req); err == nil || IsValidation(err) || attempt >= h.attempts {
			return err
		}

		logger.WarnContext(ctx, "transition fan-out attempt failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}

		wait *= 2
	}
}

func asStatusChanged(event events.Event) (*events.StatusChanged, bool) {
	switch e := event.(type) {
	case *events.StatusChanged:
		return e, e != nil
	case events.StatusChanged:
		return &e, true
	default:
		return nil, false
	}
}

func typeFor(status models.Status) string {
	switch {
	case status == models.StatusBackToAdmin:
		return models.NotificationTypeReviewsCompleted
	case status.IsTerminal() || status.IsRevision():
		return models.NotificationTypeDecisionRendered
	default:
		return models.NotificationTypeManuscriptUpdated
	}
}

func titleFor(status models.Status) string {
	if status == models.StatusBackToAdmin {
		return "All reviews completed"
	}

	return "Manuscript moved to " + string(status)
}

// InvitationHandler tells a reviewer they were invited.
type InvitationHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewInvitationHandler(service *Service, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{service: service, logger: logger.With("module", "notification_invitation")}
}

func (h *InvitationHandler) Register(sub eventbus.EventSubscriber) error {
	return sub.Handle(events.ReviewerAssignedEvent, h.Handle)
}

func (h *InvitationHandler) Handle(ctx context.Context, event events.Event) error {
	var assigned *events.ReviewerAssigned

	switch e := event.(type) {
	case *events.ReviewerAssigned:
		assigned = e
	case events.ReviewerAssigned:
		assigned = &e
	}

	if assigned == nil || assigned.ReviewerID == "" {
		return nil
	}

	message := fmt.Sprintf("You were invited to review manuscript %s.", assigned.ManuscriptID)
	if assigned.Deadline != nil {
		message += " Please respond by " + assigned.Deadline.Format("2006-01-02") + "."
	}

	at := assigned.Timestamp

	_, err := h.service.deliver(ctx, "invitation", Request{
		RecipientIDs:    []string{assigned.ReviewerID},
		Type:            models.NotificationTypeReviewerInvited,
		Title:           "Review invitation",
		Message:         message,
		Metadata:        map[string]any{"manuscript_id": assigned.ManuscriptID},
		CreatedAtClient: &at,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "invitation notification failed",
			"manuscript_id", assigned.ManuscriptID, "reviewer_id", assigned.ReviewerID, "error", err)
	}

	return nil
}

// Subscribe registers the transition and invitation handlers on bus and
// starts consuming.
func Subscribe(ctx context.Context, bus eventbus.EventSubscriber, service *Service, logger *slog.Logger, opts ...TransitionOption) error {
	if err := NewTransitionHandler(service, logger, opts...).Register(bus); err != nil {
		return fmt.Errorf("failed to register transition handler: %w", err)
	}

	if err := NewInvitationHandler(service, logger).Register(bus); err != nil {
		return fmt.Errorf("failed to register invitation handler: %w", err)
	}

	return bus.Subscribe(ctx)
}
