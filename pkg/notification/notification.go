// Package notification fans advisory messages out to many recipients with a
// single atomic batch write, either on an explicit call or in reaction to
// workflow events.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/metrics"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

// Request is the bulk call payload.
type Request struct {
	RecipientIDs    []string       `json:"recipientIds"              validate:"required,min=1"`
	Type            string         `json:"type"                      validate:"required,max=64"`
	Title           string         `json:"title"                     validate:"required,max=200"`
	Message         string         `json:"message"                   validate:"required,max=5000"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAtClient *time.Time     `json:"createdAtClient,omitempty"`
}

// View is a notification as returned to callers. It carries the client
// display timestamp; the store's ordering timestamp stays server side.
type View struct {
	ID          string         `json:"id"`
	RecipientID string         `json:"recipientId"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Seen        bool           `json:"seen"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func toView(n *models.Notification) View {
	return View{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		Metadata:    n.Metadata,
		Seen:        n.Seen,
		CreatedAt:   n.CreatedAtClient,
	}
}

type Result struct {
	Success bool             `json:"success"`
	Created []View           `json:"created"`
	Skipped []string         `json:"skipped"`
	Errors  []RecipientError `json:"errors"`
}

type Service struct {
	repo      persistence.NotificationRepository
	directory identity.Directory
	mailer    Mailer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Service)

// WithMailer mirrors every created notification to the recipient's email.
func WithMailer(m Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo persistence.NotificationRepository, directory identity.Directory, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		directory: directory,
		logger:    logger.With("module", "notification"),
		metrics:   metrics.NewNoop(),
		validate:  validator.New(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SendBulk validates the request, drops duplicate and unknown recipients, and
// writes one notification per remaining recipient as a single batch. The
// caller must be a known user or models.SystemActor.
func (s *Service) SendBulk(ctx context.Context, caller string, req Request) (*Result, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}

	return s.deliver(ctx, "bulk", req)
}

func (s *Service) authorize(ctx context.Context, caller string) error {
	switch caller {
	case "":
		return ErrUnauthenticated
	case models.SystemActor:
		return nil
	}

	_, err := s.directory.Lookup(ctx, caller)
	if identity.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrUnknownCaller, caller)
	}

	if err != nil {
		return fmt.Errorf("failed to resolve caller %s: %w", caller, err)
	}

	return nil
}

func (s *Service) deliver(ctx context.Context, source string, req Request) (*Result, error) {
	if len(req.RecipientIDs) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrNoRecipients)
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	displayAt := s.now().UTC()
	if req.CreatedAtClient != nil {
		displayAt = req.CreatedAtClient.UTC()
	}

	result := &Result{Created: []View{}, Skipped: []string{}, Errors: []RecipientError{}}
	batch := make([]*models.Notification, 0, len(req.RecipientIDs))
	recipients := make(map[string]*models.User, len(req.RecipientIDs))
	seen := make(map[string]bool, len(req.RecipientIDs))

	for _, id := range req.RecipientIDs {
		if id == "" {
			result.Errors = append(result.Errors, RecipientError{RecipientID: id, Error: ErrEmptyRecipient.Error()})

			continue
		}

		if seen[id] {
			continue
		}

		seen[id] = true

		user, err := s.directory.Lookup(ctx, id)
		if identity.IsNotFound(err) {
			result.Skipped = append(result.Skipped, id)

			continue
		}

		if err != nil {
			result.Errors = append(result.Errors, RecipientError{RecipientID: id, Error: err.Error()})

			continue
		}

		recipients[id] = user
		batch = append(batch, &models.Notification{
			RecipientID:     id,
			Type:            req.Type,
			Title:           req.Title,
			Message:         req.Message,
			Metadata:        maps.Clone(req.Metadata),
			CreatedAtClient: displayAt,
		})
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to write notification batch: %w", err)
	}

	for _, n := range batch {
		result.Created = append(result.Created, toView(n))
	}

	result.Success = true

	s.metrics.RecordNotifications(ctx, source, len(batch))
	s.logger.InfoContext(ctx, "notifications created",
		"source", source, "type", req.Type, "created", len(batch), "skipped", len(result.Skipped), "errors", len(result.Errors))

	s.mirror(ctx, batch, recipients)

	return result, nil
}

func (s *Service) mirror(ctx context.Context, batch []*models.Notification, recipients map[string]*models.User) {
	if s.mailer == nil {
		return
	}

	for _, n := range batch {
		user := recipients[n.RecipientID]
		if user == nil || user.Email == "" {
			continue
		}

		if err := s.mailer.Send(ctx, user, n); err != nil {
			s.logger.WarnContext(ctx, "failed to email notification",
				"notification_id", n.ID, "recipient_id", n.RecipientID, "error", err)
		}
	}
}

// List returns the recipient's notifications newest first.
func (s *Service) List(ctx context.Context, recipientID string, unseenOnly bool) ([]View, error) {
	if recipientID == "" {
		return nil, ErrUnauthenticated
	}

	notifications, err := s.repo.ListByRecipient(ctx, recipientID, unseenOnly)
	if err != nil {
		return nil, err
	}

	out := make([]View, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, toView(n))
	}

	return out, nil
}

// MarkSeen flags the recipient's own notifications as seen.
func (s *Service) MarkSeen(ctx context.Context, recipientID string, ids []string) (int, error) {
	if recipientID == "" {
		return 0, ErrUnauthenticated
	}

	ids = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == "" })
	if len(ids) == 0 {
		return 0, nil
	}

	return s.repo.MarkSeen(ctx, recipientID, ids)
}
