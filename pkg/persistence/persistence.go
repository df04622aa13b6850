// Package persistence provides the data storage abstraction for manuscripts,
// notifications, users, settings and the transactional outbox.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/folio/pkg/models"
)

type Persistence interface {
	ManuscriptRepository() ManuscriptRepository
	NotificationRepository() NotificationRepository
	UserRepository() UserRepository
	OutboxRepository() OutboxRepository
	SettingsRepository() SettingsRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListManuscriptsOptions filters manuscript listings. Zero values match everything.
type ListManuscriptsOptions struct {
	Status      *models.Status
	SubmitterID string
	ReviewerID  string
	Limit       int
	Offset      int
}

// ManuscriptRepository stores the manuscript aggregate as a single document.
// Create and Update commit the document and its outbox events atomically.
type ManuscriptRepository interface {
	GetByID(ctx context.Context, id string) (*models.Manuscript, error)
	List(ctx context.Context, opts ListManuscriptsOptions) ([]*models.Manuscript, error)
	Create(ctx context.Context, manuscript *models.Manuscript, events []models.OutboxEvent) error
	// Update succeeds only when the stored revision equals expectedRevision,
	// otherwise it returns ErrConflict. On success manuscript.Revision is advanced.
	Update(ctx context.Context, manuscript *models.Manuscript, expectedRevision int64, events []models.OutboxEvent) error
}

// NotificationRepository stores notifications. CreateBatch is all-or-nothing
// and assigns the server CreatedAt of every notification.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []*models.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, unseenOnly bool) ([]*models.Notification, error)
	MarkSeen(ctx context.Context, recipientID string, ids []string) (int, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

type OutboxRepository interface {
	Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

type SettingsRepository interface {
	// DeadlineDays returns the stored status→days document, or nil when absent.
	DeadlineDays(ctx context.Context) (map[string]int, error)
	SaveDeadlineDays(ctx context.Context, days map[string]int) error
}
