package mocks

import (
	"context"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of persistence.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)

	user, _ := args.Get(0).(*models.User)

	return user, args.Error(1)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	args := m.Called(ctx, role)

	users, _ := args.Get(0).([]*models.User)

	return users, args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)

	return args.Error(0)
}

// MockNotificationRepository is a mock implementation of persistence.NotificationRepository.
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateBatch(ctx context.Context, notifications []*models.Notification) error {
	args := m.Called(ctx, notifications)

	return args.Error(0)
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unseenOnly bool) ([]*models.Notification, error) {
	args := m.Called(ctx, recipientID, unseenOnly)

	notifications, _ := args.Get(0).([]*models.Notification)

	return notifications, args.Error(1)
}

func (m *MockNotificationRepository) MarkSeen(ctx context.Context, recipientID string, ids []string) (int, error) {
	args := m.Called(ctx, recipientID, ids)

	return args.Int(0), args.Error(1)
}

// MockOutboxRepository is a mock implementation of persistence.OutboxRepository.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	args := m.Called(ctx, limit)

	pending, _ := args.Get(0).([]models.OutboxEvent)

	return pending, args.Error(1)
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	args := m.Called(ctx, ids, at)

	return args.Error(0)
}

var (
	_ persistence.UserRepository         = (*MockUserRepository)(nil)
	_ persistence.NotificationRepository = (*MockNotificationRepository)(nil)
	_ persistence.OutboxRepository       = (*MockOutboxRepository)(nil)
)
