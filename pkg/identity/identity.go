// Package identity resolves users and their roles for the workflow core.
// Lookups go through an injected cache so role changes propagate after the
// cache TTL or an explicit invalidation.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
)

// DefaultTTL bounds how long a cached role may lag behind the directory.
const DefaultTTL = 5 * time.Minute

var ErrUserNotFound = errors.New("user not found")

// Directory is what the workflow core needs from the identity collaborator.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*models.User, error)
	UsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
}

// Cache stores users by id. Implementations must expire entries on their own.
type Cache interface {
	Get(ctx context.Context, userID string) (*models.User, bool, error)
	Set(ctx context.Context, user *models.User) error
	Invalidate(ctx context.Context, userID string) error
	Purge(ctx context.Context) error
}

// Service is a Directory backed by the user repository and a Cache.
type Service struct {
	users  persistence.UserRepository
	cache  Cache
	logger *slog.Logger
}

func NewService(users persistence.UserRepository, cache Cache, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		cache:  cache,
		logger: logger.With("module", "identity"),
	}
}

// Lookup returns the user, consulting the cache first. Cache failures degrade
// to a repository read.
func (s *Service) Lookup(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}

	if s.cache != nil {
		user, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "role cache read failed", "user_id", userID, "error", err)
		} else if ok {
			return user, nil
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if persistence.IsUserNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}

		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, user); err != nil {
			s.logger.WarnContext(ctx, "role cache write failed", "user_id", userID, "error", err)
		}
	}

	return user, nil
}

// UsersByRole always reads the repository; recipients lists must be current.
func (s *Service) UsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	return s.users.ListByRole(ctx, role)
}

// HasRole reports whether the user exists and holds role.
func (s *Service) HasRole(ctx context.Context, userID string, role models.Role) (bool, error) {
	user, err := s.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}

		return false, err
	}

	return user.Role == role, nil
}

// Save stores the user and drops any cached copy.
func (s *Service) Save(ctx context.Context, user *models.User) error {
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}

	return s.Invalidate(ctx, user.ID)
}

func (s *Service) Invalidate(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}

	return s.cache.Invalidate(ctx, userID)
}

func (s *Service) Purge(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	return s.cache.Purge(ctx)
}

// IsNotFound reports whether err is an unknown user.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
