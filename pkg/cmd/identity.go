package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/dukex/folio/pkg/settings"
)

// NewRoleCache returns a Redis-backed cache for redis:// and rediss:// URLs
// and an in-process cache otherwise.
func NewRoleCache(cacheURL string, ttl time.Duration) (identity.Cache, error) {
	if strings.HasPrefix(cacheURL, "redis://") || strings.HasPrefix(cacheURL, "rediss://") {
		cache, err := identity.NewRedisCacheFromURL(cacheURL, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis role cache: %w", err)
		}

		return cache, nil
	}

	return identity.NewMemoryCache(ttl), nil
}

func NewDirectory(p persistence.Persistence, cacheURL string, ttl time.Duration, logger *slog.Logger) (*identity.Service, error) {
	cache, err := NewRoleCache(cacheURL, ttl)
	if err != nil {
		return nil, err
	}

	return identity.NewService(p.UserRepository(), cache, logger), nil
}

// NewSettingsProvider reads deadline windows from path when set, and from the
// store otherwise.
func NewSettingsProvider(p persistence.Persistence, path string) settings.Provider {
	if path != "" {
		return settings.NewFileProvider(path)
	}

	return settings.NewRepositoryProvider(p.SettingsRepository())
}
