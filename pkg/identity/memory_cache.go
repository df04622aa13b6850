package identity

import (
	"context"
	"sync"
	"time"

	"github.com/dukex/folio/pkg/models"
)

type memoryEntry struct {
	user      models.User
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]memoryEntry{},
	}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (*models.User, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !c.now().Before(entry.expiresAt) {
		c.evict(userID)

		return nil, false, nil
	}

	user := entry.user

	return &user, true, nil
}

// evict drops userID only if its entry is still expired once the write lock
// is held; a concurrent Set may have refreshed it.
func (c *MemoryCache) evict(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[userID]; ok && !c.now().Before(entry.expiresAt) {
		delete(c.entries, userID)
	}
}

func (c *MemoryCache) Set(_ context.Context, user *models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[user.ID] = memoryEntry{user: *user, expiresAt: c.now().Add(c.ttl)}

	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, userID)

	return nil
}

func (c *MemoryCache) Purge(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = map[string]memoryEntry{}

	return nil
}
