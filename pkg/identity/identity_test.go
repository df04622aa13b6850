package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/folio/pkg/mocks"
	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_LookupUsesCache(t *testing.T) {
	repo := &mocks.MockUserRepository{}
	repo.On("GetByID", mock.Anything, "r1").Return(&models.User{ID: "r1", Role: models.RolePeerReviewer}, nil).Once()

	svc := NewService(repo, NewMemoryCache(time.Minute), discardLogger())

	for range 3 {
		user, err := svc.Lookup(t.Context(), "r1")
		require.NoError(t, err)
		assert.Equal(t, models.RolePeerReviewer, user.Role)
	}

	repo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestService_InvalidatePicksUpRoleChange(t *testing.T) {
	repo := &mocks.MockUserRepository{}
	repo.On("GetByID", mock.Anything, "u1").Return(&models.User{ID: "u1", Role: models.RoleResearcher}, nil).Once()
	repo.On("GetByID", mock.Anything, "u1").Return(&models.User{ID: "u1", Role: models.RoleAdmin}, nil).Once()

	svc := NewService(repo, NewMemoryCache(time.Hour), discardLogger())

	ok, err := svc.HasRole(t.Context(), "u1", models.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Invalidate(t.Context(), "u1"))

	ok, err = svc.HasRole(t.Context(), "u1", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_LookupNotFound(t *testing.T) {
	repo := &mocks.MockUserRepository{}
	repo.On("GetByID", mock.Anything, "ghost").Return(nil, persistence.NewUserError("GetByID", "ghost", persistence.ErrUserNotFound))

	svc := NewService(repo, nil, discardLogger())

	_, err := svc.Lookup(t.Context(), "ghost")
	assert.True(t, IsNotFound(err))

	ok, err := svc.HasRole(t.Context(), "ghost", models.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Lookup(t.Context(), "")
	assert.True(t, IsNotFound(err))
}

func TestService_SaveInvalidates(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	require.NoError(t, cache.Set(t.Context(), &models.User{ID: "u1", Role: models.RoleResearcher}))

	repo := &mocks.MockUserRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, cache, discardLogger())
	require.NoError(t, svc.Save(t.Context(), &models.User{ID: "u1", Role: models.RoleAdmin}))

	_, ok, err := cache.Get(t.Context(), "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Expires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(5 * time.Minute)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(t.Context(), &models.User{ID: "u1", Role: models.RoleAdmin}))

	now = now.Add(4 * time.Minute)
	_, ok, _ := cache.Get(t.Context(), "u1")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = cache.Get(t.Context(), "u1")
	assert.False(t, ok)
}

func TestMemoryCache_EvictKeepsRefreshedEntry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(5 * time.Minute)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(t.Context(), &models.User{ID: "u1", Role: models.RoleResearcher}))

	// A reader saw the stale entry; a writer refreshes it before the eviction runs.
	now = now.Add(5 * time.Minute)
	require.NoError(t, cache.Set(t.Context(), &models.User{ID: "u1", Role: models.RoleAdmin}))
	cache.evict("u1")

	user, ok, err := cache.Get(t.Context(), "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, user.Role)

	now = now.Add(5 * time.Minute)
	cache.evict("u1")
	assert.NotContains(t, cache.entries, "u1")
}

func TestMemoryCache_Purge(t *testing.T) {
	cache := NewMemoryCache(0)
	assert.Equal(t, DefaultTTL, cache.ttl)

	require.NoError(t, cache.Set(t.Context(), &models.User{ID: "a"}))
	require.NoError(t, cache.Set(t.Context(), &models.User{ID: "b"}))
	require.NoError(t, cache.Purge(t.Context()))

	_, ok, _ := cache.Get(t.Context(), "a")
	assert.False(t, ok)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisCache(client, time.Minute)
}

func TestRedisCache_RoundTripAndTTL(t *testing.T) {
	mr, cache := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &models.User{ID: "r1", Role: models.RolePeerReviewer, Email: "r1@example.org"}))

	user, ok, err := cache.Get(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1@example.org", user.Email)

	mr.FastForward(2 * time.Minute)

	_, ok, err = cache.Get(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_InvalidateAndPurge(t *testing.T) {
	mr, cache := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("unrelated", "keep"))
	require.NoError(t, cache.Set(ctx, &models.User{ID: "a"}))
	require.NoError(t, cache.Set(ctx, &models.User{ID: "b"}))

	require.NoError(t, cache.Invalidate(ctx, "a"))
	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, cache.Purge(ctx))
	_, ok, _ = cache.Get(ctx, "b")
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated"))
}

func TestNewRedisCacheFromURL(t *testing.T) {
	_, err := NewRedisCacheFromURL("not a url", time.Minute)
	require.Error(t, err)

	cache, err := NewRedisCacheFromURL("redis://localhost:6379/0", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, cache.ttl)
	require.NoError(t, cache.Close())
}
