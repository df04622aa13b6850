package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dukex/folio/pkg/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "folio:user:"

// RedisCache shares cached users between API and worker processes.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisCacheFromURL parses a redis:// URL.
func NewRedisCacheFromURL(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return NewRedisCache(redis.NewClient(opts), ttl), nil
}

func (c *RedisCache) Get(ctx context.Context, userID string) (*models.User, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, err
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, false, err
	}

	return &user, true, nil
}

func (c *RedisCache) Set(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, redisKeyPrefix+user.ID, raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, redisKeyPrefix+userID).Err()
}

// Purge removes every cached user, leaving unrelated keys alone.
func (c *RedisCache) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
