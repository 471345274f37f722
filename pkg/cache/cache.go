package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLs per cached entity
const (
	TTLParticipants = 5 * time.Minute  // project participant list (changes on first contact only)
	TTLUnread       = 30 * time.Second // unread counters (refreshed often)
	TTLDefault      = 1 * time.Minute
)

// Cache key prefixes
const (
	PrefixParticipants = "participants:"
	PrefixUnread       = "unread:"
)

// ErrCacheMiss is returned when a key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Service is the Redis-backed cache used by the messaging services
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	GetParticipants(ctx context.Context, projectID string, dest interface{}) error
	SetParticipants(ctx context.Context, projectID string, data interface{}) error
	InvalidateParticipants(ctx context.Context, projectID string) error

	GetUnreadCount(ctx context.Context, projectID, viewerID string) (int64, bool)
	SetUnreadCount(ctx context.Context, projectID, viewerID string, count int64)
	InvalidateUnread(ctx context.Context, projectID string, viewerIDs ...string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a Redis-backed cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = TTLDefault
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) GetParticipants(ctx context.Context, projectID string, dest interface{}) error {
	return c.Get(ctx, PrefixParticipants+projectID, dest)
}

func (c *redisCache) SetParticipants(ctx context.Context, projectID string, data interface{}) error {
	return c.Set(ctx, PrefixParticipants+projectID, data, TTLParticipants)
}

func (c *redisCache) InvalidateParticipants(ctx context.Context, projectID string) error {
	return c.Delete(ctx, PrefixParticipants+projectID)
}

func unreadKey(projectID, viewerID string) string {
	return fmt.Sprintf("%s%s:%s", PrefixUnread, projectID, viewerID)
}

func (c *redisCache) GetUnreadCount(ctx context.Context, projectID, viewerID string) (int64, bool) {
	val, err := c.client.Get(ctx, unreadKey(projectID, viewerID)).Int64()
	if err != nil {
		return 0, false
	}
	return val, true
}

func (c *redisCache) SetUnreadCount(ctx context.Context, projectID, viewerID string, count int64) {
	c.client.Set(ctx, unreadKey(projectID, viewerID), count, TTLUnread) //nolint:errcheck
}

func (c *redisCache) InvalidateUnread(ctx context.Context, projectID string, viewerIDs ...string) error {
	keys := make([]string, len(viewerIDs))
	for i, v := range viewerIDs {
		keys[i] = unreadKey(projectID, v)
	}
	return c.Delete(ctx, keys...)
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
