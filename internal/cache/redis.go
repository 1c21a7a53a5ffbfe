package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spark-dating/spark-server/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForUnreadTotal generates the Redis key for a user's total unread count.
func (c *RedisCache) KeyForUnreadTotal(userID uint64) string {
	return fmt.Sprintf("unread:total:%d", userID)
}

// UpdateUnreadTotal stores a freshly recomputed unread total.
// Always refreshes TTL when updating.
func (c *RedisCache) UpdateUnreadTotal(ctx context.Context, userID uint64, total int64) error {
	return c.Client.Set(ctx, c.KeyForUnreadTotal(userID), total, time.Hour).Err()
}

// GetUnreadTotal returns the cached unread total for a user.
// A cache miss is reported via the second return value, not an error.
func (c *RedisCache) GetUnreadTotal(ctx context.Context, userID uint64) (int64, bool, error) {
	key := c.KeyForUnreadTotal(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, time.Hour).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // unparsable entry counts as a miss
	}
	return n, true, nil
}

// InvalidateUnreadTotal drops the cached total so the next read recomputes.
func (c *RedisCache) InvalidateUnreadTotal(ctx context.Context, userID uint64) error {
	return c.Client.Del(ctx, c.KeyForUnreadTotal(userID)).Err()
}
