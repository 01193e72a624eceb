package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatcore/internal/domain/entity"
)

const mediaKeyPrefix = "media:"

// RedisMediaCache keeps GIF/sticker result pages so repeated trending and
// category lookups do not spend the provider quota.
type RedisMediaCache struct {
	client *redis.Client
}

func NewRedisMediaCache(ctx context.Context, redisURL string) (*RedisMediaCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisMediaCache{client: client}, nil
}

func NewRedisMediaCacheFromClient(client *redis.Client) *RedisMediaCache {
	return &RedisMediaCache{client: client}
}

func (c *RedisMediaCache) Get(ctx context.Context, key string) ([]entity.Media, bool, error) {
	raw, err := c.client.Get(ctx, mediaKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []entity.Media
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (c *RedisMediaCache) Set(ctx context.Context, key string, items []entity.Media, ttl time.Duration) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, mediaKeyPrefix+key, raw, ttl).Err()
}

func (c *RedisMediaCache) Close() error {
	return c.client.Close()
}
