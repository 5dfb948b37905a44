package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"emissions/internal/emission"
	"emissions/pkg/platform/sentinel"
)

const snapshotKey = "emissions:thresholds:current"

// RedisCache shares the current snapshot between instances so a refresh does
// not hit the database on every tick.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns sentinel.ErrNotFound on a cache miss.
func (c *RedisCache) Get(ctx context.Context) (*emission.Snapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached thresholds: %w", err)
	}
	var snap emission.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode cached thresholds: %w", err)
	}
	return &snap, nil
}

func (c *RedisCache) Set(ctx context.Context, snap emission.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode cached thresholds: %w", err)
	}
	return c.client.Set(ctx, snapshotKey, raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, snapshotKey).Err()
}
