package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"emissions/internal/ratelimit/models"
	"emissions/pkg/platform/sentinel"
)

const (
	keyPrefix = "emissions:lockout:"

	// maxUpdateAttempts bounds optimistic retries when concurrent writers
	// keep touching the same key.
	maxUpdateAttempts = 10
)

var errUpdateContention = errors.New("lockout key kept changing during update")

// RedisStore shares lockouts between instances. Redis expiry removes stale
// records.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.Lockout, error) {
	l, err := decode(s.client.Get(ctx, keyPrefix+key).Bytes())
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, sentinel.ErrNotFound
	}
	return l, nil
}

// Update applies fn under WATCH so concurrent failures from several
// instances never overwrite each other. fn may run more than once and must
// only touch the record it is given.
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(*models.Lockout)) (*models.Lockout, error) {
	redisKey := keyPrefix + key
	var updated *models.Lockout
	txf := func(tx *redis.Tx) error {
		l, err := decode(tx.Get(ctx, redisKey).Bytes())
		if err != nil {
			return err
		}
		if l == nil {
			l = &models.Lockout{Key: key}
		}
		fn(l)
		raw, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("encode lockout: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, raw, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = l
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update lockout: %w", err)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update lockout: %w", errUpdateContention)
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

// decode returns nil without error when the key does not exist.
func decode(raw []byte, err error) (*models.Lockout, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	var l models.Lockout
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode lockout: %w", err)
	}
	return &l, nil
}
