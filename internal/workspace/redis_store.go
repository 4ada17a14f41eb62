package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"copilot/api/internal/copilot"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "workspace:"
	defaultTTL = 12 * time.Hour
)

// RedisStore implements workspace storage using Redis. Every save refreshes
// the expiry, so an idle workspace disappears after one TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed workspace store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, prefix: keyPrefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (copilot.State, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return copilot.State{}, ErrNotFound
	}
	if err != nil {
		return copilot.State{}, fmt.Errorf("load workspace: %w", err)
	}

	var state copilot.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return copilot.State{}, fmt.Errorf("unmarshal workspace: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, state copilot.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	if err := s.client.Set(ctx, s.key(state.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

// Update replaces the snapshot inside a WATCH transaction, so a write that
// lands between the revision check and the SET aborts with ErrConflict.
func (s *RedisStore) Update(ctx context.Context, state copilot.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	key := s.key(state.ID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load workspace: %w", err)
		}
		var stored struct {
			Revision int64 `json:"revision"`
		}
		if err := json.Unmarshal(current, &stored); err != nil {
			return fmt.Errorf("unmarshal workspace: %w", err)
		}
		if stored.Revision != state.Revision-1 {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case err != nil:
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
