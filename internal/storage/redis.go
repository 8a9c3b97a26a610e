package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"casino-round-settlement/internal/models"
)

// RedisStore keeps pending records without expiry; they are removed only by
// recovery.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) Save(ctx context.Context, gameID string, rec models.PendingResult) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, PendingKey(s.namespace, gameID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save pending result: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, gameID string) (*models.PendingResult, error) {
	data, err := s.client.Get(ctx, PendingKey(s.namespace, gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending result: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Delete(ctx context.Context, gameID string) error {
	if err := s.client.Del(ctx, PendingKey(s.namespace, gameID)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending result: %w", err)
	}
	return nil
}
