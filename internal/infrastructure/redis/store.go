package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/redis/go-redis/v9"
)

// Store keeps the queue as a single JSON string value. SET replaces the
// value atomically, so readers see either the old or the new queue.
type Store struct {
	client redis.Cmdable
	key    string
}

func NewStore(client redis.Cmdable, key string) *Store {
	return &Store{client: client, key: key}
}

func (s *Store) Load(ctx context.Context) ([]*operation.Operation, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue %q: %w", s.key, err)
	}
	return operation.DecodeQueue(data)
}

func (s *Store) Save(ctx context.Context, ops []*operation.Operation) error {
	data, err := operation.EncodeQueue(ops)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save queue %q: %w", s.key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear queue %q: %w", s.key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
