package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/idempotency"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:"

// IdempotencyRepository stores replies as JSON strings that Redis expires
// on its own.
type IdempotencyRepository struct {
	client redis.Cmdable
}

func NewIdempotencyRepository(client redis.Cmdable) *IdempotencyRepository {
	return &IdempotencyRepository{client: client}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Entry, error) {
	data, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}

	var e idempotency.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode idempotency entry: %w", err)
	}
	if e.Expired(time.Now()) {
		return nil, nil
	}
	return &e, nil
}

func (r *IdempotencyRepository) Set(ctx context.Context, entry *idempotency.Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode idempotency entry: %w", err)
	}
	if err := r.client.Set(ctx, idempotencyKeyPrefix+entry.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}
