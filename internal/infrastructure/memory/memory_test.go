package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/idempotency"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadClear(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	ops, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Nil(t, s.Raw())

	op := operation.New(operation.Restock{ProductID: "p-1", Quantity: 2}, time.Now())
	require.NoError(t, s.Save(ctx, []*operation.Operation{op}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, op.ID, got[0].ID)

	// Loaded operations are copies.
	got[0].RetryCount = 2
	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].RetryCount)

	require.NoError(t, s.Clear(ctx))
	assert.Nil(t, s.Raw())
	assert.NoError(t, s.Ping(ctx))
}

func TestIdempotencyRepository_GetSet(t *testing.T) {
	r := NewIdempotencyRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	got, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.Set(ctx, &idempotency.Entry{
		Key:            "k1",
		ResponseBody:   `{"id":"x"}`,
		ResponseStatus: 202,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	}))

	got, err = r.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 202, got.ResponseStatus)
	assert.Equal(t, `{"id":"x"}`, got.ResponseBody)
}

func TestIdempotencyRepository_Expiry(t *testing.T) {
	r := NewIdempotencyRepository()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Set(ctx, &idempotency.Entry{Key: "k1", ResponseStatus: 202, ExpiresAt: now.Add(time.Minute)}))

	now = now.Add(2 * time.Minute)
	got, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
