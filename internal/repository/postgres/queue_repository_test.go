package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/idempotency"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const migrationsPath = "file://../../infrastructure/postgres/migrations"

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storesync"),
		tcpostgres.WithUsername("storesync"),
		tcpostgres.WithPassword("storesync"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New(migrationsPath, dsn)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	m.Close()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestQueueRepository_Integration(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("missing row is empty", func(t *testing.T) {
		repo := NewQueueRepository(pool, "empty_queue", "agent-1")
		ops, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("save then load keeps order and retries", func(t *testing.T) {
		repo := NewQueueRepository(pool, "shop_a", "agent-1")
		first := operation.New(operation.CreateProduct{Name: "Garri", PriceNGN: 1500, StockLevel: 4}, at)
		second := operation.New(operation.Restock{ProductID: "p-1", Quantity: 6}, at.Add(time.Second))
		second.RetryCount = 1

		require.NoError(t, repo.Save(ctx, []*operation.Operation{first, second}))

		ops, err := repo.Load(ctx)
		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, first.ID, ops[0].ID)
		assert.Equal(t, second.ID, ops[1].ID)
		assert.Equal(t, 1, ops[1].RetryCount)
		assert.Equal(t, operation.Restock{ProductID: "p-1", Quantity: 6}, ops[1].Payload)
	})

	t.Run("save replaces wholesale", func(t *testing.T) {
		repo := NewQueueRepository(pool, "shop_b", "agent-1")
		a := operation.New(operation.Restock{ProductID: "a", Quantity: 1}, at)
		b := operation.New(operation.Restock{ProductID: "b", Quantity: 1}, at)

		require.NoError(t, repo.Save(ctx, []*operation.Operation{a, b}))
		require.NoError(t, repo.Save(ctx, []*operation.Operation{b}))

		ops, err := repo.Load(ctx)
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, b.ID, ops[0].ID)

		var owner string
		require.NoError(t, pool.QueryRow(ctx, `SELECT updated_by FROM offline_queue WHERE queue_key = $1`, "shop_b").Scan(&owner))
		assert.Equal(t, "agent-1", owner)
	})

	t.Run("clear", func(t *testing.T) {
		repo := NewQueueRepository(pool, "shop_c", "agent-1")
		require.NoError(t, repo.Save(ctx, []*operation.Operation{
			operation.New(operation.LogExpense{Amount: 100, Description: "water"}, at),
		}))
		require.NoError(t, repo.Clear(ctx))

		ops, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, ops)
		assert.NoError(t, repo.Ping(ctx))
	})
}

func TestIdempotencyRepository_Integration(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	repo := NewIdempotencyRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	got, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Set(ctx, &idempotency.Entry{
		Key:            "live",
		ResponseBody:   `{"id":"abc"}`,
		ResponseStatus: 202,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	}))
	require.NoError(t, repo.Set(ctx, &idempotency.Entry{
		Key:            "stale",
		ResponseBody:   `{}`,
		ResponseStatus: 202,
		CreatedAt:      now.Add(-2 * time.Hour),
		ExpiresAt:      now.Add(-time.Hour),
	}))

	got, err = repo.Get(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"id":"abc"}`, got.ResponseBody)
	assert.True(t, now.Add(time.Hour).Equal(got.ExpiresAt))

	got, err = repo.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err := repo.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
