package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the common query interface satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QueueRepository stores the queue as one JSONB row per queue key. The
// upsert is a single statement, so a reader sees either the old or the new
// queue.
type QueueRepository struct {
	db    DBTX
	key   string
	owner string
}

func NewQueueRepository(db DBTX, key, owner string) *QueueRepository {
	return &QueueRepository{db: db, key: key, owner: owner}
}

func (r *QueueRepository) Load(ctx context.Context) ([]*operation.Operation, error) {
	query := `SELECT operations FROM offline_queue WHERE queue_key = $1`

	var data []byte
	err := r.db.QueryRow(ctx, query, r.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue %q: %w", r.key, err)
	}
	return operation.DecodeQueue(data)
}

func (r *QueueRepository) Save(ctx context.Context, ops []*operation.Operation) error {
	data, err := operation.EncodeQueue(ops)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO offline_queue (queue_key, operations, updated_at, updated_by)
		VALUES ($1, $2, NOW(), $3)
		ON CONFLICT (queue_key) DO UPDATE
		SET operations = EXCLUDED.operations,
		    updated_at = EXCLUDED.updated_at,
		    updated_by = EXCLUDED.updated_by`

	if _, err := r.db.Exec(ctx, query, r.key, data, r.owner); err != nil {
		return fmt.Errorf("save queue %q: %w", r.key, err)
	}
	return nil
}

func (r *QueueRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM offline_queue WHERE queue_key = $1`, r.key); err != nil {
		return fmt.Errorf("clear queue %q: %w", r.key, err)
	}
	return nil
}

func (r *QueueRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
