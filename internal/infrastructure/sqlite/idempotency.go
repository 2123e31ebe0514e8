package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/idempotency"
)

// IdempotencyRepository stores replies in the idempotency_keys table of the
// device database. Timestamps are unix milliseconds.
type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Entry, error) {
	var (
		e                    idempotency.Entry
		createdAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT key, request_hash, response_body, response_status, created_at, expires_at
		 FROM idempotency_keys WHERE key = ? AND expires_at > ?`,
		key, time.Now().UnixMilli(),
	).Scan(&e.Key, &e.RequestHash, &e.ResponseBody, &e.ResponseStatus, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &e, nil
}

func (r *IdempotencyRepository) Set(ctx context.Context, entry *idempotency.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, response_body, response_status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET response_body = excluded.response_body, response_status = excluded.response_status`,
		entry.Key, entry.RequestHash, entry.ResponseBody, entry.ResponseStatus,
		entry.CreatedAt.UnixMilli(), entry.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

// Cleanup deletes expired replies and reports how many were removed.
func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return res.RowsAffected()
}
