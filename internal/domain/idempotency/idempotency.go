// Package idempotency describes stored replies to client requests that
// carried an Idempotency-Key header.
package idempotency

import (
	"context"
	"time"
)

// TTL is how long a stored reply is replayed.
const TTL = 24 * time.Hour

type Entry struct {
	Key            string    `json:"key"`
	RequestHash    string    `json:"request_hash"`
	ResponseBody   string    `json:"response_body"`
	ResponseStatus int       `json:"response_status"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Matches reports whether a retried request carries the same fingerprint as
// the one that produced the stored reply. Entries written without a
// fingerprint match anything.
func (e *Entry) Matches(requestHash string) bool {
	return e.RequestHash == "" || e.RequestHash == requestHash
}

// Repository stores replies by key. Get returns nil, nil for a missing or
// expired key.
type Repository interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
}
