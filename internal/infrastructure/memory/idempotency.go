package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/idempotency"
)

// IdempotencyRepository keeps replies in a map. Expired entries are dropped
// lazily on read and on every Set.
type IdempotencyRepository struct {
	mu      sync.Mutex
	entries map[string]idempotency.Entry
	now     func() time.Time
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{entries: make(map[string]idempotency.Entry), now: time.Now}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	if e.Expired(r.now()) {
		delete(r.entries, key)
		return nil, nil
	}
	return &e, nil
}

func (r *IdempotencyRepository) Set(ctx context.Context, entry *idempotency.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, e := range r.entries {
		if e.Expired(now) {
			delete(r.entries, k)
		}
	}
	r.entries[entry.Key] = *entry
	return nil
}
