// Package commerce talks to the merchant commerce REST backend.
package commerce

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
)

// Backend is the set of remote mutations the offline queue can replay.
type Backend interface {
	CreateProduct(ctx context.Context, p operation.CreateProduct) error
	UpdateProduct(ctx context.Context, p operation.UpdateProduct) error
	Restock(ctx context.Context, p operation.Restock) error
	CreateOrder(ctx context.Context, p operation.CreateOrder) error
	LogExpense(ctx context.Context, p operation.LogExpense) error
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return domainErrors.ErrBackendRejected
}

// ServerSide reports whether the failure was the backend's fault (5xx).
func (e *StatusError) ServerSide() bool {
	return e.Status >= 500
}

type idempotencyKey struct{}

// WithIdempotencyKey attaches a key sent as the Idempotency-Key header, so a
// replay the backend already applied can be recognised.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func idempotencyKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey{}).(string)
	return key, ok && key != ""
}
