package offlinequeue

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/cassiomorais/storesync/internal/infrastructure/commerce"
)

// Executor performs the remote call an operation stands for.
type Executor interface {
	Execute(ctx context.Context, op *operation.Operation) error
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, op *operation.Operation) error

func (f ExecutorFunc) Execute(ctx context.Context, op *operation.Operation) error {
	return f(ctx, op)
}

// Dispatcher executes operations against the commerce backend.
type Dispatcher struct {
	backend commerce.Backend
}

func NewDispatcher(backend commerce.Backend) *Dispatcher {
	return &Dispatcher{backend: backend}
}

func (d *Dispatcher) Execute(ctx context.Context, op *operation.Operation) error {
	ctx = commerce.WithIdempotencyKey(ctx, op.ID.String())

	switch p := op.Payload.(type) {
	case operation.CreateProduct:
		return d.backend.CreateProduct(ctx, p)
	case operation.UpdateProduct:
		return d.backend.UpdateProduct(ctx, p)
	case operation.Restock:
		return d.backend.Restock(ctx, p)
	case operation.CreateOrder:
		return d.backend.CreateOrder(ctx, p)
	case operation.LogExpense:
		// An expense logged offline is dated when it was recorded, not when it syncs.
		if p.Date == nil {
			at := op.EnqueuedAt
			p.Date = &at
		}
		return d.backend.LogExpense(ctx, p)
	case operation.Unknown:
		return fmt.Errorf("%w: %q", domainErrors.ErrUnknownOperation, p.RawKind)
	default:
		return fmt.Errorf("%w: %q", domainErrors.ErrUnknownOperation, op.Kind)
	}
}
