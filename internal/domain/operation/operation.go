package operation

import (
	"time"

	"github.com/google/uuid"
)

// MaxRetries is the number of failed execution attempts tolerated before an
// operation is dropped from the queue.
const MaxRetries = 3

// Kind is the closed set of remote mutations the queue can replay.
type Kind string

const (
	KindCreateProduct Kind = "create_product"
	KindUpdateProduct Kind = "update_product"
	KindRestock       Kind = "restock"
	KindCreateOrder   Kind = "create_order"
	KindLogExpense    Kind = "log_expense"
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{
	KindCreateProduct,
	KindUpdateProduct,
	KindRestock,
	KindCreateOrder,
	KindLogExpense,
}

func (k Kind) Valid() bool {
	switch k {
	case KindCreateProduct, KindUpdateProduct, KindRestock, KindCreateOrder, KindLogExpense:
		return true
	}
	return false
}

// Operation is a durable record of one pending remote mutation.
type Operation struct {
	ID         uuid.UUID
	Kind       Kind
	Payload    Payload
	EnqueuedAt time.Time
	RetryCount int
}

// New builds a pending operation for payload. The kind is taken from the payload.
func New(payload Payload, enqueuedAt time.Time) *Operation {
	return &Operation{
		ID:         uuid.New(),
		Kind:       payload.Kind(),
		Payload:    payload,
		EnqueuedAt: enqueuedAt,
		RetryCount: 0,
	}
}

// RecordFailure increments the retry counter and reports whether the
// operation has exhausted its retry budget.
func (o *Operation) RecordFailure() (exhausted bool) {
	o.RetryCount++
	return o.RetryCount >= MaxRetries
}

// Clone returns a copy that can be handed to callers without sharing the
// retry counter. Payloads are treated as immutable values.
func (o *Operation) Clone() Operation {
	return *o
}
