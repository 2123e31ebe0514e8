package testutil

import (
	"sync"
	"time"

	"github.com/cassiomorais/storesync/internal/domain/operation"
)

func NewTestExpense(amount float64, description string) operation.LogExpense {
	return operation.LogExpense{
		Amount:      amount,
		Description: description,
		Category:    "operations",
		ExpenseType: operation.ExpenseTypeBusiness,
	}
}

func NewTestProduct(name string, priceNGN float64, stock int) operation.CreateProduct {
	return operation.CreateProduct{
		Name:       name,
		PriceNGN:   priceNGN,
		StockLevel: stock,
		Category:   "groceries",
	}
}

func NewTestRestock(productID string, quantity int) operation.Restock {
	return operation.Restock{ProductID: productID, Quantity: quantity}
}

func NewTestOrder(userID string, items ...operation.OrderItem) operation.CreateOrder {
	return operation.CreateOrder{UserID: userID, Items: items}
}

// NewTestOperation builds a stored operation with the given retry count.
func NewTestOperation(payload operation.Payload, enqueuedAt time.Time, retryCount int) *operation.Operation {
	op := operation.New(payload, enqueuedAt)
	op.RetryCount = retryCount
	return op
}

// FakeClock is a Clock whose time only moves when told to.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
