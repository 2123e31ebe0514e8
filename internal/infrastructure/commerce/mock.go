package commerce

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
)

// Call is one request the MockBackend received.
type Call struct {
	Kind    operation.Kind
	Payload operation.Payload
	At      time.Time
}

// MockBackend is an in-process Backend used for demo mode and tests.
// Failures can be random (failureRate) or scripted per kind with FailNext.
type MockBackend struct {
	mu          sync.Mutex
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	scripted    map[operation.Kind][]error
	calls       []Call
}

type MockOption func(*MockBackend)

func WithFailureRate(rate float64) MockOption {
	return func(m *MockBackend) { m.failureRate = rate }
}

func WithLatency(d time.Duration) MockOption {
	return func(m *MockBackend) { m.latency = d }
}

func NewMockBackend(opts ...MockOption) *MockBackend {
	m := &MockBackend{
		scripted: make(map[operation.Kind][]error),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// FailNext makes the next len(errs) calls of kind return errs in order.
func (m *MockBackend) FailNext(kind operation.Kind, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted[kind] = append(m.scripted[kind], errs...)
}

// Calls returns every request received so far, oldest first.
func (m *MockBackend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockBackend) CallCount(kind operation.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (m *MockBackend) CreateProduct(ctx context.Context, p operation.CreateProduct) error {
	return m.handle(ctx, p)
}

func (m *MockBackend) UpdateProduct(ctx context.Context, p operation.UpdateProduct) error {
	return m.handle(ctx, p)
}

func (m *MockBackend) Restock(ctx context.Context, p operation.Restock) error {
	return m.handle(ctx, p)
}

func (m *MockBackend) CreateOrder(ctx context.Context, p operation.CreateOrder) error {
	return m.handle(ctx, p)
}

func (m *MockBackend) LogExpense(ctx context.Context, p operation.LogExpense) error {
	return m.handle(ctx, p)
}

func (m *MockBackend) handle(ctx context.Context, p operation.Payload) error {
	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domainErrors.ErrBackendTimeout, ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kind := p.Kind()
	m.calls = append(m.calls, Call{Kind: kind, Payload: p, At: time.Now()})

	if queue := m.scripted[kind]; len(queue) > 0 {
		err := queue[0]
		m.scripted[kind] = queue[1:]
		return err
	}

	if m.failureRate > 0 && rand.Float64() < m.failureRate {
		return fmt.Errorf("%w: simulated %s failure", domainErrors.ErrBackendUnavailable, kind)
	}
	return nil
}
