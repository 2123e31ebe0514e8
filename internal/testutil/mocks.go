package testutil

import (
	"context"
	"sync"

	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/cassiomorais/storesync/internal/infrastructure/memory"
)

// --- Queue Store Mock ---

// MockStore is an in-memory operation.Store whose calls can be overridden
// per test through the *Func fields.
type MockStore struct {
	*memory.Store

	mu    sync.Mutex
	saves int
	loads int

	LoadFunc  func(ctx context.Context) ([]*operation.Operation, error)
	SaveFunc  func(ctx context.Context, ops []*operation.Operation) error
	ClearFunc func(ctx context.Context) error
}

func NewMockStore() *MockStore {
	return &MockStore{Store: memory.NewStore()}
}

// NewMockStoreWith returns a store already holding ops.
func NewMockStoreWith(ops ...*operation.Operation) *MockStore {
	s := NewMockStore()
	_ = s.Store.Save(context.Background(), ops)
	return s
}

func (m *MockStore) Load(ctx context.Context) ([]*operation.Operation, error) {
	m.mu.Lock()
	m.loads++
	m.mu.Unlock()
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return m.Store.Load(ctx)
}

func (m *MockStore) Save(ctx context.Context, ops []*operation.Operation) error {
	m.mu.Lock()
	m.saves++
	m.mu.Unlock()
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, ops)
	}
	return m.Store.Save(ctx, ops)
}

func (m *MockStore) Clear(ctx context.Context) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx)
	}
	return m.Store.Clear(ctx)
}

// Persisted decodes what is currently stored.
func (m *MockStore) Persisted() []*operation.Operation {
	ops, _ := m.Store.Load(context.Background())
	return ops
}

func (m *MockStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MockStore) LoadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// --- Executor Mock ---

// MockExecutor records every executed operation. ExecuteFunc decides the
// outcome; nil means every call succeeds.
type MockExecutor struct {
	mu    sync.Mutex
	calls []operation.Operation

	ExecuteFunc func(ctx context.Context, op *operation.Operation) error
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

func (m *MockExecutor) Execute(ctx context.Context, op *operation.Operation) error {
	m.mu.Lock()
	m.calls = append(m.calls, op.Clone())
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, op)
	}
	return nil
}

func (m *MockExecutor) Calls() []operation.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]operation.Operation, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- Dead Letter Mock ---

type DeadLetter struct {
	Operation operation.Operation
	Reason    string
}

type MockDeadLetterSink struct {
	mu      sync.Mutex
	letters []DeadLetter

	PublishFunc func(ctx context.Context, op operation.Operation, reason string) error
}

func NewMockDeadLetterSink() *MockDeadLetterSink {
	return &MockDeadLetterSink{}
}

func (m *MockDeadLetterSink) PublishDeadLetter(ctx context.Context, op operation.Operation, reason string) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, op, reason); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, DeadLetter{Operation: op, Reason: reason})
	return nil
}

func (m *MockDeadLetterSink) Letters() []DeadLetter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeadLetter, len(m.letters))
	copy(out, m.letters)
	return out
}
