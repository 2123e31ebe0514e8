// Package memory is a process-local queue store. The queue is kept in its
// encoded form so it behaves like the durable stores (copies out, copies in).
package memory

import (
	"context"
	"sync"

	"github.com/cassiomorais/storesync/internal/domain/operation"
)

type Store struct {
	mu   sync.RWMutex
	data []byte
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Load(ctx context.Context) ([]*operation.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return operation.DecodeQueue(s.data)
}

func (s *Store) Save(ctx context.Context, ops []*operation.Operation) error {
	data, err := operation.EncodeQueue(ops)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

// Raw returns the encoded queue as last saved, nil when absent.
func (s *Store) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

func (s *Store) Ping(ctx context.Context) error { return nil }
