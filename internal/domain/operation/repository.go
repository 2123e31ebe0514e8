package operation

import "context"

// Store persists the whole queue as a single entry under a stable key.
type Store interface {
	// Load returns the persisted queue, oldest first. A missing entry is an empty queue.
	Load(ctx context.Context) ([]*Operation, error)

	// Save replaces the persisted queue wholesale. Implementations must make
	// the write atomic so a concurrent Load never observes a partial queue.
	Save(ctx context.Context, ops []*Operation) error

	// Clear removes the persisted entry.
	Clear(ctx context.Context) error
}
