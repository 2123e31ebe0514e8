// Package connectivity reports whether the commerce backend is reachable.
package connectivity

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Monitor is the reachability signal consumed by the offline queue.
// Subscribers may be notified without an actual transition.
type Monitor interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Broadcaster is a Monitor whose state is pushed by Set. Every call to Set
// notifies every subscriber, even when the state did not change.
type Broadcaster struct {
	online atomic.Bool

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(bool)
}

func NewBroadcaster(initial bool) *Broadcaster {
	b := &Broadcaster{subs: make(map[uint64]func(bool))}
	b.online.Store(initial)
	return b
}

func (b *Broadcaster) Online() bool {
	return b.online.Load()
}

func (b *Broadcaster) Subscribe(fn func(online bool)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Set records the new state and notifies subscribers in subscription order.
// Callbacks run on the caller's goroutine, outside the lock.
func (b *Broadcaster) Set(online bool) {
	b.online.Store(online)

	b.mu.Lock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(bool), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// SubscriberCount is exposed for diagnostics.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
