package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_InitialState(t *testing.T) {
	assert.True(t, NewBroadcaster(true).Online())
	assert.False(t, NewBroadcaster(false).Online())
}

func TestBroadcaster_NotifiesEverySet(t *testing.T) {
	b := NewBroadcaster(false)

	var got []bool
	b.Subscribe(func(online bool) { got = append(got, online) })

	b.Set(true)
	b.Set(true) // spurious, still delivered
	b.Set(false)

	assert.Equal(t, []bool{true, true, false}, got)
	assert.False(t, b.Online())
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(false)

	var calls int
	unsubscribe := b.Subscribe(func(bool) { calls++ })
	require.Equal(t, 1, b.SubscriberCount())

	b.Set(true)
	unsubscribe()
	unsubscribe() // idempotent
	b.Set(false)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcaster_SubscriptionOrder(t *testing.T) {
	b := NewBroadcaster(false)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe(func(bool) { order = append(order, i) })
	}
	b.Set(true)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBroadcaster_SubscribeFromCallback(t *testing.T) {
	b := NewBroadcaster(false)

	// Callbacks run outside the lock, so re-entrant subscription must not deadlock.
	b.Subscribe(func(bool) {
		b.Subscribe(func(bool) {})
	})
	b.Set(true)

	assert.Equal(t, 2, b.SubscriberCount())
}

func TestBroadcaster_ConcurrentSet(t *testing.T) {
	b := NewBroadcaster(false)
	var calls atomic.Int64
	b.Subscribe(func(bool) { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Set(i%2 == 0)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(50), calls.Load())
}

func TestProber_Probe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"healthy", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"server error", http.StatusServiceUnavailable, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewProber(NewBroadcaster(false), srv.Client(), srv.URL+"/health", time.Second, time.Second, zerolog.Nop())
			assert.Equal(t, tt.want, p.Probe(context.Background()))
		})
	}
}

func TestProber_ProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProber(NewBroadcaster(true), nil, url, time.Second, 200*time.Millisecond, zerolog.Nop())
	assert.False(t, p.Probe(context.Background()))
}

func TestProber_RunPublishesTransitions(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewBroadcaster(false)
	var mu sync.Mutex
	var seen []bool
	b.Subscribe(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProber(b, srv.Client(), srv.URL, 10*time.Millisecond, time.Second, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	healthy.Store(true)
	require.Eventually(t, b.Online, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, seen)
}
