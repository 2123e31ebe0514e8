package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// Lua script for safe release (only the holder can release)
	releaseLeaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	// Lua script for lease extension
	extendLeaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// QueueLease makes one agent process the owner of a queue key. Two agents
// replaying the same stored queue would break the single-pass guarantee.
type QueueLease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	mu   sync.Mutex
	held bool
}

// NewQueueLease prepares a lease on queueKey. owner is stored as part of the
// token so operators can see which instance holds it.
func NewQueueLease(client *redis.Client, queueKey, owner string, ttl time.Duration) *QueueLease {
	return &QueueLease{
		client: client,
		key:    fmt.Sprintf("lock:%s", queueKey),
		token:  fmt.Sprintf("%s/%s", owner, uuid.New().String()),
		ttl:    ttl,
	}
}

// Acquire takes the lease or returns ErrQueueOwned when another agent holds it.
func (l *QueueLease) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if !ok {
		holder, _ := l.client.Get(ctx, l.key).Result()
		return fmt.Errorf("%w: %s held by %q", domainErrors.ErrQueueOwned, l.key, holder)
	}

	l.mu.Lock()
	l.held = true
	l.mu.Unlock()
	return nil
}

// Extend pushes the expiry out by one TTL. ErrLeaseLost means another
// agent took over after the lease expired.
func (l *QueueLease) Extend(ctx context.Context) error {
	if !l.Held() {
		return fmt.Errorf("%w: not acquired", domainErrors.ErrLeaseLost)
	}

	result, err := extendLeaseScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lease %s: %w", l.key, err)
	}
	if val, ok := result.(int64); !ok || val == 0 {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", domainErrors.ErrLeaseLost, l.key)
	}
	return nil
}

// KeepAlive extends the lease every third of its TTL until ctx is done. It
// returns ErrLeaseLost as soon as ownership is gone; transient Redis errors
// are logged and retried on the next tick.
func (l *QueueLease) KeepAlive(ctx context.Context, logger zerolog.Logger) error {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := l.Extend(ctx)
			if err == nil {
				continue
			}
			if !l.Held() {
				return err
			}
			logger.Warn().Err(err).Str("lease", l.key).Msg("Failed to extend queue lease")
		}
	}
}

// Release gives the lease up if this agent still holds it.
func (l *QueueLease) Release(ctx context.Context) error {
	if !l.Held() {
		return nil
	}

	result, err := releaseLeaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}

	l.mu.Lock()
	l.held = false
	l.mu.Unlock()

	if val, ok := result.(int64); !ok || val == 0 {
		return fmt.Errorf("%w: %s already expired", domainErrors.ErrLeaseLost, l.key)
	}
	return nil
}

func (l *QueueLease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *QueueLease) Token() string { return l.token }
