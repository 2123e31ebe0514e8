package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// OnRetry is called after every failed attempt that will be retried.
	OnRetry func(attempt uint, err error)
}

// ConnectConfig is used when dialing infrastructure at startup.
func ConnectConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
	}
}

// PersistConfig is used for queue writes, which happen on the caller's path
// and must stay short.
func PersistConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
	}
}

// Do executes fn with exponential backoff until it succeeds, the attempts are
// used up or ctx is done. Only the last error is returned.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.InitialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if cfg.MaxDelay > 0 {
		opts = append(opts, retry.MaxDelay(cfg.MaxDelay))
	}
	if cfg.OnRetry != nil {
		opts = append(opts, retry.OnRetry(retry.OnRetryFunc(cfg.OnRetry)))
	}
	return retry.Do(fn, opts...)
}

// DoWithResult executes a function with exponential backoff retry and returns a result
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
