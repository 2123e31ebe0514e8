package offlinequeue

import (
	"time"

	"github.com/cassiomorais/storesync/internal/infrastructure/observability"
	"github.com/cassiomorais/storesync/pkg/retry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	DefaultCallTimeout = 15 * time.Second
	defaultErrorBuffer = 16
)

// Clock is the time source for enqueue timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Option func(*Queue)

func WithLogger(logger zerolog.Logger) Option {
	return func(q *Queue) { q.logger = observability.ForComponent(logger, "offlinequeue") }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithDeadLetter publishes every operation dropped after exhausting its
// retries to sink.
func WithDeadLetter(sink DeadLetterSink) Option {
	return func(q *Queue) { q.deadLetter = sink }
}

func WithClock(c Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithPersistRetry sets the backoff applied to every store write.
func WithPersistRetry(cfg retry.Config) Option {
	return func(q *Queue) { q.persistRetry = cfg }
}

func WithTracer(t trace.Tracer) Option {
	return func(q *Queue) { q.tracer = t }
}

// WithCallTimeout bounds each remote call made during a replay pass.
func WithCallTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.callTimeout = d
		}
	}
}

// WithErrorBuffer sizes the channel returned by Errors.
func WithErrorBuffer(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.errs = make(chan error, n)
		}
	}
}

func defaults(q *Queue) {
	q.logger = zerolog.Nop()
	q.metrics = observability.NewNopMetrics()
	q.clock = systemClock{}
	q.persistRetry = retry.PersistConfig()
	q.tracer = noop.NewTracerProvider().Tracer(observability.TracerName)
	q.callTimeout = DefaultCallTimeout
	q.errs = make(chan error, defaultErrorBuffer)
}
