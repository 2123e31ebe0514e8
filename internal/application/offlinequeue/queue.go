// Package offlinequeue holds mutations made while the merchant is offline and
// replays them against the commerce backend once connectivity returns.
package offlinequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cassiomorais/storesync/internal/connectivity"
	domainErrors "github.com/cassiomorais/storesync/internal/domain/errors"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/cassiomorais/storesync/internal/infrastructure/observability"
	"github.com/cassiomorais/storesync/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result tallies one replay pass.
type Result struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// DeadLetterSink receives operations dropped after exhausting their retries.
type DeadLetterSink interface {
	PublishDeadLetter(ctx context.Context, op operation.Operation, reason string) error
}

var ErrAlreadyStarted = errors.New("offline queue already started")

// Queue is the durable operation queue. The in-memory slice mirrors the
// store: every enqueue and every completed pass rewrites the stored entry.
// At most one replay pass runs at a time.
type Queue struct {
	store   operation.Store
	exec    Executor
	monitor connectivity.Monitor

	logger       zerolog.Logger
	metrics      *observability.Metrics
	deadLetter   DeadLetterSink
	clock        Clock
	persistRetry retry.Config
	tracer       trace.Tracer
	callTimeout  time.Duration

	mu           sync.Mutex
	ops          []*operation.Operation
	generation   uint64 // bumped by Clear
	lastEnqueued time.Time
	started      bool
	ready        bool // set once Start has merged the persisted queue
	closed       bool

	// persistMu orders store writes so a stale snapshot never lands last.
	persistMu sync.Mutex

	processing atomic.Bool

	netMu      sync.Mutex
	lastOnline bool

	errs        chan error
	bg          sync.WaitGroup
	bgCtx       context.Context
	bgCancel    context.CancelFunc
	unsubscribe func()
}

func New(store operation.Store, exec Executor, monitor connectivity.Monitor, opts ...Option) *Queue {
	q := &Queue{
		store:   store,
		exec:    exec,
		monitor: monitor,
	}
	defaults(q)
	for _, o := range opts {
		o(q)
	}
	q.bgCtx, q.bgCancel = context.WithCancel(context.Background())
	return q
}

// Start rehydrates the queue from the store and subscribes to connectivity
// changes. A load failure leaves the queue empty and is reported on Errors.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return ErrAlreadyStarted
	}
	q.started = true
	q.mu.Unlock()

	loaded, err := retry.DoWithResult(ctx, q.persistRetry, func() ([]*operation.Operation, error) {
		return q.store.Load(ctx)
	})
	if err != nil {
		q.metrics.PersistenceErrors.WithLabelValues("load").Inc()
		q.logger.Error().Err(err).Msg("Failed to load persisted queue, starting empty")
		q.report(fmt.Errorf("%w: %v", domainErrors.ErrLoadFailed, err))
		loaded = nil
	}

	q.mu.Lock()
	early := q.ops
	q.ops = mergeEarly(loaded, early)
	q.ready = true
	if n := len(q.ops); n > 0 && q.ops[n-1].EnqueuedAt.After(q.lastEnqueued) {
		q.lastEnqueued = q.ops[n-1].EnqueuedAt
	}
	pending := len(q.ops)
	q.mu.Unlock()
	q.metrics.QueuePending.Set(float64(pending))

	// Enqueues before Start were held in memory only.
	if len(early) > 0 {
		if err := q.persist(context.WithoutCancel(ctx)); err != nil {
			q.persistFailed("start", err)
		}
	}

	// Subscribe before reading the state so a transition in between is not lost.
	q.unsubscribe = q.monitor.Subscribe(q.handleNetworkChange)
	q.netMu.Lock()
	online := q.monitor.Online()
	q.lastOnline = online
	q.netMu.Unlock()
	q.setOnlineGauge(online)

	q.logger.Info().
		Int("pending", pending).
		Bool("online", online).
		Msg("Offline queue started")

	if online && pending > 0 {
		q.triggerReplay("startup")
	}
	return nil
}

// mergeEarly appends operations enqueued before Start after the persisted
// ones, skipping ids already loaded and keeping timestamps non-decreasing.
func mergeEarly(loaded, early []*operation.Operation) []*operation.Operation {
	merged := make([]*operation.Operation, 0, len(loaded)+len(early))
	seen := make(map[uuid.UUID]bool, len(loaded)+len(early))
	var last time.Time
	for _, op := range loaded {
		if seen[op.ID] {
			continue
		}
		seen[op.ID] = true
		merged = append(merged, op)
		if op.EnqueuedAt.After(last) {
			last = op.EnqueuedAt
		}
	}
	for _, op := range early {
		if seen[op.ID] {
			continue
		}
		seen[op.ID] = true
		if op.EnqueuedAt.Before(last) {
			op.EnqueuedAt = last
		}
		last = op.EnqueuedAt
		merged = append(merged, op)
	}
	return merged
}

// Enqueue records a mutation and persists the queue before returning. It
// never fails: a persistence error is logged and published on Errors, and the
// operation stays in memory for the life of the process. When online a
// replay pass is started in the background. Before Start the operation is
// only held in memory; Start merges and persists it.
func (q *Queue) Enqueue(ctx context.Context, payload operation.Payload) uuid.UUID {
	q.mu.Lock()
	at := q.clock.Now().UTC()
	if at.Before(q.lastEnqueued) {
		at = q.lastEnqueued
	}
	q.lastEnqueued = at
	op := operation.New(payload, at)
	q.ops = append(q.ops, op)
	pending := len(q.ops)
	ready := q.ready
	q.mu.Unlock()

	q.metrics.OperationsEnqueued.WithLabelValues(string(op.Kind)).Inc()
	q.metrics.QueuePending.Set(float64(pending))
	q.logger.Info().
		Str("operation_id", op.ID.String()).
		Str("kind", string(op.Kind)).
		Int("pending", pending).
		Msg("Operation enqueued")

	if !ready {
		return op.ID
	}
	if err := q.persist(context.WithoutCancel(ctx)); err != nil {
		q.persistFailed("enqueue", err)
	}

	if q.monitor.Online() {
		q.triggerReplay("enqueue")
	}
	return op.ID
}

// Snapshot returns the pending operations, oldest first.
func (q *Queue) Snapshot() []operation.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]operation.Operation, len(q.ops))
	for i, op := range q.ops {
		out[i] = op.Clone()
	}
	return out
}

func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Processing reports whether a replay pass is in flight.
func (q *Queue) Processing() bool {
	return q.processing.Load()
}

// Process runs one replay pass over the operations pending when it starts.
// It returns {0,0} without touching the queue when a pass is already running
// or the monitor reports offline. Operations enqueued during the pass are
// kept after the survivors and wait for the next pass.
func (q *Queue) Process(ctx context.Context) Result {
	if !q.processing.CompareAndSwap(false, true) {
		q.metrics.ReplayPasses.WithLabelValues("skipped_busy").Inc()
		q.logger.Debug().Msg("Replay pass already running, skipping")
		return Result{}
	}
	defer q.processing.Store(false)

	q.mu.Lock()
	ready := q.ready
	q.mu.Unlock()
	if !ready {
		q.metrics.ReplayPasses.WithLabelValues("skipped_not_started").Inc()
		q.logger.Debug().Msg("Queue not started, skipping replay pass")
		return Result{}
	}

	if !q.monitor.Online() {
		q.metrics.ReplayPasses.WithLabelValues("skipped_offline").Inc()
		q.logger.Debug().Msg("Offline, skipping replay pass")
		return Result{}
	}

	q.mu.Lock()
	gen := q.generation
	batch := make([]*operation.Operation, len(q.ops))
	for i, op := range q.ops {
		c := op.Clone()
		batch[i] = &c
	}
	q.mu.Unlock()

	if len(batch) == 0 {
		q.metrics.ReplayPasses.WithLabelValues("empty").Inc()
		return Result{}
	}

	ctx, span := q.tracer.Start(ctx, "offlinequeue.Process",
		trace.WithAttributes(attribute.Int("queue.batch_size", len(batch))))
	defer span.End()

	start := time.Now()
	q.logger.Info().Int("batch", len(batch)).Msg("Replay pass started")

	var (
		res      Result
		retained = make([]*operation.Operation, 0, len(batch))
		dropped  []*operation.Operation
		reasons  []error
	)
	shortCircuited := false
	for i, op := range batch {
		err := q.execute(ctx, op)
		if errors.Is(err, domainErrors.ErrCircuitOpen) {
			// No request reached the backend, so no attempt is spent. The rest
			// of the batch would be refused the same way.
			shortCircuited = true
			retained = append(retained, batch[i:]...)
			q.logger.Warn().Err(err).
				Int("remaining", len(batch)-i).
				Msg("Backend circuit open, ending replay pass early")
			break
		}
		if err == nil {
			res.Succeeded++
			q.metrics.OperationsReplayed.WithLabelValues(string(op.Kind), "success").Inc()
			q.logger.Info().
				Str("operation_id", op.ID.String()).
				Str("kind", string(op.Kind)).
				Int("retry_count", op.RetryCount).
				Msg("Operation replayed")
			continue
		}

		q.metrics.OperationsReplayed.WithLabelValues(string(op.Kind), "failure").Inc()
		if op.RecordFailure() {
			res.Failed++
			dropped = append(dropped, op)
			reasons = append(reasons, err)
			q.metrics.OperationsDropped.WithLabelValues(string(op.Kind)).Inc()
			q.logger.Error().Err(err).
				Str("operation_id", op.ID.String()).
				Str("kind", string(op.Kind)).
				Int("retry_count", op.RetryCount).
				Msg("Operation dropped after exhausting retries")
			continue
		}
		retained = append(retained, op)
		q.logger.Warn().Err(err).
			Str("operation_id", op.ID.String()).
			Str("kind", string(op.Kind)).
			Int("retry_count", op.RetryCount).
			Msg("Operation replay failed, will retry")
	}

	q.mu.Lock()
	cleared := q.generation != gen
	if !cleared {
		q.ops = append(retained, q.ops[len(batch):]...)
	}
	pending := len(q.ops)
	q.mu.Unlock()
	q.metrics.QueuePending.Set(float64(pending))

	if err := q.persist(context.WithoutCancel(ctx)); err != nil {
		q.persistFailed("replay", err)
		span.RecordError(err)
	}

	for i, op := range dropped {
		q.publishDeadLetter(ctx, op, reasons[i])
	}

	outcome := "completed"
	switch {
	case cleared:
		outcome = "cleared"
	case shortCircuited:
		outcome = "circuit_open"
	}
	q.metrics.ReplayPasses.WithLabelValues(outcome).Inc()
	q.metrics.ReplayDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("queue.succeeded", res.Succeeded),
		attribute.Int("queue.failed", res.Failed),
		attribute.Int("queue.pending", pending),
	)
	if res.Failed > 0 {
		span.SetStatus(codes.Error, "operations dropped")
	}

	q.logger.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("pending", pending).
		Dur("duration", time.Since(start)).
		Msg("Replay pass finished")
	return res
}

// Clear discards every pending operation in memory and in the store. A pass
// running concurrently finishes its calls but its survivors are discarded.
func (q *Queue) Clear(ctx context.Context) error {
	// Holding persistMu across the reset and the store write keeps an
	// enqueue from saving in between and then being wiped from the store.
	q.persistMu.Lock()
	q.mu.Lock()
	discarded := len(q.ops)
	q.ops = nil
	q.generation++
	q.mu.Unlock()
	q.metrics.QueuePending.Set(0)

	err := retry.Do(ctx, q.persistRetry, func() error { return q.store.Clear(ctx) })
	q.persistMu.Unlock()
	if err != nil {
		q.persistFailed("clear", err)
		return fmt.Errorf("%w: %v", domainErrors.ErrPersistFailed, err)
	}

	q.logger.Warn().Int("discarded", discarded).Msg("Offline queue cleared")
	return nil
}

// OnNetworkChange forwards every connectivity notification to fn.
func (q *Queue) OnNetworkChange(fn func(online bool)) (unsubscribe func()) {
	return q.monitor.Subscribe(fn)
}

// Errors delivers persistence and dead-letter failures. Sends never block;
// errors are dropped when the buffer is full.
func (q *Queue) Errors() <-chan error {
	return q.errs
}

// Wait blocks until every background replay pass has returned.
func (q *Queue) Wait() {
	q.bg.Wait()
}

// Close stops reacting to connectivity changes and waits for background
// passes to finish. Enqueue keeps working but no longer triggers replay.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	if q.unsubscribe != nil {
		q.unsubscribe()
	}
	q.bg.Wait()
	q.bgCancel()
}

func (q *Queue) handleNetworkChange(online bool) {
	q.netMu.Lock()
	was := q.lastOnline
	q.lastOnline = online
	q.netMu.Unlock()

	q.setOnlineGauge(online)
	if online == was {
		return
	}
	q.logger.Info().Bool("online", online).Msg("Connectivity changed")
	if online {
		q.triggerReplay("reconnect")
	}
}

// triggerReplay runs Process on a tracked goroutine. Panics are recovered
// and logged so a failing pass never takes the process down.
func (q *Queue) triggerReplay(reason string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.bg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				q.logger.Error().Interface("panic", r).Str("trigger", reason).Msg("Replay pass panicked")
			}
		}()
		res := q.Process(q.bgCtx)
		q.logger.Debug().
			Str("trigger", reason).
			Int("succeeded", res.Succeeded).
			Int("failed", res.Failed).
			Msg("Background replay returned")
	}()
}

func (q *Queue) execute(ctx context.Context, op *operation.Operation) (err error) {
	ctx, cancel := context.WithTimeout(ctx, q.callTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return q.exec.Execute(ctx, op)
}

func (q *Queue) persist(ctx context.Context) error {
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	q.mu.Lock()
	snapshot := make([]*operation.Operation, len(q.ops))
	for i, op := range q.ops {
		c := op.Clone()
		snapshot[i] = &c
	}
	q.mu.Unlock()

	return retry.Do(ctx, q.persistRetry, func() error {
		return q.store.Save(ctx, snapshot)
	})
}

func (q *Queue) persistFailed(op string, err error) {
	q.metrics.PersistenceErrors.WithLabelValues(op).Inc()
	q.logger.Error().Err(err).Str("op", op).Msg("Failed to persist offline queue")
	q.report(fmt.Errorf("%w (%s): %v", domainErrors.ErrPersistFailed, op, err))
}

func (q *Queue) publishDeadLetter(ctx context.Context, op *operation.Operation, reason error) {
	if q.deadLetter == nil {
		return
	}
	if err := q.deadLetter.PublishDeadLetter(ctx, op.Clone(), reason.Error()); err != nil {
		q.metrics.DeadLetterErrors.Inc()
		q.logger.Error().Err(err).Str("operation_id", op.ID.String()).Msg("Failed to publish dead letter")
		q.report(fmt.Errorf("%w: %v", domainErrors.ErrDeadLetterFail, err))
	}
}

func (q *Queue) report(err error) {
	select {
	case q.errs <- err:
	default:
	}
}

func (q *Queue) setOnlineGauge(online bool) {
	v := 0.0
	if online {
		v = 1
	}
	q.metrics.ConnectivityOnline.Set(v)
}
