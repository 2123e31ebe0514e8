package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cassiomorais/storesync/internal/application/offlinequeue"
	"github.com/cassiomorais/storesync/internal/connectivity"
	"github.com/cassiomorais/storesync/internal/domain/idempotency"
	"github.com/cassiomorais/storesync/internal/domain/operation"
	"github.com/cassiomorais/storesync/internal/infrastructure/commerce"
	"github.com/cassiomorais/storesync/internal/infrastructure/config"
	"github.com/cassiomorais/storesync/internal/infrastructure/memory"
	"github.com/cassiomorais/storesync/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/storesync/internal/infrastructure/redis"
	"github.com/cassiomorais/storesync/internal/infrastructure/sqlite"
	"github.com/cassiomorais/storesync/internal/repository/postgres"
	"github.com/cassiomorais/storesync/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// QueueStore is a queue store whose backing service can be health-checked.
type QueueStore interface {
	operation.Store
	Ping(ctx context.Context) error
}

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	Store       QueueStore
	Backend     commerce.Backend
	Monitor     *connectivity.Broadcaster
	Prober      *connectivity.Prober         // nil in manual connectivity mode
	Lease       *infraRedis.QueueLease       // nil unless storage is redis
	DeadLetters *infraRedis.DeadLetterStream // nil unless configured
	Idempotency idempotency.Repository
	Queue       *offlinequeue.Queue

	closers []func()
}

// Options overrides process-wide defaults, mostly for tests.
type Options struct {
	Registerer prometheus.Registerer
	LogOutput  io.Writer
}

func New(ctx context.Context, serviceName string, metricsNamespace string, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if opts.LogOutput == nil {
		opts.LogOutput = os.Stdout
	}
	logger := observability.WithContext(
		observability.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, opts.LogOutput),
		map[string]any{"instance_id": cfg.InstanceID, "queue_key": cfg.Queue.Key},
	)
	logger.Info().Str("service", serviceName).Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.closers = append(app.closers, func() { observability.Shutdown(context.Background(), tp) })
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Metrics = observability.NewMetrics(metricsNamespace, opts.Registerer)

	var redisClient *redis.Client
	if cfg.Storage.Driver == config.DriverRedis || cfg.Queue.DeadLetterStream != "" {
		redisClient, err = infraRedis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		app.closers = append(app.closers, func() { redisClient.Close() })
		logger.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Connected to Redis")
	}

	if err := app.openStore(ctx, redisClient); err != nil {
		app.Close()
		return nil, err
	}

	if cfg.Queue.DeadLetterStream != "" {
		app.DeadLetters = infraRedis.NewDeadLetterStream(redisClient, cfg.Queue.DeadLetterStream)
	}

	// One instrumented client for backend calls and reachability probes.
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	app.Backend = newBackend(cfg, httpClient, app.Metrics, logger)

	// The mock backend is always reachable, so demo mode has nothing to probe.
	app.Monitor = connectivity.NewBroadcaster(cfg.Connectivity.InitialOnline || cfg.Backend.Demo)
	if cfg.Connectivity.Mode == config.ConnectivityProbe && !cfg.Backend.Demo {
		app.Prober = connectivity.NewProber(
			app.Monitor,
			httpClient,
			cfg.HealthURL(),
			cfg.Connectivity.ProbeInterval,
			cfg.Connectivity.ProbeTimeout,
			observability.ForComponent(logger, "connectivity"),
		)
	}

	persist := retry.PersistConfig()
	if cfg.Queue.PersistAttempts > 0 {
		persist.MaxAttempts = cfg.Queue.PersistAttempts
	}
	queueOpts := []offlinequeue.Option{
		offlinequeue.WithLogger(logger),
		offlinequeue.WithMetrics(app.Metrics),
		offlinequeue.WithPersistRetry(persist),
		offlinequeue.WithCallTimeout(cfg.Backend.RequestTimeout),
		offlinequeue.WithErrorBuffer(cfg.Queue.ErrorBuffer),
		offlinequeue.WithTracer(otel.Tracer(observability.TracerName)),
	}
	if app.DeadLetters != nil {
		queueOpts = append(queueOpts, offlinequeue.WithDeadLetter(app.DeadLetters))
	}
	app.Queue = offlinequeue.New(app.Store, offlinequeue.NewDispatcher(app.Backend), app.Monitor, queueOpts...)

	return app, nil
}

func (a *App) openStore(ctx context.Context, redisClient *redis.Client) error {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
		a.Store = sqlite.NewStore(db, cfg.Queue.Key)
		a.Idempotency = sqlite.NewIdempotencyRepository(db)
		a.Logger.Info().Str("path", cfg.Storage.SQLitePath).Msg("Using SQLite queue store")

	case config.DriverRedis:
		lease := infraRedis.NewQueueLease(redisClient, cfg.Queue.Key, cfg.InstanceID, cfg.Queue.LeaseTTL)
		if err := lease.Acquire(ctx); err != nil {
			return fmt.Errorf("acquire queue lease: %w", err)
		}
		a.Lease = lease
		a.closers = append(a.closers, func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := lease.Release(releaseCtx); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to release queue lease")
			}
		})
		a.Store = infraRedis.NewStore(redisClient, cfg.Queue.Key)
		a.Idempotency = infraRedis.NewIdempotencyRepository(redisClient)
		a.Logger.Info().Str("key", cfg.Queue.Key).Msg("Using Redis queue store")

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.Store = postgres.NewQueueRepository(pool, cfg.Queue.Key, cfg.InstanceID)
		a.Idempotency = postgres.NewIdempotencyRepository(pool)
		a.Logger.Info().Msg("Using PostgreSQL queue store")

	case config.DriverMemory:
		a.Store = memory.NewStore()
		a.Idempotency = memory.NewIdempotencyRepository()
		a.Logger.Warn().Msg("Using in-memory queue store, pending operations are lost on restart")

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return nil
}

func newBackend(cfg *config.Config, httpClient *http.Client, metrics *observability.Metrics, logger zerolog.Logger) commerce.Backend {
	if cfg.Backend.Demo {
		logger.Warn().Msg("Demo mode: replaying against an in-process mock backend")
		return commerce.NewMockBackend(
			commerce.WithLatency(150*time.Millisecond),
			commerce.WithFailureRate(0.1),
		)
	}
	return commerce.NewClient(cfg.Backend.BaseURL,
		commerce.WithHTTPClient(httpClient),
		commerce.WithAPIKey(cfg.Backend.APIKey),
		commerce.WithTimeout(cfg.Backend.RequestTimeout),
		commerce.WithCircuitBreaker(cfg.Backend.CircuitBreakerThreshold, cfg.Backend.CircuitBreakerTimeout),
		commerce.WithMetrics(metrics),
	)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
