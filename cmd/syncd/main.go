package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/storesync/internal/bootstrap"
	"github.com/cassiomorais/storesync/internal/controller"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const idempotencyCleanupInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := bootstrap.New(ctx, "storesync-agent", "storesync", bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Queue.Start(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to start offline queue")
		return
	}

	// --- Build router ---
	deps := controller.RouterDeps{
		Queue:            app.Queue,
		Monitor:          app.Monitor,
		ConnectivityMode: app.Config.Connectivity.Mode,
		Store:            app.Store,
		Idempotency:      app.Idempotency,
		Metrics:          app.Metrics,
		CORSConfig:       app.Config.Server.CORS,
		JWTSecret:        app.Config.Auth.JWTSecret,
		RateLimit:        app.Config.Server.RateLimit,
	}
	if app.Lease != nil {
		deps.Lease = app.Lease
	}
	if app.DeadLetters != nil {
		deps.DeadLetters = app.DeadLetters
	}
	router := controller.NewRouter(deps)

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Local HTTP API.
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	// 2. Connectivity prober (probe mode only).
	if app.Prober != nil {
		g.Go(func() error {
			return app.Prober.Run(gCtx)
		})
	}

	// 3. Queue lease keep-alive (redis storage only). Losing the lease stops
	// the agent so two processes never replay the same queue.
	if app.Lease != nil {
		g.Go(func() error {
			return app.Lease.KeepAlive(gCtx, app.Logger)
		})
	}

	// 4. Queue health channel.
	g.Go(func() error {
		return watchQueueErrors(gCtx, app.Logger, app.Queue.Errors())
	})

	// 5. Expired idempotency replies.
	if c, ok := app.Idempotency.(idempotencyCleaner); ok {
		g.Go(func() error {
			return runIdempotencyCleanup(gCtx, app.Logger, c, idempotencyCleanupInterval)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Agent error")
	}

	// Let an in-flight replay pass finish before the store is closed.
	app.Queue.Close()
	app.Logger.Info().Int("pending", app.Queue.PendingCount()).Msg("Agent exited")
}

func watchQueueErrors(ctx context.Context, logger zerolog.Logger, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			logger.Warn().Err(err).Msg("Offline queue reported a failure")
		}
	}
}

type idempotencyCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

func runIdempotencyCleanup(ctx context.Context, logger zerolog.Logger, c idempotencyCleaner, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n, err := c.Cleanup(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Idempotency cleanup failed")
			continue
		}
		if n > 0 {
			logger.Debug().Int64("removed", n).Msg("Expired idempotency replies removed")
		}
	}
}
