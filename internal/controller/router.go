package controller

import (
	"time"

	"github.com/cassiomorais/storesync/internal/connectivity"
	"github.com/cassiomorais/storesync/internal/domain/idempotency"
	"github.com/cassiomorais/storesync/internal/infrastructure/config"
	"github.com/cassiomorais/storesync/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/storesync/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Queue            Queue
	Monitor          *connectivity.Broadcaster
	ConnectivityMode string
	Store            Pinger
	Lease            LeaseHolder      // nil unless the store is leased
	DeadLetters      DeadLetterReader // nil unless dead-lettering is enabled
	Idempotency      idempotency.Repository
	Metrics          *observability.Metrics
	Gatherer         prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	CORSConfig       config.CORSConfig
	JWTSecret        string
	RateLimit        int
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.Store, deps.Lease)
	queueH := NewQueueController(deps.Queue, deps.Monitor.Online)
	connH := NewConnectivityController(deps.Monitor, deps.ConnectivityMode)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if deps.JWTSecret != "" {
			r.Use(customMW.RequireAuth(deps.JWTSecret))
		}
		if deps.RateLimit > 0 {
			r.Use(customMW.RateLimit(deps.RateLimit))
		}

		// Queue
		if deps.Idempotency != nil {
			r.With(customMW.Idempotency(deps.Idempotency)).Post("/operations", queueH.Enqueue)
		} else {
			r.Post("/operations", queueH.Enqueue)
		}
		r.Get("/operations", queueH.List)
		r.Get("/operations/count", queueH.Count)
		r.Delete("/operations", queueH.Clear)
		r.Post("/sync", queueH.Sync)

		// Connectivity
		r.Get("/connectivity", connH.Get)
		r.Put("/connectivity", connH.Set)

		if deps.DeadLetters != nil {
			deadH := NewDeadLetterController(deps.DeadLetters)
			r.Get("/dead-letters", deadH.List)
		}
	})

	return r
}
