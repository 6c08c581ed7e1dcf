// Package api implements the HTTP surface of the GA VRPTW service.
package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gavrptw/internal/auth"
	"gavrptw/internal/config"
	"gavrptw/internal/events"
	"gavrptw/internal/metrics"
	"gavrptw/internal/runs"
	"gavrptw/internal/store"
	"gavrptw/internal/webhooks"
)

type Server struct {
	Cfg     config.Server
	Store   store.Store
	Broker  events.EventBroker
	Pub     *webhooks.Publisher
	Runs    *runs.Service
	Catalog runs.Catalog
	Auth    *auth.Verifier

	closers []func() error
}

// NewServer wires the store, broker and run service from cfg. If DATABASE_URL is
// unset the in-memory store is used; if REDIS_URL is unset events stay in-process.
func NewServer(ctx context.Context, cfg config.Server) (*Server, error) {
	verifier, err := auth.NewVerifier(cfg.AuthMode, cfg.AuthToken, cfg.AuthHMACSecret)
	if err != nil {
		return nil, err
	}
	s := &Server{Cfg: cfg, Catalog: runs.NewCatalog(cfg.DataDir), Auth: verifier}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s.Store = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		s.Store = pg
		s.closers = append(s.closers, pg.Close)
	}
	if cfg.RedisURL != "" {
		rb, err := events.NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Printf("redis broker unavailable, using in-process broker: %v", err)
			s.Broker = events.NewBroker()
		} else {
			s.Broker = rb
			s.closers = append(s.closers, rb.Close)
		}
	} else {
		s.Broker = events.NewBroker()
	}
	s.Pub = webhooks.NewPublisher(s.Store, cfg.WebhookURL, cfg.WebhookSecret)
	s.Runs = runs.NewService(s.Store, s.Broker, s.Pub, s.Catalog, cfg.EvalWorkers, cfg.MaxRuns)
	return s, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts)
}

// Handler returns the routed handler wrapped in logging, metrics and rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Runs
	mux.HandleFunc("POST /v1/runs", s.CreateRunHandler)
	mux.HandleFunc("GET /v1/runs", s.ListRunsHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.GetRunHandler)
	mux.HandleFunc("DELETE /v1/runs/{id}", s.requireOperator(s.CancelRunHandler))
	mux.HandleFunc("GET /v1/runs/{id}/stats", s.RunStatsHandler)
	mux.HandleFunc("GET /v1/runs/{id}/events/stream", s.RunEventsStreamHandler)
	mux.HandleFunc("GET /v1/runs/{id}/ws", s.RunEventsWSHandler)

	// Instances
	mux.HandleFunc("GET /v1/instances", s.InstancesHandler)
	mux.HandleFunc("GET /v1/instances/{name}", s.InstanceHandler)
	mux.HandleFunc("GET /v1/instances/{name}/best", s.InstanceBestHandler)

	// Admin
	mux.HandleFunc("GET /v1/admin/webhook-deliveries", s.requireOperator(s.WebhookDeliveriesHandler))

	// Health, metrics, debug
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /debug/info", s.DebugJSON)

	limited := rateLimit(s.Cfg.RateRPS, s.Cfg.RateBurst, mux)
	return logMiddleware(metricsMiddleware(limited))
}

// Close releases the store and broker connections.
func (s *Server) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
