package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gavrptw/internal/api"
	"gavrptw/internal/buildinfo"
	"gavrptw/internal/config"
	"gavrptw/internal/metrics"
)

func main() {
	config.LoadDotEnv(".env")
	cfg, err := config.ServerFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvDeps, err := api.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer func() { _ = srvDeps.Close() }()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srvDeps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start webhook worker
	if srvDeps.Pub.Enabled() {
		worker := srvDeps.NewWebhookWorker()
		worker.Start()
		defer close(worker.Stop)
	}

	go func() {
		log.Printf("API listening on %s version=%s", cfg.Addr(), buildinfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := srvDeps.Runs.Shutdown(shutdownCtx); err != nil {
		log.Printf("runs shutdown: %v", err)
	}
}
