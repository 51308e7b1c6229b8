package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jw6ventures/dispo/internal/config"
	"github.com/jw6ventures/dispo/internal/events"
	"github.com/jw6ventures/dispo/internal/http"
	"github.com/jw6ventures/dispo/internal/store"
)

func main() {
	log.Println("Starting dispo server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stor, err := store.Open(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to open event store: %v", err)
	}
	defer stor.Close()

	// The schema is created lazily on first use as well; failing here only
	// means the database is not reachable yet.
	initCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
	if err := stor.Initialize(initCtx); err != nil {
		log.Printf("[WARN] event store not initialized at startup: %v", err)
	}
	cancelInit()

	svc := events.NewService(stor, stor.Events, events.WithRetentionDays(cfg.RetentionDays))
	r := httpserver.NewRouter(ctx, cfg, stor, events.NewHandler(svc))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s (retention %d days)", cfg.ListenAddr, cfg.RetentionDays)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
