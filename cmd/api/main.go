package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peterdesantis17/66-Challenge/internal/api"
	"github.com/peterdesantis17/66-Challenge/internal/auth"
	"github.com/peterdesantis17/66-Challenge/internal/cache"
	"github.com/peterdesantis17/66-Challenge/internal/config"
	"github.com/peterdesantis17/66-Challenge/internal/events"
	"github.com/peterdesantis17/66-Challenge/internal/habits"
	persistence "github.com/peterdesantis17/66-Challenge/internal/persistence/postgres"
	"github.com/peterdesantis17/66-Challenge/internal/reconcile"
	"github.com/peterdesantis17/66-Challenge/internal/stats"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	store := persistence.NewStore(pool)
	cacheStore := cache.New(cfg.CachePath)
	manager := habits.NewManager(store, cacheStore)

	publisher := events.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	reconciler := reconcile.New(store, manager, reconcile.WithPublisher(publisher))
	reader := stats.NewReader(store, stats.WithDefaultLimit(cfg.StatsLimit))

	handler := api.NewHandler(manager, reconciler, reader)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(
		auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		func(r *http.Request) bool {
			return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
		},
	)

	server := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      authMiddleware.Wrap(logger(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("habit sync api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
