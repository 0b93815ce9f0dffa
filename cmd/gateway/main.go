// The gateway daemon wires the rate limiter in front of the platform's API
// routes: config from the environment, counters in redis, decisions exported
// to prometheus.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/minutely/gateway-rate-limiter/internal/config"
	"github.com/minutely/gateway-rate-limiter/pkg/limiter"
	"github.com/minutely/gateway-rate-limiter/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store, err := limiter.NewRedisStore(client)
	if err != nil {
		logger.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(registry)

	l, err := limiter.New(store, limiter.Config{
		Limit:           cfg.RateLimit.Limit,
		Window:          cfg.RateLimit.Window,
		BurstPercent:    cfg.RateLimit.BurstPercent,
		RetryAttempts:   cfg.RateLimit.RetryAttempts,
		RetryDelay:      cfg.RateLimit.RetryDelay,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
		ScanBatchSize:   cfg.RateLimit.ScanBatchSize,
		FailOpen:        cfg.RateLimit.FailOpen,
	},
		limiter.WithPrefix(cfg.RateLimit.KeyPrefix),
		limiter.WithRecorder(recorder),
		limiter.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build limiter", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := l.Start(ctx); err != nil {
		logger.Error("failed to start cleanup sweeper", "error", err)
		os.Exit(1)
	}
	defer l.Stop()

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware(l))
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("pong"))
		})
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()
	logger.Info("gateway listening",
		"addr", cfg.Server.Addr,
		"redis", cfg.Redis.Addr,
		"limit", cfg.RateLimit.Limit,
		"window", cfg.RateLimit.Window,
		"fail_open", cfg.RateLimit.FailOpen,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
