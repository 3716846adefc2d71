package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/logger"
	"example.com/stravasync/internal/outbox"
	"example.com/stravasync/internal/telemetry"
	httptransport "example.com/stravasync/internal/transport/http"
)

const (
	defaultDLQBatchSize = 50
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		slog.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	runErr := run(ctx, cfg)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown failed", "error", err)
	}
	if runErr != nil {
		slog.Error("dlq manager stopped with error", "error", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log := slog.Default().With("component", "dlqmanager")

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, log)
	log.InfoContext(ctx, "dlq manager started", "interval", cfg.DLQPollInterval, "max_retries", cfg.DLQMaxRetries)
	go manager.Run(ctx, cfg.DLQPollInterval, defaultDLQBatchSize)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	return httptransport.Serve(ctx, httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), mux), 10*time.Second, log)
}
