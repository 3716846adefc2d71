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
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/consumer"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logger"
	persistence "example.com/stravasync/internal/persistence/postgres"
	"example.com/stravasync/internal/remote"
	"example.com/stravasync/internal/schema"
	"example.com/stravasync/internal/strava"
	"example.com/stravasync/internal/telemetry"
	httptransport "example.com/stravasync/internal/transport/http"
)

const redeliveryBackoff = 5 * time.Second

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
		slog.Error("consumer stopped with error", "error", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log := slog.Default().With("component", "consumer")

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	remoteClient := remote.NewClient(nil, cfg.HTTPClientTimeout)
	refresher := strava.NewRefresher(remoteClient, cfg.Strava, log)
	service := domain.NewService(strava.NewClient(remoteClient, cfg.Strava.APIURL, refresher, log), persistence.NewRepository(pool), log)

	contract, err := schema.StrictQueuedTask(cfg.Strava.AthleteID, cfg.Strava.SubscriptionID)
	if err != nil {
		return fmt.Errorf("compile task contract: %w", err)
	}

	newReader := func() consumer.Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           cfg.Queue.TaskTopic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
	}
	supervisor := consumer.NewSupervisor(newReader, contract, consumer.NewTaskHandler(service, log), redeliveryBackoff, log,
		consumer.WithMaxAttempts(cfg.TaskMaxAttempts),
	)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "consumer started", "topic", cfg.Queue.TaskTopic, "group", cfg.ConsumerGroupID)
		if err := supervisor.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return httptransport.Serve(gctx, metricsSrv, 10*time.Second, log)
	})
	return g.Wait()
}
