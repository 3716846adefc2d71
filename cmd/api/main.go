package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"example.com/stravasync/internal/api"
	"example.com/stravasync/internal/auth"
	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logger"
	"example.com/stravasync/internal/outbox"
	persistence "example.com/stravasync/internal/persistence/postgres"
	"example.com/stravasync/internal/queue"
	"example.com/stravasync/internal/remote"
	"example.com/stravasync/internal/schema"
	"example.com/stravasync/internal/strava"
	"example.com/stravasync/internal/telemetry"
	httptransport "example.com/stravasync/internal/transport/http"
)

const signatureLeeway = 5 * time.Second

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
		slog.Error("api stopped with error", "error", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	log := slog.Default()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, log.With("component", "outbox"))
	go dispatcher.Start(ctx)

	remoteClient := remote.NewClient(nil, cfg.HTTPClientTimeout)
	refresher := strava.NewRefresher(remoteClient, cfg.Strava, log)
	service := domain.NewService(strava.NewClient(remoteClient, cfg.Strava.APIURL, refresher, log), repo, log)

	enqueuer, err := newEnqueuer(cfg, remoteClient, producer, log)
	if err != nil {
		return err
	}

	contract, err := schema.StrictQueuedTask(cfg.Strava.AthleteID, cfg.Strava.SubscriptionID)
	if err != nil {
		return fmt.Errorf("compile task contract: %w", err)
	}

	opts := []api.Option{api.WithLogger(log)}
	if cfg.Webhook.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.Webhook.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WarnContext(ctx, "redis unavailable, duplicate webhook deliveries will be enqueued", "error", err)
		}
		opts = append(opts, api.WithDeduplicator(queue.NewDeduplicator(redisClient, cfg.Webhook.DedupeTTL, log)))
	}

	taskAuth, err := newTaskAuth(cfg)
	if err != nil {
		return err
	}
	if taskAuth == nil {
		log.WarnContext(ctx, "task callback signature verification disabled")
	}

	handler := api.NewHandler(cfg.Strava.VerifyToken, enqueuer, service, contract, opts...)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, taskAuth)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.RequestLogger(log),
		httptransport.Recover(log, domain.CodeInternalError),
	))

	serveErr := httptransport.Serve(ctx, server, 15*time.Second, log)
	cancel()
	dispatcher.Wait()
	return serveErr
}

func newEnqueuer(cfg config.Config, client *remote.Client, producer *outbox.KafkaProducer, log *slog.Logger) (queue.Enqueuer, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendHTTP:
		return queue.NewHTTPRelay(client, cfg.Queue, log), nil
	case config.QueueBackendKafka:
		return queue.NewKafkaRelay(producer, cfg.Queue.TaskTopic, log), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// newTaskAuth returns nil when no signing keys are configured outside production.
func newTaskAuth(cfg config.Config) (api.Wrapper, error) {
	verifier, err := auth.NewSignatureVerifier(cfg.Queue.CurrentSigningKey, cfg.Queue.NextSigningKey, signatureLeeway)
	if errors.Is(err, auth.ErrNoSigningKeys) && !cfg.IsProduction() {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("task signature verifier: %w", err)
	}
	return auth.NewMiddleware(verifier, nil), nil
}
