package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "stravasync:webhook:"

// RedisClient is the subset of *redis.Client used for deduplication.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Deduplicator remembers webhook deliveries for a TTL so redelivered events are acknowledged
// without being enqueued twice.
type Deduplicator struct {
	client RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewDeduplicator constructs a Deduplicator.
func NewDeduplicator(client RedisClient, ttl time.Duration, log *slog.Logger) *Deduplicator {
	if log == nil {
		log = slog.Default()
	}
	return &Deduplicator{client: client, ttl: ttl, logger: log}
}

// FirstDelivery claims key and reports whether this is the first time it was seen. Redis
// errors are logged and treated as a first delivery.
func (d *Deduplicator) FirstDelivery(ctx context.Context, key string) bool {
	claimed, err := d.client.SetNX(ctx, dedupeKeyPrefix+key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		d.logger.WarnContext(ctx, "webhook dedupe unavailable", "key", key, "error", err)
		dedupeCounter.WithLabelValues("error").Inc()
		return true
	}
	if !claimed {
		dedupeCounter.WithLabelValues("duplicate").Inc()
		return false
	}
	dedupeCounter.WithLabelValues("first").Inc()
	return true
}

// Forget releases key so a later delivery can be enqueued, e.g. after a failed publish.
func (d *Deduplicator) Forget(ctx context.Context, key string) {
	if err := d.client.Del(ctx, dedupeKeyPrefix+key).Err(); err != nil {
		d.logger.WarnContext(ctx, "webhook dedupe release failed", "key", key, "error", err)
	}
}
