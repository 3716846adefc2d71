package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubRedis struct {
	keys    map[string]time.Duration
	err     error
	deleted []string
}

func (s *stubRedis) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if s.err != nil {
		return redis.NewBoolResult(false, s.err)
	}
	if _, ok := s.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.keys[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(s.keys, key)
		s.deleted = append(s.deleted, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestDeduplicatorClaimsOnce(t *testing.T) {
	client := &stubRedis{keys: map[string]time.Duration{}}
	dedupe := NewDeduplicator(client, time.Hour, nil)
	ctx := context.Background()

	require.True(t, dedupe.FirstDelivery(ctx, "activity:1:create:1700000000"))
	require.False(t, dedupe.FirstDelivery(ctx, "activity:1:create:1700000000"))
	require.True(t, dedupe.FirstDelivery(ctx, "activity:1:update:1700000100"))
	require.Equal(t, time.Hour, client.keys["stravasync:webhook:activity:1:create:1700000000"])
}

func TestDeduplicatorForgetAllowsRedelivery(t *testing.T) {
	client := &stubRedis{keys: map[string]time.Duration{}}
	dedupe := NewDeduplicator(client, time.Hour, nil)
	ctx := context.Background()

	require.True(t, dedupe.FirstDelivery(ctx, "activity:1:delete:1"))
	dedupe.Forget(ctx, "activity:1:delete:1")
	require.Equal(t, []string{"stravasync:webhook:activity:1:delete:1"}, client.deleted)
	require.True(t, dedupe.FirstDelivery(ctx, "activity:1:delete:1"))
}

func TestDeduplicatorFailsOpen(t *testing.T) {
	dedupe := NewDeduplicator(&stubRedis{err: errors.New("connection refused")}, time.Hour, nil)

	require.True(t, dedupe.FirstDelivery(context.Background(), "activity:1:create:1"))
	require.True(t, dedupe.FirstDelivery(context.Background(), "activity:1:create:1"))
}
