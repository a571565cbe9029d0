package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"go.uber.org/zap"
)

const redisKeyPrefix = "securedoc:webhook:"

// RedisLedger is a Redis-backed ledger for deployments with more than one
// replica, where an in-process table cannot deduplicate across instances.
// Entries expire after twice the replay tolerance: an event older than the
// replay window is rejected before the ledger is consulted, so the TTL
// bounds memory without ever letting a replayable identifier expire early.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisLedger connects to Redis and verifies the connection.
func NewRedisLedger(redisURL string, replayTolerance time.Duration, log *logger.Logger) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("webhook ledger connected to Redis",
		zap.Duration("entry_ttl", 2*replayTolerance),
	)

	return &RedisLedger{
		client: client,
		ttl:    2 * replayTolerance,
		logger: log,
	}, nil
}

// MarkIfNew implements Ledger. SETNX makes the claim atomic across
// replicas: for one identifier exactly one of the racing deliveries wins.
func (l *RedisLedger) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	set, err := l.client.SetNX(ctx, redisKeyPrefix+eventID, time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger claim: %w", err)
	}
	return set, nil
}

// Forget implements Ledger.
func (l *RedisLedger) Forget(ctx context.Context, eventID string) error {
	if err := l.client.Del(ctx, redisKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("ledger release: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
