package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-assistant-bot/internal/activity"
	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
	"github.com/wolfman30/dental-assistant-bot/internal/transcript"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const (
	memoryDedupeSize = 10_000
	memoryDedupeTTL  = 24 * time.Hour
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildTranscriptStore keeps transcripts in Redis when available and in
// process memory otherwise.
func BuildTranscriptStore(redisClient *redis.Client, logger *logging.Logger) transcript.Store {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Info("transcripts kept in memory")
		return transcript.NewMemoryStore()
	}
	return transcript.NewRedisStore(redisClient)
}

// BuildProcessedStore returns the redelivery guard. Postgres is used when
// DATABASE_URL is set; the returned pool must be closed by the caller and is
// nil for the in-memory store.
func BuildProcessedStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (activity.Store, *pgxpool.Pool, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Info("processed activities kept in memory")
		return activity.NewMemoryStore(memoryDedupeSize, memoryDedupeTTL), nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return activity.NewProcessedStore(pool), pool, nil
}
