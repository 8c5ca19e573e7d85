package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"secure-user-api/internal/adapter/ratelimit"
	"secure-user-api/internal/config"
	redisclient "secure-user-api/pkg/redis"
)

// NewRedisClient creates a new Redis client with configuration
func NewRedisClient(ctx context.Context, cfg *config.Config, l *zap.Logger) (*redisclient.Client, error) {
	redisConfig := redisclient.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		PoolSize:    cfg.Redis.PoolSize,
		MinIdleConn: cfg.Redis.MinIdleConn,
	}

	rdb, err := redisclient.NewClient(ctx, redisConfig, l)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

// NewRateStore builds the limiter store named by RATE_LIMIT_BACKEND.
// It returns a nil store when rate limiting is disabled.
func NewRateStore(cfg *config.Config, rdb *redisclient.Client, l *zap.Logger) (ratelimit.Store, error) {
	if !cfg.RateLimit.Enabled {
		l.Warn("rate limiting disabled")
		return nil, nil
	}

	rule, err := ratelimit.ParseRule(cfg.RateLimit.Default)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_RATE_LIMIT: %w", err)
	}

	l.Info("rate limiting enabled",
		zap.String("rule", rule.String()),
		zap.String("backend", cfg.RateLimit.Backend),
	)

	if cfg.RateLimit.Backend == config.BackendRedis {
		if rdb == nil {
			return nil, errors.New("redis rate limit backend requires a Redis client")
		}
		return ratelimit.NewRedisStore(rdb.Client, rule), nil
	}
	return ratelimit.NewMemoryStore(rule), nil
}

// CacheTTL returns the configured user cache lifetime.
func CacheTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Cache.TTLSeconds) * time.Second
}
