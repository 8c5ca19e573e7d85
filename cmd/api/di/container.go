package di

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"secure-user-api/cmd/api/infrastructure"
	"secure-user-api/internal/adapter/cache"
	"secure-user-api/internal/adapter/db/gormstore"
	ginhandler "secure-user-api/internal/adapter/gin/handler"
	ginrouter "secure-user-api/internal/adapter/gin/router"
	"secure-user-api/internal/adapter/ratelimit"
	"secure-user-api/internal/adapter/repository/cached"
	"secure-user-api/internal/config"
	"secure-user-api/internal/usecase/user"
	redisclient "secure-user-api/pkg/redis"
	"secure-user-api/pkg/security"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	DBRepo      *gormstore.UserRepo
	Repo        user.Repository
	RedisClient *redisclient.Client
	UserUC      user.Service
	RateStore   ratelimit.Store
	Verifier    *security.KeyVerifier
	GinHandler  *ginhandler.UserHandler
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (_ *Container, err error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}
	defer func() {
		if err != nil {
			if cerr := c.Close(); cerr != nil {
				l.Warn("failed to release partially built container", zap.Error(cerr))
			}
		}
	}()

	c.DB, err = infrastructure.NewDatabase(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.NeedsRedis() {
		c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
	}

	c.DBRepo = gormstore.NewUserRepo(c.DB, l)

	c.Repo = c.DBRepo
	if cfg.Cache.Enabled {
		userCache := cache.NewRedisUserCache(c.RedisClient.Client, infrastructure.CacheTTL(cfg), l)
		c.Repo = cached.NewCachedUserRepository(c.DBRepo, userCache, l)
	}

	c.UserUC = user.New(c.Repo, l)

	c.RateStore, err = infrastructure.NewRateStore(cfg, c.RedisClient, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	c.Verifier = security.NewKeyVerifier(cfg.Auth.ActiveKeys)
	if c.Verifier.KeyCount() == 0 {
		l.Warn("no API keys configured; every /users request will fail with 500 until ACTIVE_API_KEYS is set")
	} else {
		l.Info("API keys loaded", zap.Int("count", c.Verifier.KeyCount()))
	}

	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)

	return c, nil
}

// RouterDeps returns what the HTTP router needs from the container.
func (c *Container) RouterDeps() ginrouter.Deps {
	return ginrouter.Deps{
		UserHandler:    c.GinHandler,
		Verifier:       c.Verifier,
		APIKeyHeader:   c.Config.Auth.HeaderName,
		RateStore:      c.RateStore,
		Health:         c.DBRepo,
		TrustedProxies: c.Config.App.TrustedProxies,
		MaxBodyBytes:   c.Config.App.MaxBodyBytes,
		DocsEnabled:    c.Config.App.DocsEnabled,
		HSTS:           c.Config.App.Env == "production",
		ServiceName:    c.Config.Logger.ServiceName,
		Log:            c.Logger,
	}
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// The in-memory store runs a janitor goroutine
	if closer, ok := c.RateStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close rate limiter: %w", err))
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
