package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"secure-user-api/api"
	"secure-user-api/internal/adapter/gin/handler"
	"secure-user-api/internal/adapter/gin/middleware"
	"secure-user-api/internal/adapter/gin/response"
	"secure-user-api/internal/adapter/ratelimit"
	"secure-user-api/pkg/logger"
	"secure-user-api/pkg/security"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects everything the router needs to build the engine.
type Deps struct {
	UserHandler    *handler.UserHandler
	Verifier       *security.KeyVerifier
	APIKeyHeader   string
	RateStore      ratelimit.Store // nil disables rate limiting
	Health         Pinger
	TrustedProxies []string
	MaxBodyBytes   int64
	DocsEnabled    bool
	HSTS           bool
	ServiceName    string
	Log            *zap.Logger
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(d Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if err := router.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}

	// Global middleware
	router.Use(logger.RequestID())
	router.Use(middleware.Recovery(d.Log))
	router.Use(middleware.AccessLog(d.Log))
	router.Use(middleware.SecurityHeaders(d.HSTS))
	router.Use(middleware.MaxBytes(d.MaxBodyBytes))

	router.GET("/health", healthHandler(d))

	if d.DocsEnabled {
		router.GET("/openapi.json", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", api.OpenAPI)
		})
		swagger := gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json")))
		router.GET("/swagger/*any", func(c *gin.Context) {
			// The UI loads its own scripts and styles.
			c.Writer.Header().Del("Content-Security-Policy")
			swagger(c)
		})
	}

	users := router.Group("/users")
	users.Use(middleware.APIKeyAuth(d.Verifier, d.APIKeyHeader, d.Log))
	users.Use(middleware.RateLimiter(d.RateStore, d.Log))
	{
		users.POST("", d.UserHandler.CreateUser)
		users.GET("", d.UserHandler.ListUsers)
		users.GET("/:id", d.UserHandler.GetUser)
		users.PUT("/:id", d.UserHandler.UpdateUser)
		users.DELETE("/:id", d.UserHandler.DeleteUser)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Error:  response.CodeNotFound,
			Detail: "Not Found",
		})
	})

	return router, nil
}

func healthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := d.Health.Ping(ctx); err != nil {
				d.Log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unavailable",
					"service": d.ServiceName,
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": d.ServiceName,
		})
	}
}
