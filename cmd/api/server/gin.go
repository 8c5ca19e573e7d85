package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ginrouter "secure-user-api/internal/adapter/gin/router"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(deps ginrouter.Deps, addr string, l *zap.Logger) (*http.Server, error) {
	// Setup Gin router with all middleware and routes
	router, err := ginrouter.SetupRouter(deps)
	if err != nil {
		return nil, err
	}

	l.Info("Gin REST API configured",
		zap.String("address", addr),
		zap.Bool("docs", deps.DocsEnabled),
		zap.Bool("rate_limit", deps.RateStore != nil),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}
