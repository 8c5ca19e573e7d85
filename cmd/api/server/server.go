package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	ginrouter "secure-user-api/internal/adapter/gin/router"
	"secure-user-api/internal/config"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	HTTP   *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, l *zap.Logger, deps ginrouter.Deps) (*Server, error) {
	httpServer, err := SetupGinServer(deps, httpAddress(cfg), l)
	if err != nil {
		return nil, fmt.Errorf("failed to set up HTTP server: %w", err)
	}

	return &Server{
		Config: cfg,
		Logger: l,
		HTTP:   httpServer,
	}, nil
}

// Start listens on HTTP_PORT and serves until Shutdown is called.
func (s *Server) Start() error {
	lc := net.ListenConfig{}
	lis, err := lc.Listen(context.Background(), "tcp", s.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis. A graceful shutdown is not an error.
func (s *Server) Serve(lis net.Listener) error {
	s.Logger.Info("HTTP server running", zap.String("address", lis.Addr().String()))

	if err := s.HTTP.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.HTTP.Shutdown(ctx)
}

// httpAddress returns the HTTP server address
func httpAddress(cfg *config.Config) string {
	return ":" + cfg.App.HTTPPort
}
