package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/yegors/atcsim/internal/config"
	"github.com/yegors/atcsim/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Server serves the API on a connection-limited listener
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	logger  *logger.Logger
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *logger.Logger) *Server {
	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger.Named("api-server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout(),
		WriteTimeout: s.config.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening",
			logger.String("address", ln.Addr().String()),
			logger.Int("max_connections", s.config.MaxConnections))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}
