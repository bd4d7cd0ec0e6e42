// Package api provides the HTTP server carrying the Obsync sync surface:
// push/pull, the realtime websocket endpoint, the blob upload protocol, key
// envelopes and health probes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/blob"
	"github.com/obsync/obsync/pkg/chunkstore"
	"github.com/obsync/obsync/pkg/realtime"
	"github.com/obsync/obsync/pkg/store"
	syncsvc "github.com/obsync/obsync/pkg/sync"
)

// Deps are the collaborators the API surface exposes.
type Deps struct {
	Store  store.Store
	Chunks chunkstore.Store
	Gate   *auth.Gate
	Sync   *syncsvc.Service
	Blobs  *blob.Service
	Bus    *realtime.Bus
}

// Server is the API HTTP server. It is created stopped; Start() serves until
// the context is cancelled, then shuts down gracefully.
type Server struct {
	server       *http.Server
	tokens       *auth.TokenService
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates the API server. The JWT secret must be configured via
// config or the OBSYNC_JWT_SECRET environment variable.
func NewServer(config APIConfig, deps Deps) (*Server, error) {
	config.ApplyDefaults()

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:        config.GetJWTSecret(),
		TokenDuration: config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("configure token service: %w", err)
	}

	router := NewRouter(config, tokens, deps)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Port),
		Handler:     router,
		ReadTimeout: config.ReadTimeout,
		// WriteTimeout stays unset: the realtime endpoint holds hijacked
		// connections open indefinitely; request-level deadlines are
		// enforced by the router's timeout middleware instead.
		IdleTimeout: config.IdleTimeout,
	}

	return &Server{
		server: server,
		tokens: tokens,
		config: config,
	}, nil
}

// Tokens returns the server's token service (for the admin CLI and tests).
func (s *Server) Tokens() *auth.TokenService {
	return s.tokens
}

// Start serves until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
