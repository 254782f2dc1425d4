// Package server exposes the chat service over HTTP.
//
// Endpoints:
//
//	POST /chat           - run one conversational turn
//	GET  /conversations  - list the caller's conversations
//	GET  /healthz        - liveness and store reachability
//
// Every handler resolves the caller through an Authenticator before touching
// any state; the server itself never issues credentials.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"taskchat/internal/agent"
	"taskchat/internal/config"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// Server is the HTTP front end.
type Server struct {
	cfg    config.ServerConfig
	mux    *http.ServeMux
	logger *zap.Logger
}

// New creates a server with all routes registered.
func New(cfg config.ServerConfig, svc *agent.Service, auth Authenticator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	NewChatHandler(svc, auth, cfg.MaxMessageChars, logger).RegisterRoutes(mux)
	return &Server{cfg: cfg, mux: mux, logger: logger}
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, request id, logging.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      time.Duration(s.cfg.RequestTimeout) * time.Second,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
