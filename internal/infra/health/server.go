// Package health serves liveness and readiness probes on a dedicated port.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server provides HTTP endpoints for orchestrator probes:
//   - /health: liveness, always 200 while the process serves requests
//   - /health/ready: readiness, 200 once Ready reports true, 503 before
//
// Readiness is tied to the poller: the dashboard is ready once the first
// source list has loaded.
//
//	srv := health.NewServer(":9091", logger, controller.Ready)
//	go func() {
//	    if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
//	        logger.Error("health server failed", slog.Any("error", err))
//	    }
//	}()
type Server struct {
	addr   string
	logger *slog.Logger
	ready  func() bool
	server *http.Server
}

type response struct {
	Status string `json:"status"`
}

// NewServer creates a health server. A nil ready func reports ready.
func NewServer(addr string, logger *slog.Logger, ready func() bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Server{addr: addr, logger: logger, ready: ready}
}

// Handler returns the probe routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleLiveness)
	mux.HandleFunc("GET /health/ready", s.handleReadiness)
	return mux
}

// Start serves until ctx is cancelled, then shuts down within 5 seconds.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("health server starting", slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		s.logger.Info("health server stopped")
		return http.ErrServerClosed
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, "ok")
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.ready() {
		s.write(w, http.StatusOK, "ok")
		return
	}
	s.write(w, http.StatusServiceUnavailable, "not ready")
}

func (s *Server) write(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response{Status: status}); err != nil {
		s.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
