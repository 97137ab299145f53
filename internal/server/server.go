// Package server exposes the agent's health, status and metrics over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/netlogger/internal/agent"
	"github.com/HerbHall/netlogger/internal/version"
)

// StatusProvider reports the agent's current status.
type StatusProvider interface {
	Status() agent.Status
}

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	status     StatusProvider
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a new Server instance. Metrics are served from gatherer.
func New(addr string, status StatusProvider, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		status: status,
		logger: logger,
		mux:    mux,
	}

	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/", s.handleFallback)

	return s
}

// Handler returns the server's routes, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports ok unless the last tick failed to record a change.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	if st.LastOutcome == agent.OutcomeRecordFailed {
		ServiceUnavailable(w, "last change could not be recorded: "+st.LastError, r.URL.Path)
		return
	}
	s.writeJSON(w, r, map[string]any{
		"status":  "ok",
		"service": "netlogger",
		"phase":   st.Phase,
		"version": version.Map(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.status.Status())
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/health", "/api/v1/status", "/metrics":
		MethodNotAllowed(w, r.Method+" is not supported", r.URL.Path)
	default:
		NotFound(w, "no such endpoint", r.URL.Path)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("encode response", zap.String("path", r.URL.Path), zap.Error(err))
		InternalError(w, "failed to encode response", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Netlogger-Version", version.Short())
	_, _ = w.Write(buf.Bytes())
}
