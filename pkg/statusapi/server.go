// Package statusapi exposes the launcher's state on a local HTTP address:
// /healthz for container probes, /status for humans, /metrics for scrapers.
// It is entirely optional and never alters the launcher's failure semantics.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serve-tools/ollama-launcher/pkg/launcher"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
)

// StatusFunc supplies the current launcher snapshot.
type StatusFunc func() launcher.Snapshot

type Server struct {
	addr   string
	status StatusFunc
	logger logging.Logger
	http   *http.Server
}

func NewServer(addr string, status StatusFunc, logger logging.Logger) *Server {
	s := &Server{
		addr:   addr,
		status: status,
		logger: logger,
	}

	registry := prometheus.NewRegistry()
	registerMetrics(registry, status)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", s.handleHealthz)
	router.Get("/status", s.handleStatus)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves in the background. Endpoint errors are logged, never fatal.
func (s *Server) Start() {
	go func() {
		s.logger.Infof("Status endpoint listening on %s", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Status endpoint error: %v", err)
		}
	}()
}

// Stop shuts the endpoint down gracefully.
func (s *Server) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnf("Status endpoint shutdown error: %v", err)
	}
}

// handleHealthz answers 200 once the launcher reaches ready-idle and 503
// before that or after a failure, matching what a container orchestrator
// expects from a readiness endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snapshot := s.status()
	if snapshot.State == launcher.StateReadyIdle {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(string(snapshot.State)))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.status()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Errorf("Failed to encode status response: %v", err)
	}
}
