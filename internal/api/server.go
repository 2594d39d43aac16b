// Package api exposes the controller's admin surface: status snapshot,
// manual evaluation, operator reset, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/FairForge/meridian/internal/alerting"
	"github.com/FairForge/meridian/internal/failover"
)

// Controller is the slice of the failover manager the API needs.
type Controller interface {
	GetStatus() failover.Status
	TriggerEvaluation(ctx context.Context) error
	Reset(activeRegion string) error
}

// AlertReader exposes the currently firing alerts.
type AlertReader interface {
	Firing() []alerting.Alert
}

type Server struct {
	controller Controller
	alerts     AlertReader
	registry   *prometheus.Registry
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
}

// NewServer wires the admin HTTP server.
func NewServer(port int, controller Controller, alerts AlertReader, registry *prometheus.Registry, logger *zap.Logger) *Server {
	s := &Server{
		controller: controller,
		alerts:     alerts,
		registry:   registry,
		logger:     logger,
		router:     mux.NewRouter(),
		startTime:  time.Now(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics",
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	s.router.HandleFunc("/v1/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/v1/alerts", s.handleAlerts).Methods("GET")
	s.router.HandleFunc("/v1/evaluate", s.handleEvaluate).Methods("POST")
	s.router.HandleFunc("/v1/reset", s.handleReset).Methods("POST")
}

// Start runs the server until it fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("admin server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router returns the handler, exposed for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.GetStatus())
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"firing": s.alerts.Firing(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	err := s.controller.TriggerEvaluation(r.Context())
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]string{"result": "evaluated"})
	case errors.Is(err, failover.ErrFailoverInProgress):
		s.writeError(w, http.StatusConflict, "failover already in progress")
	case errors.Is(err, failover.ErrNoHealthyTarget):
		s.writeError(w, http.StatusConflict, "no healthy failover target")
	case errors.Is(err, failover.ErrSuspended):
		s.writeError(w, http.StatusConflict, "automatic failover suspended, reset required")
	default:
		s.logger.Error("manual evaluation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "evaluation failed")
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActiveRegion string `json:"active_region"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActiveRegion == "" {
		s.writeError(w, http.StatusBadRequest, "active_region is required")
		return
	}

	err := s.controller.Reset(req.ActiveRegion)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]string{
			"result":        "reset",
			"active_region": req.ActiveRegion,
		})
	case errors.Is(err, failover.ErrUnknownRegion):
		s.writeError(w, http.StatusNotFound, "unknown region")
	case errors.Is(err, failover.ErrFailoverInProgress):
		s.writeError(w, http.StatusConflict, "failover in progress")
	default:
		s.logger.Error("reset failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "reset failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
