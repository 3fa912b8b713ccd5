package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/pipeline"
	"github.com/couchcryptid/spot-price-refiner/internal/scheduler"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// DayRunner runs one refine attempt over a whole day on demand.
type DayRunner interface {
	RunNow(ctx context.Context, day domain.Day) (pipeline.RunReport, error)
}

// Server exposes health, readiness, metrics, and manual refine endpoints.
type Server struct {
	httpServer *http.Server
	runner     DayRunner
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// POST /refine routes.
func NewServer(addr string, ready ReadinessChecker, runner DayRunner, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		runner: runner,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /refine", s.handleRefine)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type refineResponse struct {
	Date    string            `json:"date"`
	Refined []int             `json:"refined"`
	Failed  map[string]string `json:"failed,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// handleRefine runs every hour of ?day= (today or tomorrow) once. Partial
// failures answer 500 with the per-hour errors in the body.
func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	day, err := domain.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, refineResponse{Error: err.Error()})
		return
	}

	s.logger.Info("manual refine requested", "day", day.String())
	report, err := s.runner.RunNow(r.Context(), day)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, refineResponse{Error: err.Error()})
		return
	case err != nil && report.Date == "":
		writeJSON(w, http.StatusInternalServerError, refineResponse{Error: err.Error()})
		return
	}

	resp := refineResponse{Date: report.Date, Refined: slices.Sorted(slices.Values(report.Refined))}
	if resp.Refined == nil {
		resp.Refined = []int{}
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusInternalServerError
		resp.Failed = make(map[string]string, len(report.Failed))
		for hour, herr := range report.Failed {
			resp.Failed[strconv.Itoa(hour)] = herr.Error()
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
