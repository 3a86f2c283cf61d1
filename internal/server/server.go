package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iqtlabs/gamutrf/internal/config"
	"github.com/iqtlabs/gamutrf/internal/domain"
	"github.com/iqtlabs/gamutrf/internal/service"
)

const (
	apiVersion = "/v1"

	msgInvalidValues = "Invalid values in request"
	msgExcluded      = "Requested frequency is excluded"
	msgRequested     = "Requested recording"

	shutdownTimeout = 5 * time.Second
)

// Server exposes the recording service over HTTP
type Server struct {
	service  service.Service
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// New creates a new web server instance
func New(svc service.Service, cfg *config.Config) *Server {
	return &Server{
		service: svc,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return originAllowed(cfg.CORSOrigins, r.Header.Get("Origin")) },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// paths lists the routes below apiVersion, in the order /v1 reports them.
func paths() []string {
	return []string{
		"",
		"/info",
		"/record/{center_freq}/{sample_count}/{sample_rate}",
		"/status",
		"/jobs",
		"/jobs/{id}",
		"/events",
	}
}

// Handler returns the API routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(apiVersion, s.handleEndpoints)
	mux.HandleFunc(apiVersion+"/{$}", s.handleEndpoints)
	mux.HandleFunc(apiVersion+"/info", s.handleInfo)
	mux.HandleFunc(apiVersion+"/record/{center_freq}/{sample_count}/{sample_rate}", s.handleRecord)
	mux.HandleFunc(apiVersion+"/status", s.handleStatus)
	mux.HandleFunc(apiVersion+"/jobs", s.handleJobs)
	mux.HandleFunc(apiVersion+"/jobs/{id}", s.handleJob)
	mux.HandleFunc(apiVersion+"/events", s.handleEvents)
	return CORSMiddleware(s.cfg.CORSOrigins, mux)
}

// Run serves the API until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("Starting gamutrf API server",
		"addr", srv.Addr,
		"sdr", s.cfg.SDR,
		"path", s.cfg.Path,
		"localhost_url", fmt.Sprintf("http://localhost:%d%s", s.cfg.Port, apiVersion))

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	slog.Info("Shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// handleEndpoints lists the available API routes
func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	endpoints := make([]string, 0, len(paths()))
	for _, p := range paths() {
		endpoints = append(endpoints, apiVersion+p)
	}
	s.sendJSON(w, http.StatusOK, endpoints)
}

// handleInfo returns the recorder version and configuration
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.service.Info())
}

// handleRecord validates a recording request and queues it
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}

	req, err := domain.ParseRecordingRequest(
		r.PathValue("center_freq"),
		r.PathValue("sample_count"),
		r.PathValue("sample_rate"))
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, msgInvalidValues,
			"operation", "record", "reason", err)
		return
	}

	if s.service.Excluded(req.CenterFreq) {
		s.sendErrorResponse(w, http.StatusBadRequest, msgExcluded,
			"operation", "record", "center_freq", req.CenterFreq)
		return
	}

	job, err := s.service.Submit(req)
	if err != nil {
		s.sendErrorResponse(w, http.StatusServiceUnavailable,
			fmt.Sprintf("Failed to queue recording: %v", err),
			"operation", "record")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  msgRequested,
		"job_id":  job.ID,
	})
}

// handleStatus returns the in-flight job and queue depth
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.service.Status())
}

// handleJobs returns recent jobs, newest first
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.sendErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer",
				"operation", "jobs", "limit", raw)
			return
		}
		limit = n
	}

	jobs, err := s.service.Jobs(r.Context(), limit)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load jobs: %v", err), "operation", "jobs")
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":        jobs,
		"total_count": len(jobs),
	})
}

// handleJob returns one job by id
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if !s.requireGet(w, r) {
		return
	}

	id := r.PathValue("id")
	job, found, err := s.service.Job(r.Context(), id)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load job: %v", err), "operation", "job", "job_id", id)
		return
	}
	if !found {
		s.sendErrorResponse(w, http.StatusNotFound, "Job not found", "operation", "job", "job_id", id)
		return
	}
	s.sendJSON(w, http.StatusOK, job)
}

func (s *Server) requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed",
		"method", r.Method, "path", r.URL.Path)
	return false
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// sendErrorResponse logs the error with context and sends a JSON error body.
// The message is reported under both status and error.
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	if statusCode >= http.StatusInternalServerError {
		slog.Error("Sending error response to client", logFields...)
	} else {
		slog.Info("Rejected request", logFields...)
	}

	s.sendJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"status":  errorMsg,
		"error":   errorMsg,
	})
}
