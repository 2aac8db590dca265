// Package api exposes the offer pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/metrics"
	"offer-crew/internal/models"
	"offer-crew/internal/runs"
)

const missingFieldsDetail = "tenantName and offerType are required."

// DefaultMaxBodyBytes caps a /chat request body when Config leaves it unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// Pipeline runs one chat request to a terminal envelope.
type Pipeline interface {
	Run(ctx context.Context, req *models.ChatRequest) *models.Envelope
}

// RunLookup returns the latest snapshot of a run.
type RunLookup interface {
	Get(ctx context.Context, runID string) (*runs.Snapshot, error)
}

type Config struct {
	AppName        string
	Framework      string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Server struct {
	pipeline Pipeline
	runs     RunLookup
	config   Config
	logger   logger.Logger
	now      func() time.Time
}

// NewServer builds the API. lookup may be nil when run tracking is disabled.
func NewServer(pipeline Pipeline, lookup RunLookup, cfg Config, log logger.Logger) *Server {
	if cfg.AppName == "" {
		cfg.AppName = "Offer Crew"
	}
	if cfg.Framework == "" {
		cfg.Framework = "offer-crew"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Server{
		pipeline: pipeline,
		runs:     lookup,
		config:   cfg,
		logger:   log,
		now:      time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /runs/{id}", s.handleRun)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return s.logRequests(mux)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge,
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.logger.Info("Received chat request", map[string]interface{}{"tenantName": req.TenantName})

	if err := req.Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, missingFieldsDetail)
		return
	}

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	env := s.pipeline.Run(ctx, &req)
	if !env.Succeeded() {
		writeDetail(w, http.StatusInternalServerError, env.Error)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response": env,
		"status":   "success",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"framework": s.config.Framework,
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": s.config.AppName + " API is running.",
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeDetail(w, http.StatusNotFound, "run tracking is disabled")
		return
	}

	id := r.PathValue("id")
	snap, err := s.runs.Get(r.Context(), id)
	switch {
	case stderrors.Is(err, runs.ErrRunNotFound):
		writeDetail(w, http.StatusNotFound, "run not found")
	case err != nil:
		s.logger.Error("Run lookup failed", map[string]interface{}{"runId": id, "error": err})
		writeDetail(w, http.StatusInternalServerError, "run lookup failed")
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		s.logger.Info("HTTP request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
