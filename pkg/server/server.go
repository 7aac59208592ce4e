// Package server provides the HTTP surface of the gateway: routing, request
// decoding at the boundary, and the fixed response shapes.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/calderaops/answerd/pkg/auth"
	"github.com/calderaops/answerd/pkg/query"
	"github.com/calderaops/answerd/pkg/telemetry"
)

const rootMessage = "Answering gateway for OpenShift and Kubernetes questions"

// Server hosts the REST API.
type Server struct {
	orchestrator *query.Orchestrator
	gate         *auth.Gate
	metrics      *telemetry.HTTPMetrics
	logger       zerolog.Logger
}

// New creates the HTTP server component.
func New(orchestrator *query.Orchestrator, gate *auth.Gate, metrics *telemetry.HTTPMetrics, logger zerolog.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		gate:         gate,
		metrics:      metrics,
		logger:       logger.With().Str("component", "http-server").Logger(),
	}
}

// Routes builds the router. Probes and metrics stay outside the auth gate;
// the query endpoints sit behind it.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/", s.handleRoot)
	r.Get("/liveness", s.handleLiveness)
	r.Get("/readiness", s.handleReadiness)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if s.gate != nil {
			r.Use(s.gate.Wrap)
		}
		r.Post("/v1/query", s.handleQuery)
		r.Post("/v1/debug/query", s.handleDebugQuery)
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootBody{Message: rootMessage, Status: "running"})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusBody{Status: "1"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusBody{Status: "1"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	answer, serr := s.orchestrator.HandleQuery(r.Context(), req)
	if serr != nil {
		writeError(w, serr.Code, serr.Response)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleDebugQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	answer, serr := s.orchestrator.HandleDebugQuery(r.Context(), req)
	if serr != nil {
		writeError(w, serr.Code, serr.Response)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// decodeRequest enforces the boundary schema: the body must be a JSON object.
// Anything else is rejected here with the structured 422 payload before the
// orchestrator is reached.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (query.Request, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read request body")
		writeSchemaViolation(w, nil)
		return query.Request{}, false
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		writeSchemaViolation(w, string(body))
		return query.Request{}, false
	}
	if _, isObject := decoded.(map[string]any); !isObject {
		writeSchemaViolation(w, decoded)
		return query.Request{}, false
	}

	var req query.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeSchemaViolation(w, decoded)
		return query.Request{}, false
	}

	return req, true
}
