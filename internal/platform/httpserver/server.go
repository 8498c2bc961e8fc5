package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	reviewworkflow "hoaportal/contexts/governance/review-workflow"
	reviewerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	reviewhttp "hoaportal/contexts/governance/review-workflow/transport/http"
	_ "hoaportal/internal/platform/httpserver/docs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title HOA Review Workflow API
// @version 1.0
// @description Architectural review requests, votes and outcome projections.
// @BasePath /
type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	http     *http.Server
	review   reviewworkflow.Module
	gatherer prometheus.Gatherer
	ready    func(context.Context) error
}

// New builds the review API. A nil gatherer serves the default registry on
// /metrics.
func New(
	review reviewworkflow.Module,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
	addr string,
) *Server {
	s := newServer(gatherer, logger, addr)
	s.review = review
	s.registerRoutes()
	return s
}

// NewOps serves only /healthz, /readyz and /metrics, for the worker process.
func NewOps(gatherer prometheus.Gatherer, logger *slog.Logger, addr string) *Server {
	s := newServer(gatherer, logger, addr)
	s.registerOpsRoutes()
	return s
}

func newServer(gatherer prometheus.Gatherer, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		gatherer: gatherer,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetReadiness installs the /readyz dependency check.
func (s *Server) SetReadiness(check func(context.Context) error) {
	s.ready = check
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerOpsRoutes() {
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
}

func (s *Server) registerRoutes() {
	s.registerOpsRoutes()
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/review-requests", s.handleCreateRequest)
	s.mux.HandleFunc("GET /v1/review-requests/{request_id}", s.handleGetRequest)
	s.mux.HandleFunc("POST /v1/review-requests/{request_id}/transitions", s.handleTransition)
	s.mux.HandleFunc("POST /v1/review-requests/{request_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/review-requests/{request_id}/votes", s.handleListVotes)
	s.mux.HandleFunc("GET /v1/review-requests/{request_id}/projection", s.handleProjection)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed",
				"event", "http_readiness_failed",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"error", err.Error(),
			)
			writeReviewError(w, http.StatusServiceUnavailable, "not_ready", "dependencies unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reviewhttp.CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.review.Handler.CreateRequestHandler(r.Context(), actorID, req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.review.Handler.GetRequestHandler(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reviewhttp.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.review.Handler.TransitionHandler(r.Context(), actorID, r.PathValue("request_id"), req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reviewhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.review.Handler.CastVoteHandler(r.Context(), actorID, r.PathValue("request_id"), req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.review.Handler.ListVotesHandler(r.Context(), r.PathValue("request_id"), query.Get("stage"))
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.review.Handler.ProjectionHandler(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireActor reads the member id the portal gateway resolved for the
// caller.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	if actorID == "" {
		writeReviewError(w, http.StatusUnauthorized, "missing_actor", "X-Actor-Id header is required")
		return "", false
	}
	return actorID, true
}

func writeReviewDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reviewerrors.ErrRequestNotFound):
		writeReviewError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, reviewerrors.ErrInvalidRequestInput):
		writeReviewError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, reviewerrors.ErrInvalidVote):
		writeReviewError(w, http.StatusBadRequest, "invalid_vote", err.Error())
	case errors.Is(err, reviewerrors.ErrUnknownWorkflowVersion):
		writeReviewError(w, http.StatusBadRequest, "unknown_workflow_version", err.Error())
	case errors.Is(err, reviewerrors.ErrUnauthorizedActor),
		errors.Is(err, reviewerrors.ErrUnknownActor):
		writeReviewError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, reviewerrors.ErrVotingClosed):
		writeReviewError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, reviewerrors.ErrDuplicateVote):
		writeReviewError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, reviewerrors.ErrDuplicateRequest),
		errors.Is(err, reviewerrors.ErrConflict):
		writeReviewError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeReviewError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeReviewError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, reviewhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
