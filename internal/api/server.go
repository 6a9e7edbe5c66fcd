// Package api serves the scan endpoints over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/nutriscan/internal/core/domain"
	"github.com/vietddude/nutriscan/internal/service"
)

// MaxBodyBytes bounds request bodies; base64 photos are the largest payload.
const MaxBodyBytes = 10 << 20

// Analyzer is the scan service consumed by the handlers.
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*domain.AnalysisResult, error)
	Ask(ctx context.Context, req service.AskRequest) (*domain.FollowUpAnswer, error)
	Nutrition(ctx context.Context, food string) ([]domain.NutritionRecord, error)
	Conditions() []service.ConditionInfo
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP server.
type Options struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server provides the HTTP API.
type Server struct {
	analyzer Analyzer
	cache    Pinger
	log      *slog.Logger
	handler  http.Handler
	server   *http.Server
}

// NewServer creates a new API server. cache may be nil.
func NewServer(analyzer Analyzer, cache Pinger, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		analyzer: analyzer,
		cache:    cache,
		log:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/nutrition", s.handleNutrition)
	mux.HandleFunc("GET /api/conditions", s.handleConditions)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = s.withRequestID(s.withMetrics(s.withRecovery(mux)))
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("API server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
