// Package api exposes the HTTP surface: article reads, batch creation,
// title search, and the scrape trigger.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/newsloom/newsloom/internal/ingest"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/model"
	"github.com/newsloom/newsloom/internal/query"
	"github.com/newsloom/newsloom/internal/search"
)

// IngestService is the write-path surface the API depends on.
type IngestService interface {
	CreateArticles(ctx context.Context, inputs []ingest.ArticleInput) ([]model.Article, int, error)
	BulkCreateArticlesWithComments(ctx context.Context, records []model.ArticleRecord) (ingest.Result, error)
}

// QueryService is the read-path surface the API depends on.
type QueryService interface {
	FindAll(ctx context.Context, f query.Filter) (query.Page, error)
	RecentArticles(ctx context.Context) (query.Page, error)
}

// Searcher answers full-text title lookups.
type Searcher interface {
	SearchByTitle(ctx context.Context, word string) ([]search.Document, error)
}

// CrawlRunner produces a fresh batch of scraped records.
type CrawlRunner interface {
	ExtractArticles(ctx context.Context) ([]model.ArticleRecord, error)
}

// Config carries the HTTP server tunables.
type Config struct {
	Port           int
	RequestTimeout time.Duration
}

// Server is the HTTP front end.
type Server struct {
	router   chi.Router
	logger   *zap.Logger
	ingest   IngestService
	query    QueryService
	searcher Searcher
	crawler  CrawlRunner
	ready    func(ctx context.Context) error

	scraping atomic.Bool
}

// New assembles the router. ready is probed by the readiness endpoint;
// a nil ready reports ready unconditionally.
func New(cfg Config, logger *zap.Logger, ing IngestService, q QueryService, searcher Searcher, crawler CrawlRunner, ready func(ctx context.Context) error) *Server {
	s := &Server{
		logger:   logger,
		ingest:   ing,
		query:    q,
		searcher: searcher,
		crawler:  crawler,
		ready:    ready,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/articles", s.handleListArticles)
		r.Get("/articles/recent", s.handleRecentArticles)
		r.Post("/articles", s.handleCreateArticles)
		r.Post("/articles/search", s.handleSearchArticles)
		r.Post("/scrape", s.handleScrape)
	})

	s.router = r
	return s
}

// Handler returns the assembled http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// logRequests emits one structured line per request and feeds the HTTP
// metrics.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), elapsed)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness probe failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
