package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsloom/newsloom/internal/ingest"
	"github.com/newsloom/newsloom/internal/query"
)

// scrapeTimeout bounds a background crawl plus its ingestion.
const scrapeTimeout = 15 * time.Minute

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.Filter{
		Search:  q.Get("search"),
		Source:  q.Get("source"),
		SortAsc: strings.EqualFold(q.Get("sort"), "asc"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := s.query.FindAll(r.Context(), f)
	if err != nil {
		s.logger.Error("article listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRecentArticles(w http.ResponseWriter, r *http.Request) {
	page, err := s.query.RecentArticles(r.Context())
	if err != nil {
		s.logger.Error("recent articles lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateArticles(w http.ResponseWriter, r *http.Request) {
	var inputs []ingest.ArticleInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	articles, created, err := s.ingest.CreateArticles(r.Context(), inputs)
	switch {
	case errors.Is(err, ingest.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid article batch")
		return
	case err != nil:
		s.logger.Error("article creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"articles": articles,
		"created":  created,
	})
}

func (s *Server) handleSearchArticles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Word string `json:"word"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Word == "" {
		writeError(w, http.StatusBadRequest, "missing search word")
		return
	}
	docs, err := s.searcher.SearchByTitle(r.Context(), body.Word)
	if err != nil {
		s.logger.Error("title search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleScrape kicks off a crawl-plus-ingest run in the background. Only
// one run is allowed at a time.
func (s *Server) handleScrape(w http.ResponseWriter, _ *http.Request) {
	if !s.scraping.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "scrape already running")
		return
	}
	runID := uuid.NewString()
	go func() {
		defer s.scraping.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
		defer cancel()
		logger := s.logger.With(zap.String("run_id", runID))

		records, err := s.crawler.ExtractArticles(ctx)
		if err != nil {
			logger.Error("scrape failed", zap.Error(err))
			return
		}
		res, err := s.ingest.BulkCreateArticlesWithComments(ctx, records)
		if err != nil {
			logger.Error("scrape ingestion failed", zap.Error(err))
			return
		}
		logger.Info("scrape complete",
			zap.Int("articles_created", res.ArticlesCreated),
			zap.Int("comments_created", res.CommentsCreated))
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"run_id": runID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
