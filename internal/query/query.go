// Package query serves the read path: filtered article pages and the
// cached most-recent listing.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newsloom/newsloom/internal/cache"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/model"
	"github.com/newsloom/newsloom/internal/store"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	recentLimit = 30
	recentTTL   = 10 * time.Minute
)

// ArticleStore is the slice of the article persistence layer the read
// path needs.
type ArticleStore interface {
	FindAll(ctx context.Context, filter store.ListFilter) ([]model.Article, int, error)
}

// CommentStore is the slice of the comment persistence layer the read
// path needs.
type CommentStore interface {
	ListForArticles(ctx context.Context, articleIDs []int64) ([]model.Comment, error)
}

// Filter is a caller-facing page request. Out-of-range values are
// clamped rather than rejected.
type Filter struct {
	Search  string
	Source  string
	Page    int
	Limit   int
	SortAsc bool
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
}

// Page is one page of articles plus pagination bookkeeping.
type Page struct {
	Items      []model.Article `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// Service answers article queries, with a cache-aside shortcut for the
// most recent page.
type Service struct {
	articles ArticleStore
	comments CommentStore
	cache    cache.Cache
	logger   *zap.Logger
}

// New wires a query Service.
func New(articles ArticleStore, comments CommentStore, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{articles: articles, comments: comments, cache: c, logger: logger}
}

// FindAll returns one page of articles matching the filter, newest first
// unless ascending order is requested, with each article's comments
// attached.
func (s *Service) FindAll(ctx context.Context, f Filter) (Page, error) {
	f.normalize()
	articles, total, err := s.articles.FindAll(ctx, store.ListFilter{
		Search:   f.Search,
		Source:   f.Source,
		Limit:    f.Limit,
		Offset:   (f.Page - 1) * f.Limit,
		SortDesc: !f.SortAsc,
	})
	if err != nil {
		return Page{}, err
	}
	if err := s.hydrateComments(ctx, articles); err != nil {
		return Page{}, err
	}
	return Page{
		Items:      articles,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

// RecentArticles returns the newest page of articles, served verbatim
// from the cache when the entry is fresh. The whole page object is
// cached, pagination bookkeeping included. A cache backend failure
// degrades to a direct database read.
func (s *Service) RecentArticles(ctx context.Context) (Page, error) {
	raw, err := s.cache.Get(ctx, cache.KeyRecentArticles)
	switch {
	case err == nil:
		var page Page
		if jsonErr := json.Unmarshal([]byte(raw), &page); jsonErr == nil {
			metrics.ObserveCacheLookup("hit")
			return page, nil
		}
		// Unreadable entry: treat as a miss and overwrite below.
		s.logger.Warn("discarding corrupt recent-articles entry")
	case !errors.Is(err, cache.ErrMiss):
		metrics.ObserveSideEffectFailure("cache")
		s.logger.Warn("recent-articles cache read failed", zap.Error(err))
	}
	metrics.ObserveCacheLookup("miss")

	page, err := s.FindAll(ctx, Filter{Page: 1, Limit: recentLimit})
	if err != nil {
		return Page{}, err
	}

	if encoded, err := json.Marshal(page); err == nil {
		if err := s.cache.Set(ctx, cache.KeyRecentArticles, string(encoded), recentTTL); err != nil {
			metrics.ObserveSideEffectFailure("cache")
			s.logger.Warn("recent-articles cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

// hydrateComments attaches every comment belonging to the given articles,
// in one query.
func (s *Service) hydrateComments(ctx context.Context, articles []model.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]int64, len(articles))
	byID := make(map[int64]*model.Article, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
		byID[articles[i].ID] = &articles[i]
	}
	comments, err := s.comments.ListForArticles(ctx, ids)
	if err != nil {
		return fmt.Errorf("hydrate comments: %w", err)
	}
	for _, c := range comments {
		if c.ArticleID == nil {
			continue
		}
		if a, ok := byID[*c.ArticleID]; ok {
			a.Comments = append(a.Comments, c)
		}
	}
	return nil
}
