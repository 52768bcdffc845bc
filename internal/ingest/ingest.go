// Package ingest turns scraped records into persisted entities. The write
// path runs in three stages, authors first, then articles, then comments,
// so that every foreign key resolves before the row needing it is built.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/newsloom/newsloom/internal/cache"
	"github.com/newsloom/newsloom/internal/metrics"
	"github.com/newsloom/newsloom/internal/model"
	"github.com/newsloom/newsloom/internal/search"
	"github.com/newsloom/newsloom/internal/store"
)

// ErrValidation marks a batch rejected before any write happened.
var ErrValidation = errors.New("invalid article batch")

// UserStore is the slice of the user persistence layer the engine needs.
type UserStore interface {
	Upsert(ctx context.Context, usernames []string) ([]model.User, error)
}

// ArticleStore is the slice of the article persistence layer the engine
// needs.
type ArticleStore interface {
	FindByURLKeys(ctx context.Context, keys []string) ([]model.Article, error)
	InsertMany(ctx context.Context, candidates []store.ArticleCandidate) ([]model.Article, error)
}

// CommentStore is the slice of the comment persistence layer the engine
// needs.
type CommentStore interface {
	InsertMany(ctx context.Context, candidates []store.CommentCandidate) ([]model.Comment, error)
}

// ArticleInput is one article submitted for creation. Only the URL is
// mandatory: it is the natural key, and it is accepted as an opaque
// non-empty string, stored exactly as given.
type ArticleInput struct {
	Title         string     `json:"title"`
	URL           string     `json:"url" validate:"required"`
	Source        string     `json:"source"`
	PublishedDate *time.Time `json:"published_date"`
	AuthorID      *int64     `json:"author_id"`
}

// Result summarizes one bulk ingestion pass.
type Result struct {
	Articles        []model.Article
	ArticlesCreated int
	CommentsCreated int
	UsersResolved   int
}

// Service is the ingestion engine.
type Service struct {
	users    UserStore
	articles ArticleStore
	comments CommentStore
	cache    cache.Cache
	index    search.Index
	validate *validator.Validate
	logger   *zap.Logger
}

// New wires an ingestion Service.
func New(users UserStore, articles ArticleStore, comments CommentStore, c cache.Cache, index search.Index, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		articles: articles,
		comments: comments,
		cache:    c,
		index:    index,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// CreateArticles persists a batch of articles. Validation is
// all-or-nothing: one bad input rejects the whole batch before any write.
// Duplicate URLs inside the batch collapse to the first occurrence, and
// URLs already persisted are returned as their existing rows. The result
// holds one article per distinct normalized URL, in first-seen order.
func (s *Service) CreateArticles(ctx context.Context, inputs []ArticleInput) ([]model.Article, int, error) {
	for i, in := range inputs {
		if err := s.validate.Struct(in); err != nil {
			metrics.ObserveIngestBatch("rejected")
			return nil, 0, fmt.Errorf("%w: input %d: %v", ErrValidation, i, err)
		}
	}

	// First occurrence of each normalized URL wins.
	var keys []string
	candidateByKey := make(map[string]store.ArticleCandidate)
	for _, in := range inputs {
		key := model.NormalizeURL(in.URL)
		if _, ok := candidateByKey[key]; ok {
			continue
		}
		keys = append(keys, key)
		candidateByKey[key] = store.ArticleCandidate{
			Title:         in.Title,
			URL:           in.URL,
			Source:        in.Source,
			PublishedDate: in.PublishedDate,
			AuthorID:      in.AuthorID,
		}
	}

	existing, err := s.articles.FindByURLKeys(ctx, keys)
	if err != nil {
		metrics.ObserveIngestBatch("error")
		return nil, 0, err
	}
	existingByKey := make(map[string]model.Article, len(existing))
	for _, a := range existing {
		existingByKey[model.NormalizeURL(a.URL)] = a
	}

	var fresh []store.ArticleCandidate
	for _, key := range keys {
		if _, ok := existingByKey[key]; !ok {
			fresh = append(fresh, candidateByKey[key])
		}
	}

	created, err := s.articles.InsertMany(ctx, fresh)
	if err != nil {
		metrics.ObserveIngestBatch("error")
		return nil, 0, err
	}
	createdByKey := make(map[string]model.Article, len(created))
	for _, a := range created {
		createdByKey[model.NormalizeURL(a.URL)] = a
	}

	out := make([]model.Article, 0, len(keys))
	for _, key := range keys {
		if a, ok := existingByKey[key]; ok {
			out = append(out, a)
		} else if a, ok := createdByKey[key]; ok {
			out = append(out, a)
		}
		// A key in neither map lost a concurrent insert race; it will be
		// picked up by the next batch.
	}

	metrics.ObserveIngestRows("articles", "created", len(created))
	metrics.ObserveIngestRows("articles", "existing", len(out)-len(created))
	metrics.ObserveIngestBatch("ok")

	if len(created) > 0 {
		s.propagate(ctx, created)
	}
	return out, len(created), nil
}

// BulkCreateArticlesWithComments ingests a full crawl batch. Stage A
// resolves every author username to a user row, stage B persists the
// articles, and stage C attaches the comments to whichever article row
// now owns each record's normalized URL.
func (s *Service) BulkCreateArticlesWithComments(ctx context.Context, records []model.ArticleRecord) (Result, error) {
	users, err := s.resolveAuthors(ctx, records)
	if err != nil {
		metrics.ObserveIngestBatch("error")
		return Result{}, err
	}
	idByUsername := make(map[string]int64, len(users))
	for _, u := range users {
		idByUsername[u.Username] = u.ID
	}

	inputs := make([]ArticleInput, len(records))
	for i, rec := range records {
		inputs[i] = ArticleInput{
			Title:         rec.Title,
			URL:           rec.URL,
			Source:        rec.Source,
			PublishedDate: rec.PublishedDate,
			AuthorID:      userID(idByUsername, rec.Author),
		}
	}
	articles, createdCount, err := s.CreateArticles(ctx, inputs)
	if err != nil {
		return Result{}, err
	}
	articleIDByKey := make(map[string]int64, len(articles))
	for _, a := range articles {
		articleIDByKey[model.NormalizeURL(a.URL)] = a.ID
	}

	var candidates []store.CommentCandidate
	for _, rec := range records {
		// A record whose article lost a concurrent insert race keeps its
		// comments with no article reference rather than dropping them.
		var articleID *int64
		if id, ok := articleIDByKey[model.NormalizeURL(rec.URL)]; ok {
			articleID = &id
		}
		for _, cr := range rec.Comments {
			candidates = append(candidates, store.CommentCandidate{
				Text:          cr.Text,
				PublishedDate: cr.PublishedDate,
				AuthorID:      userID(idByUsername, cr.Author),
				ArticleID:     articleID,
			})
		}
	}
	createdComments, err := s.comments.InsertMany(ctx, candidates)
	if err != nil {
		metrics.ObserveIngestBatch("error")
		return Result{}, err
	}
	metrics.ObserveIngestRows("comments", "created", len(createdComments))
	metrics.ObserveIngestRows("comments", "existing", len(candidates)-len(createdComments))

	s.logger.Info("bulk ingest complete",
		zap.Int("articles", len(articles)),
		zap.Int("articles_created", createdCount),
		zap.Int("comments_created", len(createdComments)),
		zap.Int("users", len(users)))

	return Result{
		Articles:        articles,
		ArticlesCreated: createdCount,
		CommentsCreated: len(createdComments),
		UsersResolved:   len(users),
	}, nil
}

// resolveAuthors upserts every distinct username in the batch, article
// and comment authors alike.
func (s *Service) resolveAuthors(ctx context.Context, records []model.ArticleRecord) ([]model.User, error) {
	seen := make(map[string]struct{})
	var usernames []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		usernames = append(usernames, name)
	}
	for _, rec := range records {
		add(rec.Author)
		for _, cr := range rec.Comments {
			add(cr.Author)
		}
	}
	users, err := s.users.Upsert(ctx, usernames)
	if err != nil {
		return nil, err
	}
	metrics.ObserveIngestRows("users", "resolved", len(users))
	return users, nil
}

// propagate pushes freshly created articles into the cache and the
// search index. Both are derived stores, so a failure here is logged and
// counted but never fails the ingestion that already committed.
func (s *Service) propagate(ctx context.Context, created []model.Article) {
	if err := s.cache.Delete(ctx, cache.KeyRecentArticles); err != nil {
		metrics.ObserveSideEffectFailure("cache")
		s.logger.Warn("recent-articles invalidation failed", zap.Error(err))
	}
	docs := make([]search.Document, len(created))
	for i, a := range created {
		docs[i] = search.DocumentFromArticle(a)
	}
	if err := s.index.Upsert(ctx, docs); err != nil {
		metrics.ObserveSideEffectFailure("search")
		s.logger.Warn("search indexing failed",
			zap.Int("documents", len(docs)),
			zap.Error(err))
	}
}

func userID(idByUsername map[string]int64, username string) *int64 {
	if username == "" {
		return nil
	}
	id, ok := idByUsername[username]
	if !ok {
		return nil
	}
	return &id
}
