package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/newsloom/newsloom/internal/model"
)

const articleColumns = `a.id, a.title, a.url, a.source, a.published_date,
	a.author_id, a.created_at, a.updated_at, a.deleted_at`

// ArticleCandidate is one row queued for insertion by the ingestion engine.
type ArticleCandidate struct {
	Title         string
	URL           string
	Source        string
	PublishedDate *time.Time
	AuthorID      *int64
}

// ListFilter shapes FindAll queries. Zero-valued fields impose no
// constraint; Limit/Offset/SortDesc are applied as given.
type ListFilter struct {
	Search   string
	Source   string
	Limit    int
	Offset   int
	SortDesc bool
}

// ArticleStore persists articles keyed by their normalized URL.
type ArticleStore struct {
	db DB
}

// NewArticleStore wires an ArticleStore to the given pool.
func NewArticleStore(db DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// FindByURLKeys returns every non-deleted article whose normalized URL is
// in keys.
func (s *ArticleStore) FindByURLKeys(ctx context.Context, keys []string) ([]model.Article, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s FROM articles a
WHERE a.url_key = ANY($1) AND a.deleted_at IS NULL`, articleColumns)
	rows, err := s.db.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("select articles by url: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// InsertMany bulk-inserts the candidates, silently skipping any whose
// normalized URL already exists. Only the rows actually created are
// returned; a candidate that loses a concurrent race is simply absent
// from the result, never an error.
func (s *ArticleStore) InsertMany(ctx context.Context, candidates []ArticleCandidate) ([]model.Article, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	titles := make([]string, len(candidates))
	urls := make([]string, len(candidates))
	urlKeys := make([]string, len(candidates))
	sources := make([]*string, len(candidates))
	published := make([]*time.Time, len(candidates))
	authors := make([]*int64, len(candidates))
	for i, c := range candidates {
		titles[i] = c.Title
		urls[i] = c.URL
		urlKeys[i] = model.NormalizeURL(c.URL)
		if c.Source != "" {
			src := c.Source
			sources[i] = &src
		}
		published[i] = c.PublishedDate
		authors[i] = c.AuthorID
	}

	query := fmt.Sprintf(`
INSERT INTO articles (title, url, url_key, source, published_date, author_id)
SELECT * FROM unnest(
	$1::text[], $2::text[], $3::text[], $4::text[], $5::timestamptz[], $6::bigint[]
)
ON CONFLICT (url_key) DO NOTHING
RETURNING %s`, strings.ReplaceAll(articleColumns, "a.", ""))
	rows, err := s.db.Query(ctx, query, titles, urls, urlKeys, sources, published, authors)
	if err != nil {
		return nil, fmt.Errorf("insert articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// FindAll returns one page of non-deleted articles with their author rows
// joined, plus the unpaginated total, ordered by published date.
func (s *ArticleStore) FindAll(ctx context.Context, filter ListFilter) ([]model.Article, int, error) {
	var (
		conds = []string{"a.deleted_at IS NULL"}
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("a.title ILIKE $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conds = append(conds, fmt.Sprintf("a.source = $%d", len(args)))
	}

	order := "ASC"
	if filter.SortDesc {
		order = "DESC"
	}
	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`
SELECT %s,
	u.id, u.username, u.created_at, u.updated_at, u.deleted_at,
	count(*) OVER() AS total
FROM articles a
LEFT JOIN users u ON u.id = a.author_id
WHERE %s
ORDER BY a.published_date %s NULLS LAST, a.id %s
LIMIT $%d OFFSET $%d`,
		articleColumns, strings.Join(conds, " AND "), order, order, limitPos, offsetPos)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select articles: %w", err)
	}
	defer rows.Close()

	var (
		articles []model.Article
		total    int
	)
	for rows.Next() {
		var (
			a        model.Article
			source   *string
			uID      *int64
			username *string
			uCreated *time.Time
			uUpdated *time.Time
			uDeleted *time.Time
		)
		if err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &source, &a.PublishedDate,
			&a.AuthorID, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
			&uID, &username, &uCreated, &uUpdated, &uDeleted,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		if source != nil {
			a.Source = *source
		}
		if uID != nil {
			a.Author = &model.User{
				ID:        *uID,
				Username:  *username,
				CreatedAt: *uCreated,
				UpdatedAt: *uUpdated,
				DeletedAt: uDeleted,
			}
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, total, nil
}

func scanArticles(rows pgx.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		var (
			a      model.Article
			source *string
		)
		if err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &source, &a.PublishedDate,
			&a.AuthorID, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if source != nil {
			a.Source = *source
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}
