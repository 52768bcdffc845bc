package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/newsloom/newsloom/internal/model"
)

const commentColumns = `c.id, c.body, c.published_date, c.author_id,
	c.article_id, c.created_at, c.updated_at, c.deleted_at`

// CommentCandidate is one comment queued for insertion.
type CommentCandidate struct {
	Text          string
	PublishedDate *time.Time
	AuthorID      *int64
	ArticleID     *int64
}

// CommentStore persists comments. Identity is the (body, author, article)
// triple, guarded by a unique index so duplicate candidates are dropped
// atomically at insert time.
type CommentStore struct {
	db DB
}

// NewCommentStore wires a CommentStore to the given pool.
func NewCommentStore(db DB) *CommentStore {
	return &CommentStore{db: db}
}

// InsertMany bulk-inserts the candidates, skipping any whose identity
// triple already exists. Returns the rows actually created.
func (s *CommentStore) InsertMany(ctx context.Context, candidates []CommentCandidate) ([]model.Comment, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	bodies := make([]string, len(candidates))
	published := make([]*time.Time, len(candidates))
	authors := make([]*int64, len(candidates))
	articles := make([]*int64, len(candidates))
	for i, c := range candidates {
		bodies[i] = c.Text
		published[i] = c.PublishedDate
		authors[i] = c.AuthorID
		articles[i] = c.ArticleID
	}

	query := `
INSERT INTO comments (body, published_date, author_id, article_id)
SELECT * FROM unnest($1::text[], $2::timestamptz[], $3::bigint[], $4::bigint[])
ON CONFLICT (article_id, author_id, md5(body)) DO NOTHING
RETURNING id, body, published_date, author_id, article_id, created_at, updated_at, deleted_at`
	rows, err := s.db.Query(ctx, query, bodies, published, authors, articles)
	if err != nil {
		return nil, fmt.Errorf("insert comments: %w", err)
	}
	defer rows.Close()
	return scanComments(rows)
}

// ListForArticles loads every non-deleted comment of the given articles
// with author rows joined, oldest first.
func (s *CommentStore) ListForArticles(ctx context.Context, articleIDs []int64) ([]model.Comment, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s,
	u.id, u.username, u.created_at, u.updated_at, u.deleted_at
FROM comments c
LEFT JOIN users u ON u.id = c.author_id
WHERE c.article_id = ANY($1) AND c.deleted_at IS NULL
ORDER BY c.published_date ASC NULLS LAST, c.id ASC`, commentColumns)
	rows, err := s.db.Query(ctx, query, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var (
			c        model.Comment
			uID      *int64
			username *string
			uCreated *time.Time
			uUpdated *time.Time
			uDeleted *time.Time
		)
		if err := rows.Scan(
			&c.ID, &c.Text, &c.PublishedDate, &c.AuthorID,
			&c.ArticleID, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
			&uID, &username, &uCreated, &uUpdated, &uDeleted,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if uID != nil {
			c.Author = &model.User{
				ID:        *uID,
				Username:  *username,
				CreatedAt: *uCreated,
				UpdatedAt: *uUpdated,
				DeletedAt: uDeleted,
			}
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

func scanComments(rows pgx.Rows) ([]model.Comment, error) {
	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.ID, &c.Text, &c.PublishedDate, &c.AuthorID,
			&c.ArticleID, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}
