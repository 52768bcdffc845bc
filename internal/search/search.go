// Package search maintains the full-text article index. The index is a
// derived artifact: best-effort on write, never a source of truth.
package search

import (
	"context"
	"strconv"
	"time"

	"github.com/newsloom/newsloom/internal/model"
)

// Document is the indexed projection of an article, keyed by its
// persisted id.
type Document struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Source        string     `json:"source"`
	URL           string     `json:"url"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	AuthorID      *int64     `json:"author_id,omitempty"`
}

// Index is the search engine contract consumed by ingestion and the API.
type Index interface {
	// Upsert indexes the documents, replacing any previous versions.
	// Indexing zero documents is a no-op.
	Upsert(ctx context.Context, docs []Document) error
	// SearchByTitle runs a text-match query over the title field.
	SearchByTitle(ctx context.Context, word string) ([]Document, error)
	// Delete removes a single document by article id.
	Delete(ctx context.Context, id string) error
	// Close releases index resources.
	Close() error
}

// DocumentFromArticle projects a persisted article into its indexed form.
func DocumentFromArticle(a model.Article) Document {
	return Document{
		ID:            strconv.FormatInt(a.ID, 10),
		Title:         a.Title,
		Source:        a.Source,
		URL:           a.URL,
		PublishedDate: a.PublishedDate,
		AuthorID:      a.AuthorID,
	}
}
