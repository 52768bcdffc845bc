package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/model"
)

func newTestIndex(t *testing.T) *Bleve {
	t.Helper()
	idx, err := NewBleve("")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, idx.Close())
	})
	return idx
}

func TestBleveUpsertAndSearchByTitle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := newTestIndex(t)

	published := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	authorID := int64(7)
	require.NoError(t, idx.Upsert(ctx, []Document{
		{ID: "1", Title: "Go generics in practice", Source: "example.com", URL: "http://example.com/go", PublishedDate: &published, AuthorID: &authorID},
		{ID: "2", Title: "Rust borrow checker", Source: "other.com", URL: "http://other.com/rust"},
	}))

	docs, err := idx.SearchByTitle(ctx, "generics")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "1", docs[0].ID)
	require.Equal(t, "Go generics in practice", docs[0].Title)
	require.Equal(t, "example.com", docs[0].Source)
	require.NotNil(t, docs[0].PublishedDate)
	require.True(t, published.Equal(*docs[0].PublishedDate))
	require.NotNil(t, docs[0].AuthorID)
	require.Equal(t, int64(7), *docs[0].AuthorID)
}

func TestBleveUpsertReplacesDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, []Document{{ID: "1", Title: "old headline"}}))
	require.NoError(t, idx.Upsert(ctx, []Document{{ID: "1", Title: "new headline"}}))

	docs, err := idx.SearchByTitle(ctx, "old")
	require.NoError(t, err)
	require.Empty(t, docs)

	docs, err = idx.SearchByTitle(ctx, "new")
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestBleveUpsertNothingIsNoOp(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert(context.Background(), nil))
}

func TestBleveDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, []Document{{ID: "1", Title: "ephemeral"}}))
	require.NoError(t, idx.Delete(ctx, "1"))

	docs, err := idx.SearchByTitle(ctx, "ephemeral")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestDocumentFromArticle(t *testing.T) {
	t.Parallel()

	published := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	authorID := int64(3)
	doc := DocumentFromArticle(model.Article{
		ID:            42,
		Title:         "T",
		URL:           "http://x",
		Source:        "s",
		PublishedDate: &published,
		AuthorID:      &authorID,
	})
	require.Equal(t, "42", doc.ID)
	require.Equal(t, "T", doc.Title)
	require.Equal(t, &authorID, doc.AuthorID)
}
