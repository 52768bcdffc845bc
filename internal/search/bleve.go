package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Bleve implements Index on an embedded bleve index.
type Bleve struct {
	idx bleve.Index
}

// NewBleve opens (or creates) a bleve index at path. An empty path builds
// a memory-only index, used in tests.
func NewBleve(path string) (*Bleve, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create mem index: %w", err)
		}
		return &Bleve{idx: idx}, nil
	}
	idx, err := bleve.Open(path)
	if err != nil {
		if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return nil, fmt.Errorf("open index: %w", err)
		}
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	}
	return &Bleve{idx: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Store = true
	doc.AddFieldMappingsAt("title", title)

	for _, field := range []string{"source", "url", "published_date"} {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = true
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(field, fm)
	}

	author := bleve.NewNumericFieldMapping()
	author.Store = true
	author.IncludeInAll = false
	doc.AddFieldMappingsAt("author_id", author)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Upsert indexes the documents in one batch.
func (b *Bleve) Upsert(_ context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := b.idx.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, toIndexed(doc)); err != nil {
			return fmt.Errorf("stage document %s: %w", doc.ID, err)
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// SearchByTitle matches word against the title field and returns the
// stored fields of each hit in default relevance order.
func (b *Bleve) SearchByTitle(_ context.Context, word string) ([]Document, error) {
	query := bleve.NewMatchQuery(word)
	query.SetField("title")
	req := bleve.NewSearchRequest(query)
	req.Fields = []string{"*"}

	result, err := b.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search title: %w", err)
	}

	docs := make([]Document, 0, len(result.Hits))
	for _, hit := range result.Hits {
		docs = append(docs, fromFields(hit.ID, hit.Fields))
	}
	return docs, nil
}

// Delete removes a single document; deleting an unknown id is not an
// error.
func (b *Bleve) Delete(_ context.Context, id string) error {
	if err := b.idx.Delete(id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Close releases the index.
func (b *Bleve) Close() error {
	if err := b.idx.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return nil
}

func toIndexed(doc Document) map[string]any {
	fields := map[string]any{
		"title":  doc.Title,
		"source": doc.Source,
		"url":    doc.URL,
	}
	if doc.PublishedDate != nil {
		fields["published_date"] = doc.PublishedDate.UTC().Format(time.RFC3339)
	}
	if doc.AuthorID != nil {
		fields["author_id"] = *doc.AuthorID
	}
	return fields
}

func fromFields(id string, fields map[string]any) Document {
	doc := Document{ID: id}
	if v, ok := fields["title"].(string); ok {
		doc.Title = v
	}
	if v, ok := fields["source"].(string); ok {
		doc.Source = v
	}
	if v, ok := fields["url"].(string); ok {
		doc.URL = v
	}
	if v, ok := fields["published_date"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			doc.PublishedDate = &ts
		}
	}
	if v, ok := fields["author_id"].(float64); ok {
		id := int64(v)
		doc.AuthorID = &id
	}
	return doc
}
