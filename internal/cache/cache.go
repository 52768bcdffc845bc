// Package cache defines the read-through cache contract and its backends.
// The cache is a derived, disposable artifact: every value in it can be
// recomputed from the database, so dropping a key is always safe.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss signals that the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// KeyRecentArticles holds the serialized most-recent-articles page. The
// ingestion engine drops it whenever new articles land; the read path
// repopulates it lazily.
const KeyRecentArticles = "recent_articles"

// Cache is the minimal key-value contract the service needs.
type Cache interface {
	// Get returns the stored value or ErrMiss.
	Get(ctx context.Context, key string) (string, error)
	// Set stores the value with a time-to-live.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
