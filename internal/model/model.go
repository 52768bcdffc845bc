// Package model defines the persisted entities and the transient records
// produced by the crawler.
package model

import (
	"strings"
	"time"
)

// User is an account discovered during ingestion. Users are created lazily
// the first time a username is seen as an article or comment author.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Article is a persisted story. URL is stored as scraped; uniqueness is
// enforced on the normalized form (see NormalizeURL).
type Article struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Source        string     `json:"source,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	AuthorID      *int64     `json:"author_id,omitempty"`
	Author        *User      `json:"author,omitempty"`
	Comments      []Comment  `json:"comments,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Comment is a single row of an article's thread. Author and article
// references are nullable to tolerate partially resolved data.
type Comment struct {
	ID            int64      `json:"id"`
	Text          string     `json:"text"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	AuthorID      *int64     `json:"author_id,omitempty"`
	Author        *User      `json:"author,omitempty"`
	ArticleID     *int64     `json:"article_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// CommentRecord is a loosely structured comment scraped from a thread page.
type CommentRecord struct {
	Author        string     `json:"author"`
	Text          string     `json:"text"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
}

// ArticleRecord is a loosely structured article scraped from the listing
// page. Any field may be empty when the expected DOM fragment is missing.
// CommentsURL is set when the listing row links to a comment thread.
type ArticleRecord struct {
	Title         string          `json:"title"`
	URL           string          `json:"url"`
	Source        string          `json:"source"`
	Author        string          `json:"author"`
	PublishedDate *time.Time      `json:"published_date,omitempty"`
	CommentsURL   string          `json:"comments_url,omitempty"`
	Comments      []CommentRecord `json:"comments"`
}

// NormalizeURL produces the comparison form of an article URL: trimmed and
// lower-cased. The stored value keeps the original casing.
func NormalizeURL(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
