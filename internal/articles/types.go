package articles

import (
	"errors"
	"time"
)

// Collection is the cache namespace for article queries.
const Collection = "articles"

// Article is the cached, mutable resource.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	AuthorID    string    `json:"author_id"`
}

// ListQuery selects a page of articles, optionally filtered by author and a
// closed publication-date range.
type ListQuery struct {
	Page     int
	Limit    int
	AuthorID string
	From     time.Time
	To       time.Time
}

// ListResult is the shape cached and returned for list queries.
type ListResult struct {
	Items []Article `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// CreateInput carries the fields accepted on creation.
type CreateInput struct {
	Title       string
	Description string
	AuthorID    string
}

// UpdateInput is a partial patch; nil fields are left untouched.
type UpdateInput struct {
	Title       *string
	Description *string
}

var (
	ErrNotFound     = errors.New("articles: not found")
	ErrInvalidInput = errors.New("articles: invalid input")
)
