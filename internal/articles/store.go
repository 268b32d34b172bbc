package articles

import "context"

// ArticleStore is the persistence layer behind the cached service.
type ArticleStore interface {
	Create(ctx context.Context, a *Article) error
	FindByID(ctx context.Context, id string) (*Article, error)
	// FindPage returns one page ordered by published_at descending, plus the
	// total row count for the filter.
	FindPage(ctx context.Context, q ListQuery) ([]Article, int, error)
	Update(ctx context.Context, a *Article) error
	Delete(ctx context.Context, id string) error
}
