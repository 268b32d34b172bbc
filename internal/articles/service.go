package articles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yakovlavrinov/test-qtim/internal/cache"
	"github.com/yakovlavrinov/test-qtim/internal/ids"
	"github.com/yakovlavrinov/test-qtim/internal/obs"
)

const (
	defaultTTL   = time.Minute
	defaultLimit = 10
	maxLimit     = 100
)

// Service serves article reads through the query cache and routes every write
// through the invalidation hook: bump the collection version, drop the
// per-entity key for ids known to have changed.
type Service struct {
	store ArticleStore
	cache *cache.QueryCache
	ttl   time.Duration
	group singleflight.Group
}

// NewService constructs the cached article service. ttl <= 0 falls back to
// one minute, the staleness bound list reads tolerate.
func NewService(store ArticleStore, qc *cache.QueryCache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{store: store, cache: qc, ttl: ttl}
}

// Create persists a new article and invalidates the list namespace. The new
// row changes list membership, so the version bump is unconditional.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Article, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	a := &Article{
		ID:          ids.New(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		PublishedAt: time.Now().UTC(),
		AuthorID:    in.AuthorID,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.cache.InvalidateCollection(ctx, Collection)
	return a, nil
}

// List serves a page read-through: current version, composite key, cached
// payload on hit; on miss one persistence query (collapsed across concurrent
// callers) populates the cache.
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	q = normalizeQuery(q)
	filter := toFilter(q)
	version := s.cache.Version(ctx, Collection)

	if payload, ok := s.cache.ReadList(ctx, Collection, version, filter); ok {
		var result ListResult
		if err := json.Unmarshal(payload, &result); err == nil {
			return &result, nil
		}
		obs.LogError("articles", "cached list payload corrupt, refetching", nil)
	}

	key := cache.ListKey(Collection, version, filter)
	v, err, _ := s.group.Do(key, func() (any, error) {
		items, total, err := s.store.FindPage(ctx, q)
		if err != nil {
			return nil, err
		}
		result := &ListResult{Items: items, Total: total, Page: q.Page, Limit: q.Limit}
		if payload, err := json.Marshal(result); err == nil {
			s.cache.WriteList(ctx, Collection, version, filter, payload, s.ttl)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ListResult), nil
}

// Get serves a single article read-through under the per-entity key. An id
// that cannot have been issued skips both cache and store.
func (s *Service) Get(ctx context.Context, id string) (*Article, error) {
	if !ids.Valid(id) {
		return nil, ErrNotFound
	}
	if payload, ok := s.cache.ReadOne(ctx, Collection, id); ok {
		var a Article
		if err := json.Unmarshal(payload, &a); err == nil {
			return &a, nil
		}
		obs.LogError("articles", "cached entity payload corrupt, refetching", nil)
	}

	v, err, _ := s.group.Do(cache.OneKey(Collection, id), func() (any, error) {
		a, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(a); err == nil {
			s.cache.WriteOne(ctx, Collection, id, payload, s.ttl)
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Article), nil
}

// Update applies a partial patch, then invalidates both the entity key and,
// conservatively, the whole list namespace: even a patch that cannot change
// list membership bumps the version.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Article, error) {
	if !ids.Valid(id) {
		return nil, ErrNotFound
	}
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		a.Title = title
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc == "" {
			return nil, fmt.Errorf("%w: description must not be empty", ErrInvalidInput)
		}
		a.Description = desc
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}
	s.cache.InvalidateOne(ctx, Collection, id)
	s.cache.InvalidateCollection(ctx, Collection)
	return a, nil
}

// Delete removes the article and invalidates entity + list caches.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !ids.Valid(id) {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateOne(ctx, Collection, id)
	s.cache.InvalidateCollection(ctx, Collection)
	return nil
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.AuthorID) == "" {
		return fmt.Errorf("%w: author id is required", ErrInvalidInput)
	}
	return nil
}

func normalizeQuery(q ListQuery) ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

func toFilter(q ListQuery) cache.ListFilter {
	return cache.ListFilter{
		Page:     q.Page,
		Limit:    q.Limit,
		AuthorID: q.AuthorID,
		From:     q.From,
		To:       q.To,
	}
}
