package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yakovlavrinov/test-qtim/internal/obs"
)

const defaultVersion = 1

// ListFilter is the set of query parameters that shape a cached list result.
// Keys derived from it are deterministic, so invalidation never needs to
// enumerate outstanding filter combinations.
type ListFilter struct {
	Page     int
	Limit    int
	AuthorID string
	From     time.Time
	To       time.Time
}

// QueryCache is a best-effort read-through cache over a Store. List queries
// are keyed by a per-collection version counter: bumping the counter orphans
// every previously cached list entry (they drain via TTL) without touching a
// single key. Backend failures are logged and surfaced as misses, never as
// errors: reads must stay correct with the cache down.
type QueryCache struct {
	store Store
}

func NewQueryCache(store Store) *QueryCache {
	return &QueryCache{store: store}
}

// Version returns the collection's current list version, defaulting to 1 and
// persisting that default when unset. It never fails: on backend errors it
// returns 1 without caching.
func (c *QueryCache) Version(ctx context.Context, collection string) int64 {
	key := versionKey(collection)
	b, err := c.store.Get(ctx, key)
	if err == nil {
		if v, perr := strconv.ParseInt(string(b), 10, 64); perr == nil {
			return v
		}
		obs.LogError("cache", "version key holds a non-numeric value", nil)
		return defaultVersion
	}
	if err != ErrMiss {
		obs.LogError("cache", "version read failed", err)
		return defaultVersion
	}
	// SetNX, not Set: a concurrent bump must not be overwritten by the default.
	if _, err := c.store.SetNX(ctx, key, []byte(strconv.FormatInt(defaultVersion, 10)), 0); err != nil {
		obs.LogError("cache", "version default write failed", err)
	}
	return defaultVersion
}

// BumpVersion atomically increments the collection's list version.
func (c *QueryCache) BumpVersion(ctx context.Context, collection string) {
	if _, err := c.store.Incr(ctx, versionKey(collection)); err != nil {
		obs.LogError("cache", "version bump failed", err)
		return
	}
	obs.CacheVersionBump(collection)
}

// ReadList looks up the cached payload for the filter at the given version.
func (c *QueryCache) ReadList(ctx context.Context, collection string, version int64, f ListFilter) ([]byte, bool) {
	return c.read(ctx, collection, "list", ListKey(collection, version, f))
}

// WriteList stores the payload under the versioned composite key.
func (c *QueryCache) WriteList(ctx context.Context, collection string, version int64, f ListFilter, payload []byte, ttl time.Duration) {
	c.write(ctx, ListKey(collection, version, f), payload, ttl)
}

// ReadOne looks up the cached payload for a single entity.
func (c *QueryCache) ReadOne(ctx context.Context, collection, id string) ([]byte, bool) {
	return c.read(ctx, collection, "one", OneKey(collection, id))
}

// WriteOne stores a single entity payload.
func (c *QueryCache) WriteOne(ctx context.Context, collection, id string, payload []byte, ttl time.Duration) {
	c.write(ctx, OneKey(collection, id), payload, ttl)
}

// InvalidateOne deletes the per-entity entry.
func (c *QueryCache) InvalidateOne(ctx context.Context, collection, id string) {
	if err := c.store.Del(ctx, OneKey(collection, id)); err != nil {
		obs.LogError("cache", "entity invalidation failed", err)
	}
}

// InvalidateCollection bumps the list version. Per-entity entries are not
// touched; callers invalidate those separately for ids they know changed.
func (c *QueryCache) InvalidateCollection(ctx context.Context, collection string) {
	c.BumpVersion(ctx, collection)
}

// Ping reports backend reachability for readiness probes.
func (c *QueryCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *QueryCache) read(ctx context.Context, collection, kind, key string) ([]byte, bool) {
	b, err := c.store.Get(ctx, key)
	if err != nil {
		if err == ErrMiss {
			obs.CacheLookup(collection, kind, "miss")
		} else {
			obs.CacheLookup(collection, kind, "error")
			obs.LogError("cache", "read failed, degrading to persistence", err)
		}
		return nil, false
	}
	obs.CacheLookup(collection, kind, "hit")
	return b, true
}

func (c *QueryCache) write(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := c.store.Set(ctx, key, payload, ttl); err != nil {
		obs.LogError("cache", "write failed", err)
	}
}

func versionKey(collection string) string {
	return collection + ":list:version"
}

// ListKey builds the composite key
// {collection}:list:v:{version}|page:{p}|limit:{l}[|author:{id}][|date:{from}-{to}].
func ListKey(collection string, version int64, f ListFilter) string {
	parts := []string{
		fmt.Sprintf("v:%d", version),
		fmt.Sprintf("page:%d", f.Page),
		fmt.Sprintf("limit:%d", f.Limit),
	}
	if f.AuthorID != "" {
		parts = append(parts, "author:"+f.AuthorID)
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		parts = append(parts, fmt.Sprintf("date:%s-%s",
			f.From.Format(time.DateOnly), f.To.Format(time.DateOnly)))
	}
	return collection + ":list:" + strings.Join(parts, "|")
}

// OneKey builds the per-entity key {collection}:one:{id}.
func OneKey(collection, id string) string {
	return collection + ":one:" + id
}
