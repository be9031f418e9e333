package googleplaces

import (
	"container/list"
	"context"
	"sync"

	"github.com/mealtrail/venue-resolver/internal/domain"
	"github.com/mealtrail/venue-resolver/internal/observability"
)

// CachedDirectory wraps a Directory with an in-memory LRU cache over place
// details. Nearby and text searches pass through uncached: their results
// depend on a moving coordinate, while details for a given place id are
// stable for the lifetime of a session.
type CachedDirectory struct {
	inner   domain.Directory
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedDirectory creates a details-cache decorator around a directory.
func NewCachedDirectory(inner domain.Directory, maxEntries int, metrics *observability.Metrics) *CachedDirectory {
	return &CachedDirectory{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedDirectory) SearchNearby(ctx context.Context, center domain.Coordinate, radiusMeters float64) ([]domain.Venue, error) {
	return c.inner.SearchNearby(ctx, center, radiusMeters)
}

func (c *CachedDirectory) SearchText(ctx context.Context, query string, bias *domain.Coordinate) ([]domain.Venue, error) {
	return c.inner.SearchText(ctx, query, bias)
}

func (c *CachedDirectory) Details(ctx context.Context, placeID string) (*domain.Venue, error) {
	if v, ok := c.cache.get(placeID); ok {
		c.metrics.DetailsCache.WithLabelValues("hit").Inc()
		return &v, nil
	}
	c.metrics.DetailsCache.WithLabelValues("miss").Inc()

	v, err := c.inner.Details(ctx, placeID)
	if err != nil {
		return nil, err
	}
	// Only cache resolved venues so transient "not found" responses can be
	// retried.
	if v != nil {
		c.cache.put(placeID, *v)
	}
	return v, nil
}

// lruCache is a thread-safe LRU cache for venue details, backed by
// container/list for recency ordering.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value domain.Venue
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.Venue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Venue{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *lruCache) put(key string, value domain.Venue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
