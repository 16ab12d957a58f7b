package overpass

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/couchcryptid/region-sentinel/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedSource wraps a FeatureSource with an in-memory LRU cache keyed by
// bounding box. Entries expire after ttl.
type CachedSource struct {
	inner   domain.FeatureSource
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu         sync.Mutex
	maxEntries int
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	bbox    string
	points  []domain.RawPoint
	expires time.Time
}

// NewCachedSource creates a cache decorator around a feature source. A nil
// clock uses real time.
func NewCachedSource(inner domain.FeatureSource, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:      inner,
		ttl:        ttl,
		clock:      domain.NewClock(clock),
		metrics:    metrics,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *CachedSource) FetchFeatures(ctx context.Context, bbox string) ([]domain.RawPoint, error) {
	if points, ok := c.get(bbox); ok {
		c.metrics.SourceCache.WithLabelValues("hit").Inc()
		return points, nil
	}
	c.metrics.SourceCache.WithLabelValues("miss").Inc()

	points, err := c.inner.FetchFeatures(ctx, bbox)
	if err != nil {
		return nil, err
	}
	// Empty answers are often a symptom of an overloaded server; retry them.
	if len(points) > 0 {
		c.put(bbox, points)
	}
	return points, nil
}

// Len reports the number of cached boxes, expired ones included.
func (c *CachedSource) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedSource) get(bbox string) ([]domain.RawPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[bbox]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if !c.clock.Now().Before(e.expires) {
		c.order.Remove(el)
		delete(c.entries, bbox)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.points, true
}

func (c *CachedSource) put(bbox string, points []domain.RawPoint) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if el, ok := c.entries[bbox]; ok {
		e := el.Value.(*cacheEntry)
		e.points, e.expires = points, expires
		c.order.MoveToFront(el)
		return
	}

	c.entries[bbox] = c.order.PushFront(&cacheEntry{bbox: bbox, points: points, expires: expires})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).bbox)
	}
}
