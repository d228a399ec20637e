package predict

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/observability"
)

// CachedPredictor wraps a Predictor with an in-memory LRU cache keyed by the
// feature vector.
type CachedPredictor struct {
	inner   domain.Predictor
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedPredictor creates a cache decorator around a predictor.
func NewCachedPredictor(inner domain.Predictor, maxEntries int, metrics *observability.Metrics) *CachedPredictor {
	return &CachedPredictor{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedPredictor) Predict(ctx context.Context, features domain.Features) (domain.PredictionResult, error) {
	key := features.Key()
	if result, ok := c.cache.get(key); ok {
		c.metrics.PredictionCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.PredictionCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Predict(ctx, features)
	if err != nil {
		return result, err
	}
	// Failures are never cached so the next request reaches the service.
	if !result.IsError {
		c.cache.put(key, result)
	}
	return result, nil
}

// lruCache is a thread-safe LRU of prediction results. The front of order
// is the most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[string]*list.Element
}

type entry struct {
	key   string
	value domain.PredictionResult
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.PredictionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.PredictionResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value domain.PredictionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
