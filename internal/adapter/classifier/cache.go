package classifier

import (
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

// CachedClassifier wraps a Classifier with an in-memory LRU cache. Identical
// conditions descriptions are common across consecutive cycles for stable
// seas, and each service call is an external hop.
type CachedClassifier struct {
	inner   Classifier
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedClassifier creates a cache decorator around a classifier.
func NewCachedClassifier(inner Classifier, maxEntries int, metrics *observability.Metrics) *CachedClassifier {
	return &CachedClassifier{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Classify answers from cache when the same description and label set has
// been scored before. Heuristic fallback verdicts are never cached so the
// service is retried while degraded.
func (c *CachedClassifier) Classify(ctx context.Context, description string, labels []string) (domain.LabelClassification, error) {
	key := description + "|" + strings.Join(labels, ",")
	if result, ok := c.cache.get(key); ok {
		c.metrics.ClassifierCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.ClassifierCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Classify(ctx, description, labels)
	if err != nil {
		return result, err
	}
	if !result.Fallback {
		c.cache.put(key, result)
	}
	return result, nil
}

// lruCache is a simple thread-safe LRU cache for classification verdicts.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.LabelClassification
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.LabelClassification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.LabelClassification{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.LabelClassification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
