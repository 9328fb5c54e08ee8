package feed

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/observability"
)

// Fetcher is the contract CachedSource decorates.
type Fetcher interface {
	Fetch(ctx context.Context, day time.Time) ([]byte, error)
}

// CachedSource wraps a Fetcher with an in-memory LRU cache keyed by day.
// Entries older than the TTL are fetched again, so a day that is still
// receiving pings is refreshed.
type CachedSource struct {
	inner   Fetcher
	loc     *time.Location
	ttl     time.Duration
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a feed source. Days are
// keyed by their calendar date in loc. A ttl <= 0 disables caching.
func NewCachedSource(inner Fetcher, maxEntries int, ttl time.Duration, loc *time.Location, metrics *observability.Metrics) *CachedSource {
	if loc == nil {
		loc = time.Local
	}
	return &CachedSource{
		inner:   inner,
		loc:     loc,
		ttl:     ttl,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) Fetch(ctx context.Context, day time.Time) ([]byte, error) {
	key := "all"
	if !day.IsZero() {
		key = day.In(c.loc).Format(dateLayout)
	}
	if raw, ok := c.cache.getFresh(key, c.ttl); ok {
		c.metrics.FetchCache.WithLabelValues("hit").Inc()
		return raw, nil
	}
	c.metrics.FetchCache.WithLabelValues("miss").Inc()

	raw, err := c.inner.Fetch(ctx, day)
	if err != nil {
		return nil, err
	}
	// Empty payloads are not cached so a feed that was still filling can be retried.
	if len(raw) > 0 && c.ttl > 0 {
		c.cache.put(key, raw)
	}
	return raw, nil
}

// lruCache is a simple thread-safe LRU cache of raw feed tables.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key    string
	value  []byte
	stored time.Time
	prev   *entry
	next   *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

// getFresh is get for entries stored less than maxAge ago. A stale entry is
// dropped.
func (c *lruCache) getFresh(key string, maxAge time.Duration) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if domain.Clock().Since(e.stored) >= maxAge {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := domain.Clock().Now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.stored = now
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, stored: now}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
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
