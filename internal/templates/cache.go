package templates

import (
	"container/list"
	"sync"
	"time"
)

// Entry is a cached template.
type Entry struct {
	Body string
	ETag string
	At   time.Time
}

// Cache is a bounded TTL cache. When full, inserting a new key evicts the
// least-recently-inserted entry; refreshing a key counts as an insert. Reads
// never reorder. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	order    *list.List               // front = oldest insert
	items    map[string]*list.Element // value is *cacheItem
	now      func() time.Time
}

type cacheItem struct {
	key   string
	entry Entry
}

// NewCache returns a cache holding at most capacity entries, each fresh for ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 80
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used in tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the entry for key and whether it is still fresh. A stale entry
// is still returned so callers can fall back to it.
func (c *Cache) Get(key string) (e Entry, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry{}, false, false
	}
	e = el.Value.(*cacheItem).entry
	return e, c.now().Sub(e.At) < c.ttl, true
}

// Put stores e under key, stamping it with the current time.
func (c *Cache) Put(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.At = c.now()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheItem).entry = e
		c.order.MoveToBack(el)
		return
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).key)
	}
	c.items[key] = c.order.PushBack(&cacheItem{key: key, entry: e})
}

// Len reports the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
