package relevance

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/sells-group/aid-simulator/internal/metrics"
)

// Cache stores retained-id decisions by key. Implementations treat their own
// errors as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool)
	Set(ctx context.Context, key string, ids []string)
}

type memoryEntry struct {
	key     string
	ids     []string
	expires time.Time
}

// MemoryCache is an in-process LRU with a per-entry TTL.
type MemoryCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	size  int
	order *list.List
	items map[string]*list.Element
	now   func() time.Time
}

// NewMemoryCache creates a cache holding at most size entries for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1
	}
	return &MemoryCache{
		ttl:   ttl,
		size:  size,
		order: list.New(),
		items: make(map[string]*list.Element, size),
		now:   time.Now,
	}
}

// Get returns the ids stored under key if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if c.ttl > 0 && c.now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.items, key)
		metrics.CacheLookupsTotal.WithLabelValues("memory", "expired").Inc()
		return nil, false
	}
	c.order.MoveToFront(el)
	metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
	return entry.ids, true
}

// Set stores ids under key, evicting the least recently used entry when full.
func (c *MemoryCache) Set(_ context.Context, key string, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.ids = ids
		entry.expires = expires
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&memoryEntry{key: key, ids: ids, expires: expires})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*memoryEntry).key)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// TieredCache reads through a fast local tier to a shared tier, backfilling
// the local tier on a shared hit. Writes go to both.
type TieredCache struct {
	local  Cache
	shared Cache
}

// NewTieredCache layers local in front of shared. A nil shared tier yields
// local alone.
func NewTieredCache(local, shared Cache) Cache {
	if shared == nil {
		return local
	}
	return &TieredCache{local: local, shared: shared}
}

// Get checks the local tier, then the shared one.
func (t *TieredCache) Get(ctx context.Context, key string) ([]string, bool) {
	if ids, ok := t.local.Get(ctx, key); ok {
		return ids, true
	}
	ids, ok := t.shared.Get(ctx, key)
	if ok {
		t.local.Set(ctx, key, ids)
	}
	return ids, ok
}

// Set writes through to both tiers.
func (t *TieredCache) Set(ctx context.Context, key string, ids []string) {
	t.local.Set(ctx, key, ids)
	t.shared.Set(ctx, key, ids)
}
