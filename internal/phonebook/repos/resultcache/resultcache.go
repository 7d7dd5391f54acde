// Package resultcache is the in-process search result cache: a size-bounded
// LRU whose entries also expire after a per-entry TTL.
package resultcache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/phonebook/internal/phonebook/common/clock"
	"github.com/haukened/phonebook/internal/phonebook/domain"
	"github.com/haukened/phonebook/internal/phonebook/services/search"
)

type entry struct {
	page      domain.CachedPage
	expiresAt time.Time
}

// Stats reports lightweight cache metrics. Evictions counts every removal:
// capacity pressure, expiry on read and Clear.
type Stats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is an LRU-backed search.ResultCache. It is safe for concurrent use.
type Cache struct {
	lru      *lru.Cache[string, entry]
	clock    clock.Clock
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

var _ search.ResultCache = (*Cache)(nil)

// New returns a Cache holding at most size entries. A nil clk uses the real clock.
func New(size int, clk clock.Clock) (*Cache, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	c := &Cache{clock: clk, capacity: size}
	l, err := lru.NewWithEvict(size, func(string, entry) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Get returns the page stored under key if it has not expired. Expired
// entries are removed.
func (c *Cache) Get(_ context.Context, key string) (domain.CachedPage, bool, error) {
	e, ok := c.lru.Get(key)
	if ok && c.clock.Now().Before(e.expiresAt) {
		c.hits.Add(1)
		return e.page, true, nil
	}
	if ok {
		c.lru.Remove(key)
	}
	c.misses.Add(1)
	return domain.CachedPage{}, false, nil
}

// Set stores page under key for ttl. A non-positive ttl stores nothing.
func (c *Cache) Set(_ context.Context, key string, page domain.CachedPage, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.lru.Add(key, entry{page: page, expiresAt: c.clock.Now().Add(ttl)})
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int { return c.lru.Len() }

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
