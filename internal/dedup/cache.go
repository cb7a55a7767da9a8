// Package dedup provides the bounded, access-ordered cache that gates
// acceptance of a content fingerprint within a sliding time window. Each
// call-site owns its own instance since windows and capacities differ; there
// is deliberately no process-wide shared cache.
package dedup

import (
	"container/list"
	"sync"
	"time"
)

// Cache maps a fingerprint to the time it was last seen, evicting the
// least-recently-accessed entry once capacity is exceeded. Capacity eviction
// is independent of window expiry.
type Cache struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	order    *list.List // front = most recently accessed
	entries  map[string]*list.Element
}

type entry struct {
	fingerprint string
	lastSeenAt  time.Time
}

// New creates a cache with the given sliding window and maximum entry count.
func New(window time.Duration, capacity int) *Cache {
	return &Cache{
		window:   window,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Accept reports whether the fingerprint should be processed. It returns
// false when the fingerprint was seen less than one window ago. Every call
// refreshes the entry's timestamp and promotes it to most-recently-used, so
// access recency drives eviction. Safe for concurrent use.
func (c *Cache) Accept(fingerprint string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[fingerprint]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*entry)
		elapsed := now.Sub(e.lastSeenAt)
		e.lastSeenAt = now
		return elapsed >= c.window
	}

	el := c.order.PushFront(&entry{fingerprint: fingerprint, lastSeenAt: now})
	c.entries[fingerprint] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).fingerprint)
	}

	return true
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Contains reports whether a fingerprint is currently cached, without
// touching its recency.
func (c *Cache) Contains(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[fingerprint]
	return ok
}
