// ABOUTME: Thread-safe TTL cache for deduplicating delivered turns.
// ABOUTME: The dispatcher drops redelivered activity ids before processing, giving exactly-once handling.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the delivery timestamp and list element for a cached turn key.
type entry struct {
	deliveredAt time.Time
	element     *list.Element
}

// Cache tracks turn keys that have already been delivered. It is safe for
// concurrent use, bounded in size, and expires keys after a TTL. Insertion
// order is kept in a doubly-linked list for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest key at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewCache creates a dedupe cache with the given TTL and maximum size. A
// background goroutine periodically drops expired keys.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Seen atomically checks whether the key was already delivered and marks it
// if not. Returns true for a duplicate, false for a first delivery. The
// check and mark are one critical section, so two concurrent deliveries of
// the same key cannot both proceed.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok && time.Since(e.deliveredAt) < c.ttl {
		return true
	}

	now := time.Now()
	if e, ok := c.seen[key]; ok {
		// Expired entry being reused: refresh in place.
		e.deliveredAt = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &entry{deliveredAt: now, element: elem}
	return false
}

// evictOldest removes the oldest key. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// cleanupLoop drops expired keys once a minute until Close.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.seen {
		if now.Sub(e.deliveredAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
