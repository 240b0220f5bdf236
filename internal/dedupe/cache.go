// ABOUTME: TTL and size bounded set of recently seen keys
// ABOUTME: Used by the sync client to drop change batches that are delivered twice

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key    string
	seenAt time.Time
}

// Cache remembers keys for ttl, holding at most maxSize of them. Entries are
// kept in a list ordered by last mark, so expiry and eviction both happen at
// the front and need no background goroutine.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // oldest mark at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache. A maxSize below 1 is treated as 1.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Check reports whether key was marked within the TTL.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	_, ok := c.seen[key]
	return ok
}

// CheckAndMark reports whether key was already seen and marks it either way.
// Returns true for a duplicate.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	_, dup := c.seen[key]
	c.markLocked(key)
	return dup
}

// Mark records key as seen now.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	c.markLocked(key)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	return len(c.seen)
}

func (c *Cache) markLocked(key string) {
	now := c.now()

	if elem, ok := c.seen[key]; ok {
		elem.Value.(*entry).seenAt = now
		c.order.MoveToBack(elem)
		return
	}

	for len(c.seen) >= c.maxSize {
		c.removeLocked(c.order.Front())
	}

	c.seen[key] = c.order.PushBack(&entry{key: key, seenAt: now})
}

func (c *Cache) expireLocked() {
	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		if now.Sub(front.Value.(*entry).seenAt) < c.ttl {
			return
		}
		c.removeLocked(front)
	}
}

func (c *Cache) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.seen, elem.Value.(*entry).key)
}
