package cache

import (
	"sync"
	"sync/atomic"
)

// LRU is a fixed-capacity least-recently-used cache keyed by Key.
//
// Entries form an intrusive ring around a sentinel node: sentinel.next is the
// most recently used entry and sentinel.prev the eviction candidate.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	nodes    map[Key]*node[V]
	sentinel node[V]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type node[V any] struct {
	key        Key
	value      V
	prev, next *node[V]
}

// NewLRU creates a new LRU holding at most capacity entries.
func NewLRU[V any](capacity int) *LRU[V] {
	c := &LRU[V]{
		capacity: max(capacity, 1),
		nodes:    make(map[Key]*node[V]),
	}
	c.sentinel.prev = &c.sentinel
	c.sentinel.next = &c.sentinel
	return c
}

// Get returns the cached value for key and marks it as recently used.
func (c *LRU[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	c.unlink(n)
	c.pushFront(n)
	return n.value, true
}

// Set stores v under key. The least recently used entry is evicted when the
// cache is full.
func (c *LRU[V]) Set(key Key, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[key]; ok {
		n.value = v
		c.unlink(n)
		c.pushFront(n)
		return
	}
	if len(c.nodes) >= c.capacity {
		oldest := c.sentinel.prev
		c.unlink(oldest)
		delete(c.nodes, oldest.key)
		c.evictions.Add(1)
	}
	n := &node[V]{key: key, value: v}
	c.nodes[key] = n
	c.pushFront(n)
}

// Invalidate drops every entry whose key matches and reports how many were
// dropped. Invalidation does not count as eviction.
func (c *LRU[V]) Invalidate(match func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, n := range c.nodes {
		if match(key) {
			c.unlink(n)
			delete(c.nodes, key)
			dropped++
		}
	}
	return dropped
}

// Purge empties the cache.
func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.nodes)
	c.sentinel.prev = &c.sentinel
	c.sentinel.next = &c.sentinel
}

// Stats reports lookup hits and misses since creation.
func (c *LRU[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Evictions reports how many entries were pushed out by capacity.
func (c *LRU[V]) Evictions() int64 { return c.evictions.Load() }

func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

func (c *LRU[V]) unlink(n *node[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

func (c *LRU[V]) pushFront(n *node[V]) {
	n.prev = &c.sentinel
	n.next = c.sentinel.next
	c.sentinel.next.prev = n
	c.sentinel.next = n
}
