package cache

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/polyalloc/model"
)

// Plan is a cached plan implementation. The cache does not interpret it.
type Plan any

// Statement holds the plan-implementation and routing caches shared by the
// statements of one process.
type Statement struct {
	plans  *LRU[Plan]
	routes *LRU[[]model.AdapterID]

	resets atomic.Int64

	mu        sync.Mutex
	listeners []func()
}

// DefaultCapacity is the number of entries per cache.
const DefaultCapacity = 1024

// NewStatement returns statement caches holding capacity entries each.
func NewStatement(capacity int) *Statement {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Statement{
		plans:  NewLRU[Plan](capacity),
		routes: NewLRU[[]model.AdapterID](capacity),
	}
}

// Plans returns the plan-implementation cache.
func (s *Statement) Plans() *LRU[Plan] { return s.plans }

// Routes returns the routing cache.
func (s *Statement) Routes() *LRU[[]model.AdapterID] { return s.routes }

// OnReset registers fn to run after every local Reset.
func (s *Statement) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reset drops every cached plan and route and notifies the OnReset
// listeners.
func (s *Statement) Reset() {
	s.Drop()

	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Drop empties the caches without notifying listeners. It is used for
// resets received from other processes.
func (s *Statement) Drop() {
	s.plans.Purge()
	s.routes.Purge()
	s.resets.Add(1)
}

// Resets returns how often the caches were emptied.
func (s *Statement) Resets() int64 { return s.resets.Load() }

// InvalidateEntity drops the entries of one entity.
func (s *Statement) InvalidateEntity(id model.EntityID) int {
	match := func(k Key) bool { return k.Entity == id }
	return s.plans.Invalidate(match) + s.routes.Invalidate(match)
}
