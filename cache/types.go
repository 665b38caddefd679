// Package cache holds the per-statement caches that depend on the
// allocation topology.
//
// Plan implementations and routing decisions reference allocation entities
// by id. Every DDL verb that changes placements, partitions or allocations
// must call Statement.Reset once it succeeds, otherwise later statements
// would run against dropped allocations.
package cache

import "github.com/hupe1980/polyalloc/model"

// Kind separates the key spaces of the statement caches.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPlan         // plan implementations
	KindRoute        // adapter routing decisions
)

func (k Kind) String() string {
	switch k {
	case KindPlan:
		return "plan"
	case KindRoute:
		return "route"
	default:
		return "unknown"
	}
}

// Key identifies a cached value. Entries are only valid for the catalog
// version they were computed against.
type Key struct {
	Kind   Kind
	Entity model.EntityID
	// Version is the catalog snapshot version.
	Version uint64
	// Digest is a hash of the statement or routing request.
	Digest uint64
}
