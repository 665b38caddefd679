package memory

import (
	"maps"
	"slices"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/model"
)

// Allocations returns the ids of every physical entity held by the store.
func (s *Store) Allocations() []model.AllocationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Collect(maps.Keys(s.tables))
	ids = slices.AppendSeq(ids, maps.Keys(s.collections))
	ids = slices.AppendSeq(ids, maps.Keys(s.graphs))
	slices.Sort(ids)
	return ids
}

// Has reports whether the store holds the physical entity of alloc.
func (s *Store) Has(alloc model.AllocationID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, t := s.tables[alloc]
	_, c := s.collections[alloc]
	_, g := s.graphs[alloc]
	return t || c || g
}

// Rows returns a copy of the rows of a table.
func (s *Store) Rows(alloc model.AllocationID) []adapter.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[alloc]
	if !ok {
		return nil
	}
	rows := make([]adapter.Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = maps.Clone(r)
	}
	return rows
}

// Columns returns the physical column ids of a table in ascending order.
func (s *Store) Columns(alloc model.AllocationID) []model.ColumnID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[alloc]
	if !ok {
		return nil
	}
	ids := slices.Collect(maps.Keys(t.columns))
	slices.Sort(ids)
	return ids
}

// Indexes returns the physical index names of a table.
func (s *Store) Indexes(alloc model.AllocationID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[alloc]
	if !ok {
		return nil
	}
	names := slices.Collect(maps.Keys(t.indexes))
	slices.Sort(names)
	return names
}

// Documents returns a copy of the documents of a collection.
func (s *Store) Documents(alloc model.AllocationID) []adapter.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]adapter.Document, 0, len(s.collections[alloc]))
	for _, d := range s.collections[alloc] {
		docs = append(docs, maps.Clone(d))
	}
	return docs
}

// Graph returns the number of nodes and edges in a graph segment.
func (s *Store) Graph(alloc model.AllocationID) (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.graphs[alloc]; ok {
		return len(g.nodes), len(g.edges)
	}
	return 0, 0
}
