// Package memory provides an in-process adapter that stores relational,
// document and graph allocations in maps.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

type table struct {
	columns map[model.ColumnID]adapter.Column
	rows    []adapter.Row
	// byKey maps a primary key over keyCols to its row offset.
	byKey   map[string]int
	keyCols []model.ColumnID
	indexes map[string]adapter.Index
}

// rekey rebuilds byKey when the primary key of t differs from the one the
// index was built for.
func (tb *table) rekey(t adapter.Table) {
	if slices.Equal(tb.keyCols, t.PrimaryKey) {
		return
	}
	tb.keyCols = slices.Clone(t.PrimaryKey)
	clear(tb.byKey)
	for i, r := range tb.rows {
		if key, ok := t.Key(r); ok {
			tb.byKey[key] = i
		}
	}
}

type graph struct {
	nodes map[string]adapter.Node
	edges map[string]adapter.Edge
}

// Store is an adapter holding every allocation in memory.
type Store struct {
	id     model.AdapterID
	name   string
	models []model.DataModel

	mu          sync.RWMutex
	tables      map[model.AllocationID]*table
	collections map[model.AllocationID][]adapter.Document
	graphs      map[model.AllocationID]*graph
	failures    map[string]error
}

// Option configures a Store.
type Option func(*Store)

// WithModels restricts the data models the store accepts.
func WithModels(models ...model.DataModel) Option {
	return func(s *Store) {
		s.models = models
	}
}

// New returns an empty store.
func New(id model.AdapterID, name string, opts ...Option) *Store {
	s := &Store{
		id:          id,
		name:        name,
		models:      []model.DataModel{model.Relational, model.Document, model.Graph},
		tables:      make(map[model.AllocationID]*table),
		collections: make(map[model.AllocationID][]adapter.Document),
		graphs:      make(map[model.AllocationID]*graph),
		failures:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ID() model.AdapterID { return s.id }
func (s *Store) Name() string        { return s.name }

func (s *Store) Supports(m model.DataModel) bool {
	return slices.Contains(s.models, m)
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return adapter.Wrap(s.id, op, s.failures[op])
}

func (s *Store) table(op string, alloc model.AllocationID) (*table, error) {
	if err := s.fail(op); err != nil {
		return nil, err
	}
	t, ok := s.tables[alloc]
	if !ok {
		return nil, adapter.Wrap(s.id, op, fmt.Errorf("%w: alloc_%d", adapter.ErrNoSuchAllocation, alloc))
	}
	return t, nil
}

func (s *Store) CreateTable(_ context.Context, t adapter.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("create table"); err != nil {
		return err
	}
	if _, ok := s.tables[t.Alloc.ID]; ok {
		return adapter.Wrap(s.id, "create table", fmt.Errorf("%w: alloc_%d", adapter.ErrPhysicalExists, t.Alloc.ID))
	}
	tb := &table{
		columns: make(map[model.ColumnID]adapter.Column, len(t.Columns)),
		byKey:   make(map[string]int),
		keyCols: slices.Clone(t.PrimaryKey),
		indexes: make(map[string]adapter.Index),
	}
	for _, c := range t.Columns {
		tb.columns[c.ID] = c
	}
	s.tables[t.Alloc.ID] = tb
	return nil
}

func (s *Store) DropTable(_ context.Context, t adapter.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("drop table"); err != nil {
		return err
	}
	delete(s.tables, t.Alloc.ID)
	return nil
}

func (s *Store) AddColumn(_ context.Context, t adapter.Table, c adapter.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, err := s.table("add column", t.Alloc.ID)
	if err != nil {
		return err
	}
	def, err := c.DefaultValue()
	if err != nil {
		return adapter.Wrap(s.id, "add column", err)
	}
	tb.columns[c.ID] = c
	if def == nil {
		return nil
	}
	for _, r := range tb.rows {
		if _, ok := r[c.ID]; !ok {
			r[c.ID] = def
		}
	}
	return nil
}

func (s *Store) DropColumn(_ context.Context, t adapter.Table, c adapter.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, err := s.table("drop column", t.Alloc.ID)
	if err != nil {
		return err
	}
	delete(tb.columns, c.ID)
	for _, r := range tb.rows {
		delete(r, c.ID)
	}
	return nil
}

func (s *Store) UpdateColumnType(_ context.Context, t adapter.Table, c adapter.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, err := s.table("update column type", t.Alloc.ID)
	if err != nil {
		return err
	}
	if _, ok := tb.columns[c.ID]; !ok {
		return adapter.Wrap(s.id, "update column type", fmt.Errorf("no column %s", c.Name()))
	}
	tb.columns[c.ID] = c
	return nil
}

func (s *Store) Truncate(_ context.Context, t adapter.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, err := s.table("truncate", t.Alloc.ID)
	if err != nil {
		return err
	}
	tb.rows = nil
	clear(tb.byKey)
	return nil
}

func (s *Store) AddIndex(_ context.Context, t adapter.Table, idx adapter.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, err := s.table("add index", t.Alloc.ID)
	if err != nil {
		return err
	}
	tb.indexes[idx.Name()] = idx
	return nil
}

func (s *Store) DropIndex(_ context.Context, t adapter.Table, idx adapter.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, err := s.table("drop index", t.Alloc.ID)
	if err != nil {
		return err
	}
	delete(tb.indexes, idx.Name())
	return nil
}

func (s *Store) ScanRows(_ context.Context, t adapter.Table, fn func(adapter.Row) error) error {
	s.mu.RLock()
	tb, err := s.table("scan", t.Alloc.ID)
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	rows := make([]adapter.Row, len(tb.rows))
	for i, r := range tb.rows {
		rows[i] = project(r, t.Columns)
	}
	s.mu.RUnlock()

	for _, r := range rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) WriteRows(_ context.Context, t adapter.Table, rows []adapter.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, err := s.table("write", t.Alloc.ID)
	if err != nil {
		return err
	}
	tb.rekey(t)
	for _, r := range rows {
		r = project(r, t.Columns)
		key, keyed := t.Key(r)
		if keyed {
			if i, ok := tb.byKey[key]; ok {
				maps.Copy(tb.rows[i], r)
				continue
			}
			tb.byKey[key] = len(tb.rows)
		}
		tb.rows = append(tb.rows, r)
	}
	return nil
}

func project(r adapter.Row, columns []adapter.Column) adapter.Row {
	out := make(adapter.Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c.ID]; ok {
			out[c.ID] = v
		}
	}
	return out
}

func (s *Store) CreateCollection(_ context.Context, alloc catalog.AllocationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("create collection"); err != nil {
		return err
	}
	s.collections[alloc.ID] = []adapter.Document{}
	return nil
}

func (s *Store) DropCollection(_ context.Context, alloc catalog.AllocationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("drop collection"); err != nil {
		return err
	}
	delete(s.collections, alloc.ID)
	return nil
}

func (s *Store) TruncateCollection(_ context.Context, alloc catalog.AllocationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[alloc.ID]; !ok {
		return adapter.Wrap(s.id, "truncate collection", adapter.ErrNoSuchAllocation)
	}
	s.collections[alloc.ID] = []adapter.Document{}
	return nil
}

func (s *Store) ScanDocuments(_ context.Context, alloc catalog.AllocationEntity, fn func(adapter.Document) error) error {
	s.mu.RLock()
	docs, ok := s.collections[alloc.ID]
	docs = slices.Clone(docs)
	s.mu.RUnlock()
	if !ok {
		return adapter.Wrap(s.id, "scan documents", adapter.ErrNoSuchAllocation)
	}
	for _, d := range docs {
		if err := fn(maps.Clone(d)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertDocuments(_ context.Context, alloc catalog.AllocationEntity, docs []adapter.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert documents"); err != nil {
		return err
	}
	cur, ok := s.collections[alloc.ID]
	if !ok {
		return adapter.Wrap(s.id, "insert documents", adapter.ErrNoSuchAllocation)
	}
	for _, d := range docs {
		cur = append(cur, maps.Clone(d))
	}
	s.collections[alloc.ID] = cur
	return nil
}

func (s *Store) CreateGraph(_ context.Context, alloc catalog.AllocationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("create graph"); err != nil {
		return err
	}
	s.graphs[alloc.ID] = &graph{
		nodes: make(map[string]adapter.Node),
		edges: make(map[string]adapter.Edge),
	}
	return nil
}

func (s *Store) DropGraph(_ context.Context, alloc catalog.AllocationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("drop graph"); err != nil {
		return err
	}
	delete(s.graphs, alloc.ID)
	return nil
}

func (s *Store) TruncateGraph(_ context.Context, alloc catalog.AllocationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[alloc.ID]
	if !ok {
		return adapter.Wrap(s.id, "truncate graph", adapter.ErrNoSuchAllocation)
	}
	clear(g.nodes)
	clear(g.edges)
	return nil
}

func (s *Store) ScanGraph(_ context.Context, alloc catalog.AllocationEntity, nodes func(adapter.Node) error, edges func(adapter.Edge) error) error {
	s.mu.RLock()
	g, ok := s.graphs[alloc.ID]
	if !ok {
		s.mu.RUnlock()
		return adapter.Wrap(s.id, "scan graph", adapter.ErrNoSuchAllocation)
	}
	ns := slices.Collect(maps.Values(g.nodes))
	es := slices.Collect(maps.Values(g.edges))
	s.mu.RUnlock()

	slices.SortFunc(ns, func(a, b adapter.Node) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(es, func(a, b adapter.Edge) int { return cmp.Compare(a.ID, b.ID) })
	for _, n := range ns {
		if err := nodes(n); err != nil {
			return err
		}
	}
	for _, e := range es {
		if err := edges(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertGraph(_ context.Context, alloc catalog.AllocationEntity, nodes []adapter.Node, edges []adapter.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert graph"); err != nil {
		return err
	}
	g, ok := s.graphs[alloc.ID]
	if !ok {
		return adapter.Wrap(s.id, "insert graph", adapter.ErrNoSuchAllocation)
	}
	for _, n := range nodes {
		g.nodes[n.ID] = n
	}
	for _, e := range edges {
		g.edges[e.ID] = e
	}
	return nil
}
