package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

var (
	// ErrDuplicateKey is returned when a unique index sees the same values
	// twice.
	ErrDuplicateKey = errors.New("duplicate key in unique index")
	// ErrNoCoveringPlacement is returned when no placement of a partition
	// holds every column the index reads.
	ErrNoCoveringPlacement = errors.New("no placement covers index columns")
	// ErrUnknownIndex is returned by lookups on indexes that were never built.
	ErrUnknownIndex = errors.New("unknown polystore index")
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithParallelism bounds the number of partitions scanned concurrently.
func WithParallelism(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// Manager holds the entries of every polystore index.
type Manager struct {
	adapters    *adapter.Registry
	parallelism int
	logger      *slog.Logger

	mu      sync.RWMutex
	indexes map[model.IndexID]*entries
}

var _ allocation.IndexManager = (*Manager)(nil)

// entries is the content of one index.
type entries struct {
	def    catalog.LogicalIndex
	keys   map[string][]string
	unique bool
}

// NewManager returns an index manager scanning through adapters.
func NewManager(adapters *adapter.Registry, opts ...Option) *Manager {
	m := &Manager{
		adapters:    adapters,
		parallelism: 4,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		indexes:     make(map[model.IndexID]*entries),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Build (re)builds a polystore index from the entity's placements.
func (m *Manager) Build(ctx context.Context, snap *catalog.Snapshot, li catalog.LogicalIndex) error {
	if !li.IsPolystore() {
		return fmt.Errorf("index %s is located on adapter %d", li.Name, li.Location)
	}
	key, err := snap.Key(li.KeyID)
	if err != nil {
		return err
	}
	var pk []model.ColumnID
	if k, err := snap.PrimaryKey(li.EntityID); err == nil {
		pk = k.ColumnIDs
	}
	prop, err := snap.Property(li.EntityID)
	if err != nil {
		return err
	}

	e := &entries{def: li, keys: make(map[string][]string), unique: li.Unique}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for _, part := range prop.PartitionIDs {
		g.Go(func() error {
			t, err := m.covering(snap, part, key.ColumnIDs, pk)
			if err != nil {
				return err
			}
			ds, err := m.adapters.DataStore(t.Alloc.AdapterID)
			if err != nil {
				return err
			}
			return ds.ScanRows(gctx, t, func(r adapter.Row) error {
				mu.Lock()
				defer mu.Unlock()
				return e.add(adapter.RowKey(r, key.ColumnIDs), adapter.RowKey(r, pk))
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("build index %s: %w", li.Name, err)
	}

	m.mu.Lock()
	m.indexes[li.ID] = e
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "polystore index built", "index", li.Name, "entries", len(e.keys))
	return nil
}

func (e *entries) add(values, pk string) error {
	cur := e.keys[values]
	if e.unique && len(cur) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, e.def.Name)
	}
	e.keys[values] = append(cur, pk)
	return nil
}

// covering returns a table of an allocation of part that holds columns and
// pk, projected to them.
func (m *Manager) covering(snap *catalog.Snapshot, part model.PartitionID, columns, pk []model.ColumnID) (adapter.Table, error) {
	need := append(slices.Clone(columns), pk...)
	for _, a := range snap.AllocationsOfPartition(part) {
		t, err := adapter.TableFor(snap, a)
		if err != nil {
			return adapter.Table{}, err
		}
		projected := make([]adapter.Column, 0, len(need))
		for _, id := range need {
			c, ok := t.Column(id)
			if !ok {
				break
			}
			if !slices.ContainsFunc(projected, func(p adapter.Column) bool { return p.ID == id }) {
				projected = append(projected, c)
			}
		}
		if len(projected) == len(uniq(need)) {
			t.Columns = projected
			return t, nil
		}
	}
	return adapter.Table{}, fmt.Errorf("%w: partition %d", ErrNoCoveringPlacement, part)
}

func uniq(ids []model.ColumnID) []model.ColumnID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Drop forgets an index.
func (m *Manager) Drop(id model.IndexID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, id)
}

// Reindex rebuilds every polystore index of entity and drops the entries of
// indexes no longer in snap.
func (m *Manager) Reindex(ctx context.Context, snap *catalog.Snapshot, entity model.EntityID) error {
	live := make(map[model.IndexID]bool)
	for _, li := range snap.Indexes(entity) {
		if !li.IsPolystore() {
			continue
		}
		live[li.ID] = true
		if err := m.Build(ctx, snap, li); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.indexes {
		if e.def.EntityID == entity && !live[id] {
			delete(m.indexes, id)
		}
	}
	return nil
}

// Lookup returns the primary keys of the rows whose index columns equal
// values, in scan order. Keys are encoded as by adapter.RowKey.
func (m *Manager) Lookup(id model.IndexID, values ...any) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.indexes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownIndex, id)
	}
	return slices.Clone(e.keys[adapter.ValuesKey(values...)]), nil
}

// Len returns the number of distinct values held by an index.
func (m *Manager) Len(id model.IndexID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.indexes[id]; ok {
		return len(e.keys)
	}
	return 0
}

// Indexes returns the ids of the built indexes in ascending order.
func (m *Manager) Indexes() []model.IndexID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]model.IndexID, 0, len(m.indexes))
	for id := range m.indexes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
