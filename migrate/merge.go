package migrate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// CopyDocData copies every document of src into dst.
func (m *Migrator) CopyDocData(ctx context.Context, src, dst catalog.AllocationEntity) error {
	from, err := m.adapters.DocumentStore(src.AdapterID)
	if err != nil {
		return err
	}
	to, err := m.adapters.DocumentStore(dst.AdapterID)
	if err != nil {
		return err
	}

	start := time.Now()
	var docs []adapter.Document
	err = m.read(ctx, func(ctx context.Context) error {
		return from.ScanDocuments(ctx, src, func(d adapter.Document) error {
			docs = append(docs, d)
			return nil
		})
	})
	for batch := range slices.Chunk(docs, m.batchSize) {
		if err != nil {
			break
		}
		err = m.throttled(ctx, len(batch), func() error {
			return to.InsertDocuments(ctx, dst, batch)
		})
	}
	m.observe(int64(len(docs)), start, err)
	return err
}

// CopyGraphData copies every node and edge of src into dst. Nodes are written
// before edges.
func (m *Migrator) CopyGraphData(ctx context.Context, src, dst catalog.AllocationEntity) error {
	from, err := m.adapters.GraphStore(src.AdapterID)
	if err != nil {
		return err
	}
	to, err := m.adapters.GraphStore(dst.AdapterID)
	if err != nil {
		return err
	}

	start := time.Now()
	var (
		nodes []adapter.Node
		edges []adapter.Edge
	)
	err = m.read(ctx, func(ctx context.Context) error {
		return from.ScanGraph(ctx, src,
			func(n adapter.Node) error { nodes = append(nodes, n); return nil },
			func(e adapter.Edge) error { edges = append(edges, e); return nil })
	})
	if err == nil {
		err = m.throttled(ctx, len(nodes)+len(edges), func() error {
			return to.InsertGraph(ctx, dst, nodes, edges)
		})
	}
	m.observe(int64(len(nodes)+len(edges)), start, err)
	return err
}

// CopyAllocationData moves the data of sources into targets after the
// entity was repartitioned. Both slices hold allocations of the same
// placements; every source row goes to the target of its own placement
// that prop routes the row to.
func (m *Migrator) CopyAllocationData(ctx context.Context, snap *catalog.Snapshot, sources, targets []catalog.AllocationEntity, prop catalog.PartitionProperty) error {
	byPlacement := make(map[model.PlacementID][]catalog.AllocationEntity)
	for _, t := range targets {
		byPlacement[t.PlacementID] = append(byPlacement[t.PlacementID], t)
	}
	for _, src := range sources {
		dsts := byPlacement[src.PlacementID]
		if len(dsts) == 0 {
			continue
		}
		var err error
		switch src.Model {
		case model.Document:
			err = m.CopyDocData(ctx, src, dsts[0])
		case model.Graph:
			err = m.CopyGraphData(ctx, src, dsts[0])
		default:
			err = m.repartitionRows(ctx, snap, src, dsts, prop)
		}
		if err != nil {
			return fmt.Errorf("repartition %s: %w", src.PhysicalName(), err)
		}
	}
	return nil
}

func (m *Migrator) repartitionRows(ctx context.Context, snap *catalog.Snapshot, src catalog.AllocationEntity, dsts []catalog.AllocationEntity, prop catalog.PartitionProperty) error {
	st, err := adapter.TableFor(snap, src)
	if err != nil {
		return err
	}
	byPartition := make(map[model.PartitionID]adapter.Table, len(dsts))
	for _, d := range dsts {
		t, err := adapter.TableFor(snap, d)
		if err != nil {
			return err
		}
		byPartition[d.PartitionID] = t
	}
	ds, err := m.adapters.DataStore(src.AdapterID)
	if err != nil {
		return err
	}

	start := time.Now()
	routed := make(map[model.PartitionID][]adapter.Row)
	var total int64
	err = m.read(ctx, func(ctx context.Context) error {
		return ds.ScanRows(ctx, st, func(r adapter.Row) error {
			pid, err := m.partitions.Route(snap, prop, r[prop.ColumnID])
			if err != nil {
				return err
			}
			if _, ok := byPartition[pid]; !ok {
				return fmt.Errorf("%w: partition %d on placement %d", ErrNoSource, pid, src.PlacementID)
			}
			routed[pid] = append(routed[pid], r)
			total++
			return nil
		})
	})
	if err == nil {
		for _, pid := range sortedKeys(routed) {
			if err = m.write(ctx, byPartition[pid], routed[pid]); err != nil {
				break
			}
		}
	}
	m.observe(total, start, err)
	return err
}

// MergeRows fills target with the rows of sources, which may belong to any
// placement and partition of the entity. Sources holding different columns
// are merged by the primary key of target.
func (m *Migrator) MergeRows(ctx context.Context, snap *catalog.Snapshot, sources []catalog.AllocationEntity, target catalog.AllocationEntity) error {
	tt, err := adapter.TableFor(snap, target)
	if err != nil {
		return err
	}
	var (
		srcs    []source
		partial bool
	)
	for _, a := range sources {
		t, err := adapter.TableFor(snap, a)
		if err != nil {
			return err
		}
		var cols []model.ColumnID
		for _, c := range tt.Columns {
			if _, ok := t.Column(c.ID); ok {
				cols = append(cols, c.ID)
			}
		}
		if len(cols) == 0 {
			continue
		}
		partial = partial || len(cols) < len(tt.Columns)
		srcs = append(srcs, source{alloc: a, table: t, columns: cols})
	}
	if len(srcs) == 0 {
		return nil
	}
	if len(tt.PrimaryKey) == 0 && partial {
		return allocation.ErrMissingKey
	}

	start := time.Now()
	rows, err := m.readMerged(ctx, srcs, tt.PrimaryKey)
	if err == nil {
		err = m.write(ctx, tt, rows)
	}
	m.observe(int64(len(rows)), start, err)
	return err
}

// read runs fn holding a read slot.
func (m *Migrator) read(ctx context.Context, fn func(context.Context) error) error {
	if err := m.rc.AcquireRead(ctx); err != nil {
		return err
	}
	defer m.rc.ReleaseRead()
	return fn(ctx)
}

// throttled runs fn holding n buffered rows after waiting for the write rate.
func (m *Migrator) throttled(ctx context.Context, n int, fn func() error) error {
	if err := m.rc.WaitRows(ctx, n); err != nil {
		return err
	}
	if err := m.rc.AcquireRows(ctx, int64(n)); err != nil {
		return err
	}
	defer m.rc.ReleaseRows(int64(n))
	return fn()
}

func sortedKeys[V any](m map[model.PartitionID]V) []model.PartitionID {
	keys := make([]model.PartitionID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
