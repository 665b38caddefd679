package allocation

import (
	"context"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// CreatePhysical creates the table, collection or graph segment of alloc and
// the adapter indexes located on its adapter.
func (m *Manager) CreatePhysical(ctx context.Context, snap *catalog.Snapshot, alloc catalog.AllocationEntity) error {
	switch v := alloc.Variant().(type) {
	case catalog.DocumentAllocation:
		ds, err := m.adapters.DocumentStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		return ds.CreateCollection(ctx, v.AllocationEntity)
	case catalog.GraphAllocation:
		gs, err := m.adapters.GraphStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		return gs.CreateGraph(ctx, v.AllocationEntity)
	default:
		ds, err := m.adapters.DataStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		t, err := adapter.TableFor(snap, alloc)
		if err != nil {
			return err
		}
		if err := ds.CreateTable(ctx, t); err != nil {
			return err
		}
		return m.createIndexes(ctx, snap, ds, t)
	}
}

// DropPhysical drops the physical entity of alloc. Tables of a data source
// are left alone.
func (m *Manager) DropPhysical(ctx context.Context, snap *catalog.Snapshot, alloc catalog.AllocationEntity) error {
	if alloc.External != "" {
		return nil
	}
	switch v := alloc.Variant().(type) {
	case catalog.DocumentAllocation:
		ds, err := m.adapters.DocumentStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		return ds.DropCollection(ctx, v.AllocationEntity)
	case catalog.GraphAllocation:
		gs, err := m.adapters.GraphStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		return gs.DropGraph(ctx, v.AllocationEntity)
	default:
		ds, err := m.adapters.DataStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		t, err := adapter.TableFor(snap, alloc)
		if err != nil {
			return err
		}
		return ds.DropTable(ctx, t)
	}
}

// TruncatePhysical removes all data of alloc.
func (m *Manager) TruncatePhysical(ctx context.Context, snap *catalog.Snapshot, alloc catalog.AllocationEntity) error {
	switch v := alloc.Variant().(type) {
	case catalog.DocumentAllocation:
		ds, err := m.adapters.DocumentStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		return ds.TruncateCollection(ctx, v.AllocationEntity)
	case catalog.GraphAllocation:
		gs, err := m.adapters.GraphStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		return gs.TruncateGraph(ctx, v.AllocationEntity)
	default:
		ds, err := m.adapters.DataStore(alloc.AdapterID)
		if err != nil {
			return err
		}
		t, err := adapter.TableFor(snap, alloc)
		if err != nil {
			return err
		}
		return ds.Truncate(ctx, t)
	}
}

// createIndexes creates the adapter indexes of the entity that live on the
// table's adapter and whose columns the table holds.
func (m *Manager) createIndexes(ctx context.Context, snap *catalog.Snapshot, ds adapter.DataStore, t adapter.Table) error {
	for _, li := range snap.Indexes(t.Alloc.EntityID) {
		if li.Location != t.Alloc.AdapterID {
			continue
		}
		idx, err := adapter.IndexFor(snap, li, t.Alloc)
		if err != nil {
			return err
		}
		if !holdsAll(t, idx.Columns) {
			continue
		}
		if err := ds.AddIndex(ctx, t, idx); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndex creates li on every allocation of the placement on its
// location adapter.
func (m *Manager) CreateIndex(ctx context.Context, snap *catalog.Snapshot, li catalog.LogicalIndex) error {
	return m.eachIndexTable(snap, li, func(ds adapter.DataStore, t adapter.Table, idx adapter.Index) error {
		return ds.AddIndex(ctx, t, idx)
	})
}

// DropIndex drops li from every allocation on its location adapter.
func (m *Manager) DropIndex(ctx context.Context, snap *catalog.Snapshot, li catalog.LogicalIndex) error {
	return m.eachIndexTable(snap, li, func(ds adapter.DataStore, t adapter.Table, idx adapter.Index) error {
		return ds.DropIndex(ctx, t, idx)
	})
}

func (m *Manager) eachIndexTable(snap *catalog.Snapshot, li catalog.LogicalIndex, fn func(adapter.DataStore, adapter.Table, adapter.Index) error) error {
	if li.IsPolystore() {
		return nil
	}
	p, err := snap.PlacementFor(li.EntityID, li.Location)
	if err != nil {
		return err
	}
	ds, err := m.adapters.DataStore(li.Location)
	if err != nil {
		return err
	}
	for _, alloc := range snap.AllocationsOfPlacement(p.ID) {
		t, err := adapter.TableFor(snap, alloc)
		if err != nil {
			return err
		}
		idx, err := adapter.IndexFor(snap, li, alloc)
		if err != nil {
			return err
		}
		if err := fn(ds, t, idx); err != nil {
			return err
		}
	}
	return nil
}

func holdsAll(t adapter.Table, columns []model.ColumnID) bool {
	for _, c := range columns {
		if _, ok := t.Column(c); !ok {
			return false
		}
	}
	return true
}
