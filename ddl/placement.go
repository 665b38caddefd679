package ddl

import (
	"context"
	"fmt"

	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/model"
)

// PlacementRequest describes a new placement. Empty Columns places every
// column, empty Partitions every partition.
type PlacementRequest struct {
	Namespace  string
	Entity     string
	Adapter    model.AdapterID
	Columns    []string
	Partitions []string
}

func placementTarget(ns, name string, adapter model.AdapterID) string {
	return fmt.Sprintf("%s.%s@%d", ns, name, adapter)
}

// AddPlacement places an entity on one more adapter and fills the new
// allocations from the existing placements.
func (o *Orchestrator) AddPlacement(ctx context.Context, req PlacementRequest) error {
	return o.run(ctx, "ADD PLACEMENT", placementTarget(req.Namespace, req.Entity, req.Adapter), func() error {
		v := o.cat.Working()
		e, err := entity(v, req.Namespace, req.Entity)
		if err != nil {
			return err
		}
		columns, err := columnIDs(v, e.ID, req.Columns)
		if err != nil {
			return err
		}
		partitions, err := partitionIDs(v, e.ID, req.Partitions)
		if err != nil {
			return err
		}
		_, err = o.alloc.AddPlacement(ctx, allocation.PlacementSpec{
			Entity:     e.ID,
			Adapter:    req.Adapter,
			Columns:    columns,
			Partitions: partitions,
			Type:       model.Manual,
		})
		return err
	})
}

// DropPlacement removes the placement of an entity on adapter. It is
// refused when some column or partition would be left without a copy.
func (o *Orchestrator) DropPlacement(ctx context.Context, ns, name string, adapter model.AdapterID) error {
	return o.run(ctx, "DROP PLACEMENT", placementTarget(ns, name, adapter), func() error {
		e, err := entity(o.cat.Working(), ns, name)
		if err != nil {
			return err
		}
		return o.alloc.DropPlacement(ctx, e.ID, adapter)
	})
}

// AddColumnPlacement puts a column on an existing placement as MANUAL.
func (o *Orchestrator) AddColumnPlacement(ctx context.Context, ns, table, column string, adapter model.AdapterID) error {
	return o.run(ctx, "ADD COLUMN PLACEMENT", placementTarget(ns, table+"."+column, adapter), func() error {
		v := o.cat.Working()
		e, err := entity(v, ns, table)
		if err != nil {
			return err
		}
		c, err := v.ColumnByName(e.ID, column)
		if err != nil {
			return err
		}
		return o.alloc.AddColumnPlacement(ctx, e.ID, c.ID, adapter, model.Manual)
	})
}

// DropColumnPlacement removes a column from one placement.
func (o *Orchestrator) DropColumnPlacement(ctx context.Context, ns, table, column string, adapter model.AdapterID) error {
	return o.run(ctx, "DROP COLUMN PLACEMENT", placementTarget(ns, table+"."+column, adapter), func() error {
		v := o.cat.Working()
		e, err := entity(v, ns, table)
		if err != nil {
			return err
		}
		c, err := v.ColumnByName(e.ID, column)
		if err != nil {
			return err
		}
		return o.alloc.DropColumnPlacement(ctx, e.ID, c.ID, adapter)
	})
}

// ModifyPlacement makes the placement on adapter hold exactly columns and
// the primary key.
func (o *Orchestrator) ModifyPlacement(ctx context.Context, ns, table string, adapter model.AdapterID, columns []string) error {
	return o.run(ctx, "MODIFY PLACEMENT", placementTarget(ns, table, adapter), func() error {
		v := o.cat.Working()
		e, err := modifiable(v, ns, table, model.Relational)
		if err != nil {
			return err
		}
		ids, err := columnIDs(v, e.ID, columns)
		if err != nil {
			return err
		}
		return o.alloc.ModifyPlacement(ctx, e.ID, adapter, ids, model.Manual)
	})
}

// ModifyPartitionPlacement makes the placement on adapter hold exactly the
// named partitions.
func (o *Orchestrator) ModifyPartitionPlacement(ctx context.Context, ns, table string, adapter model.AdapterID, partitions []string) error {
	return o.run(ctx, "MODIFY PARTITIONS", placementTarget(ns, table, adapter), func() error {
		v := o.cat.Working()
		e, err := entity(v, ns, table)
		if err != nil {
			return err
		}
		if len(partitions) == 0 {
			return invalid("placement of %s needs at least one partition", e.Name)
		}
		ids, err := partitionIDs(v, e.ID, partitions)
		if err != nil {
			return err
		}
		return o.alloc.ModifyPartitionPlacement(ctx, e.ID, adapter, ids)
	})
}

// RemoveAdapter drops every placement on an adapter and unregisters it.
// Nothing is dropped unless every placement can go.
func (o *Orchestrator) RemoveAdapter(ctx context.Context, id model.AdapterID) error {
	return o.run(ctx, "REMOVE ADAPTER", fmt.Sprintf("adapter %d", id), func() error {
		if _, err := o.adapters.Get(id); err != nil {
			return err
		}
		v := o.cat.Working()
		placements := v.PlacementsOnAdapter(id)
		for _, p := range placements {
			if !allocation.CanDropPlacement(v, p) {
				return &allocation.PlacementError{Entity: p.EntityID, Adapter: id, Err: allocation.ErrConstraintViolation}
			}
		}

		for _, p := range placements {
			if err := o.alloc.RemovePlacement(ctx, p); err != nil {
				return err
			}
		}
		o.adapters.Remove(id)
		return nil
	})
}
