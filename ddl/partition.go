package ddl

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/partition"
)

// PartitionSpec describes how to partition a table. GroupNames and
// Qualifiers feed the strategy's group setup; Temperature is required for
// TEMPERATURE partitioning.
type PartitionSpec struct {
	Namespace      string
	Table          string
	Type           model.PartitionType
	Column         string
	PartitionCount int
	GroupNames     []string
	Qualifiers     [][]string
	Temperature    *partition.TemperatureRequest
}

// CreateTablePartition splits an unpartitioned table. Every placement gets
// one allocation per new partition, rows are routed from the old allocation
// of the same placement, and the old partition is dropped.
func (o *Orchestrator) CreateTablePartition(ctx context.Context, spec PartitionSpec) error {
	return o.run(ctx, "PARTITION TABLE", spec.Namespace+"."+spec.Table, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, spec.Namespace, spec.Table, model.Relational)
		if err != nil {
			return err
		}
		prop, err := v.Property(e.ID)
		if err != nil {
			return err
		}
		if prop.IsPartitioned() {
			return fmt.Errorf("%w: %s", ErrAlreadyPartitioned, e.Name)
		}
		if spec.Type == model.PartitionNone {
			return invalid("partition type of %s is %s", e.Name, spec.Type)
		}
		col, err := v.ColumnByName(e.ID, spec.Column)
		if err != nil {
			return err
		}
		// HASH has one group per partition; the other strategies count
		// groups from names and qualifiers.
		groupCount := len(spec.GroupNames)
		if spec.Type == model.PartitionHash && groupCount == 0 {
			groupCount = spec.PartitionCount
		}
		layout, err := o.partitions.Plan(partition.Request{
			Type:   spec.Type,
			Column: col,
			Setup: partition.Setup{
				GroupCount: groupCount,
				Names:      spec.GroupNames,
				Qualifiers: spec.Qualifiers,
			},
			PartitionCount: spec.PartitionCount,
			Temperature:    spec.Temperature,
		})
		if err != nil {
			return err
		}
		oldParts := v.Partitions(e.ID)
		oldGroups := v.Groups(e.ID)
		oldAllocs := v.Allocations(e.ID)

		// Rows are routed by the partition column, so every placement needs it.
		for _, p := range v.Placements(e.ID) {
			if _, err := v.AllocColumn(p.ID, col.ID); err != nil {
				if err := o.alloc.AddColumnPlacement(ctx, e.ID, col.ID, p.AdapterID, model.Automatic); err != nil {
					return err
				}
			}
		}
		groups, parts, err := o.addLayout(e.ID, layout)
		if err != nil {
			return err
		}
		next := layout.Property(e.ID, col.ID, groups, parts)
		allocs, err := o.alloc.Allocate(ctx, o.cat.Working().Placements(e.ID), parts)
		if err != nil {
			return err
		}
		if err := o.migrator.CopyAllocationData(ctx, o.cat.Working(), oldAllocs, allocs, next); err != nil {
			return err
		}
		if err := o.replacePartitions(ctx, e.ID, next, oldAllocs, oldParts, oldGroups); err != nil {
			return err
		}
		o.logger.DebugContext(ctx, "table partitioned",
			"entity", e.Name, "type", spec.Type, "groups", len(groups), "partitions", len(parts))
		return nil
	})
}

// DropTablePartition merges a partitioned table back into a single
// partition. Every placement ends up holding all rows of its columns.
func (o *Orchestrator) DropTablePartition(ctx context.Context, ns, table string) error {
	return o.run(ctx, "MERGE PARTITIONS", ns+"."+table, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, ns, table, model.Relational)
		if err != nil {
			return err
		}
		prop, err := v.Property(e.ID)
		if err != nil {
			return err
		}
		if !prop.IsPartitioned() {
			return fmt.Errorf("%w: %s", ErrNotPartitioned, e.Name)
		}
		oldParts := v.Partitions(e.ID)
		oldGroups := v.Groups(e.ID)
		oldAllocs := v.Allocations(e.ID)
		placements := v.Placements(e.ID)

		layout := partition.DefaultLayout()
		groups, parts, err := o.addLayout(e.ID, layout)
		if err != nil {
			return err
		}
		next := layout.Property(e.ID, 0, groups, parts)
		allocs, err := o.alloc.Allocate(ctx, placements, parts)
		if err != nil {
			return err
		}
		w := o.cat.Working()
		for _, a := range allocs {
			sources := mergeSources(w, a.PlacementID, oldParts)
			if err := o.migrator.MergeRows(ctx, w, sources, a); err != nil {
				return err
			}
		}
		if err := o.replacePartitions(ctx, e.ID, next, oldAllocs, oldParts, oldGroups); err != nil {
			return err
		}
		o.logger.DebugContext(ctx, "partitions merged", "entity", e.Name, "partitions", len(oldParts))
		return nil
	})
}

// mergeSources picks for every old partition the allocations that hold the
// placement's columns: its own allocation when it had one, otherwise a
// single allocation holding all of them, otherwise every allocation of the
// partition.
func mergeSources(v *catalog.Snapshot, placement model.PlacementID, oldParts []catalog.AllocationPartition) []catalog.AllocationEntity {
	var cols []model.ColumnID
	for _, ac := range v.AllocColumns(placement) {
		cols = append(cols, ac.ColumnID)
	}
	holdsAll := func(a catalog.AllocationEntity) bool {
		for _, c := range cols {
			if _, err := v.AllocColumn(a.PlacementID, c); err != nil {
				return false
			}
		}
		return true
	}

	var out []catalog.AllocationEntity
	for _, part := range oldParts {
		if a, err := v.AllocationFor(placement, part.ID); err == nil {
			out = append(out, a)
			continue
		}
		allocs := v.AllocationsOfPartition(part.ID)
		if i := slices.IndexFunc(allocs, holdsAll); i >= 0 {
			out = append(out, allocs[i])
			continue
		}
		out = append(out, allocs...)
	}
	return out
}

// replacePartitions installs the new partition property, then drops the
// old allocations, partitions and groups and rebuilds polystore indexes.
func (o *Orchestrator) replacePartitions(ctx context.Context, entity model.EntityID, next catalog.PartitionProperty, allocs []catalog.AllocationEntity, parts []catalog.AllocationPartition, groups []catalog.AllocationPartitionGroup) error {
	if err := o.cat.SetProperty(next); err != nil {
		return err
	}
	if err := o.alloc.Deallocate(ctx, allocs); err != nil {
		return err
	}
	for _, p := range parts {
		if err := o.cat.DeletePartition(p.ID); err != nil {
			return err
		}
	}
	for _, g := range groups {
		if err := o.cat.DeleteGroup(g.ID); err != nil {
			return err
		}
	}
	return o.indexes.Reindex(ctx, o.cat.Working(), entity)
}
