package allocation

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// wholeEntity stands in for the columns of documents and graphs, which are
// always stored as a unit.
const wholeEntity model.ColumnID = 0

// ValidatePlacementsConstraints reports whether removing columns and
// partitions from placement leaves every (column, partition) pair of the
// entity covered by at least one placement. It never mutates state.
func ValidatePlacementsConstraints(snap *catalog.Snapshot, placement catalog.AllocationPlacement, columns []model.ColumnID, partitions []model.PartitionID) bool {
	entity, err := snap.Entity(placement.EntityID)
	if err != nil {
		return false
	}
	all := entityColumns(snap, entity)
	parts := entityPartitions(snap, entity.ID)

	needs := make(map[model.ColumnID]*roaring64.Bitmap, len(all))
	for _, c := range all {
		needs[c] = partitionSet(parts)
	}
	dropColumns := columnSet(columns)
	dropParts := partitionSet(partitions)
	full := partitionSet(parts)

	for _, p := range snap.Placements(entity.ID) {
		cols := placementColumns(snap, entity, p.ID)
		held := partitionSet(heldPartitions(snap, p.ID))

		if p.ID != placement.ID && p.AdapterID != placement.AdapterID &&
			len(cols) == len(all) && roaring64.AndNot(full, held).IsEmpty() {
			return true
		}
		if p.ID == placement.ID {
			cols = slices.DeleteFunc(cols, func(c model.ColumnID) bool { return dropColumns[c] })
			held.AndNot(dropParts)
		}
		for _, c := range cols {
			if n, ok := needs[c]; ok {
				n.AndNot(held)
			}
		}
	}
	for _, n := range needs {
		if !n.IsEmpty() {
			return false
		}
	}
	return true
}

// CanDropPlacement reports whether the whole placement can be removed
// without stranding data.
func CanDropPlacement(snap *catalog.Snapshot, placement catalog.AllocationPlacement) bool {
	e, err := snap.Entity(placement.EntityID)
	if err != nil {
		return false
	}
	return ValidatePlacementsConstraints(snap, placement, placementColumns(snap, e, placement.ID), heldPartitions(snap, placement.ID))
}

// Gap is a (column, partition) pair no placement covers. Column is zero for
// documents and graphs.
type Gap struct {
	Column    model.ColumnID
	Partition model.PartitionID
}

// CheckCoverage returns the uncovered (column, partition) pairs of entity,
// ordered by column and partition.
func CheckCoverage(snap *catalog.Snapshot, entity model.EntityID) ([]Gap, error) {
	e, err := snap.Entity(entity)
	if err != nil {
		return nil, err
	}
	if !hasData(e) {
		return nil, nil
	}
	parts := entityPartitions(snap, e.ID)
	needs := make(map[model.ColumnID]*roaring64.Bitmap)
	all := entityColumns(snap, e)
	for _, c := range all {
		needs[c] = partitionSet(parts)
	}
	for _, p := range snap.Placements(e.ID) {
		held := partitionSet(heldPartitions(snap, p.ID))
		for _, c := range placementColumns(snap, e, p.ID) {
			if n, ok := needs[c]; ok {
				n.AndNot(held)
			}
		}
	}

	var gaps []Gap
	for _, c := range all {
		it := needs[c].Iterator()
		for it.HasNext() {
			gaps = append(gaps, Gap{Column: c, Partition: model.PartitionID(it.Next())})
		}
	}
	return gaps, nil
}

func hasData(e catalog.LogicalEntity) bool {
	return e.Type != model.View
}

func entityColumns(snap *catalog.Snapshot, e catalog.LogicalEntity) []model.ColumnID {
	if e.Model != model.Relational {
		return []model.ColumnID{wholeEntity}
	}
	cols := snap.Columns(e.ID)
	ids := make([]model.ColumnID, len(cols))
	for i, c := range cols {
		ids[i] = c.ID
	}
	return ids
}

func placementColumns(snap *catalog.Snapshot, e catalog.LogicalEntity, placement model.PlacementID) []model.ColumnID {
	if e.Model != model.Relational {
		return []model.ColumnID{wholeEntity}
	}
	acs := snap.AllocColumns(placement)
	ids := make([]model.ColumnID, len(acs))
	for i, ac := range acs {
		ids[i] = ac.ColumnID
	}
	return ids
}

func entityPartitions(snap *catalog.Snapshot, entity model.EntityID) []model.PartitionID {
	if prop, err := snap.Property(entity); err == nil {
		return prop.PartitionIDs
	}
	parts := snap.Partitions(entity)
	ids := make([]model.PartitionID, len(parts))
	for i, p := range parts {
		ids[i] = p.ID
	}
	return ids
}

func heldPartitions(snap *catalog.Snapshot, placement model.PlacementID) []model.PartitionID {
	allocs := snap.AllocationsOfPlacement(placement)
	ids := make([]model.PartitionID, len(allocs))
	for i, a := range allocs {
		ids[i] = a.PartitionID
	}
	return ids
}

func partitionSet(ids []model.PartitionID) *roaring64.Bitmap {
	b := roaring64.New()
	for _, id := range ids {
		b.Add(uint64(id))
	}
	return b
}

func columnSet(ids []model.ColumnID) map[model.ColumnID]bool {
	m := make(map[model.ColumnID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
