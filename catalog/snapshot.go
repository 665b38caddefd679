package catalog

import (
	"slices"
	"strings"

	"github.com/hupe1980/polyalloc/model"
)

// Snapshot is an immutable read view of the catalog.
type Snapshot struct {
	s       *state
	version uint64
}

// Version increases by one for every published snapshot.
func (s *Snapshot) Version() uint64 { return s.version }

// Namespace returns the namespace with the given id.
func (s *Snapshot) Namespace(id model.NamespaceID) (Namespace, error) {
	ns, ok := s.s.Namespaces[id]
	if !ok {
		return Namespace{}, notFound(KindNamespace, id)
	}
	return ns, nil
}

// NamespaceByName looks a namespace up by its case-insensitive name.
func (s *Snapshot) NamespaceByName(name string) (Namespace, error) {
	for _, ns := range s.s.Namespaces {
		if strings.EqualFold(ns.Name, name) {
			return ns, nil
		}
	}
	return Namespace{}, notFoundName(KindNamespace, name)
}

// Namespaces returns all namespaces ordered by id.
func (s *Snapshot) Namespaces() []Namespace {
	return sortedValues(s.s.Namespaces, nil)
}

// Entity returns the logical entity with the given id.
func (s *Snapshot) Entity(id model.EntityID) (LogicalEntity, error) {
	e, ok := s.s.Entities[id]
	if !ok {
		return LogicalEntity{}, notFound(KindEntity, id)
	}
	return e, nil
}

// EntityByName looks an entity up inside a namespace, honoring the
// namespace's case sensitivity.
func (s *Snapshot) EntityByName(namespace model.NamespaceID, name string) (LogicalEntity, error) {
	ns, err := s.Namespace(namespace)
	if err != nil {
		return LogicalEntity{}, err
	}
	for _, e := range s.s.Entities {
		if e.NamespaceID == namespace && sameName(ns.CaseSensitive, e.Name, name) {
			return e, nil
		}
	}
	return LogicalEntity{}, notFoundName(KindEntity, name)
}

// Entities returns all entities of a namespace ordered by id.
func (s *Snapshot) Entities(namespace model.NamespaceID) []LogicalEntity {
	return sortedValues(s.s.Entities, func(e LogicalEntity) bool { return e.NamespaceID == namespace })
}

// DependentViews returns the views that read from entity.
func (s *Snapshot) DependentViews(entity model.EntityID) []LogicalEntity {
	return sortedValues(s.s.Entities, func(e LogicalEntity) bool {
		return e.Type.IsView() && slices.Contains(e.Underlying, entity)
	})
}

// Column returns the column with the given id.
func (s *Snapshot) Column(id model.ColumnID) (LogicalColumn, error) {
	c, ok := s.s.Columns[id]
	if !ok {
		return LogicalColumn{}, notFound(KindColumn, id)
	}
	return c, nil
}

// ColumnByName looks a column of entity up by name.
func (s *Snapshot) ColumnByName(entity model.EntityID, name string) (LogicalColumn, error) {
	caseSensitive := false
	if e, ok := s.s.Entities[entity]; ok {
		caseSensitive = s.s.Namespaces[e.NamespaceID].CaseSensitive
	}
	for _, c := range s.s.Columns {
		if c.EntityID == entity && sameName(caseSensitive, c.Name, name) {
			return c, nil
		}
	}
	return LogicalColumn{}, notFoundName(KindColumn, name)
}

// Columns returns the columns of entity ordered by position.
func (s *Snapshot) Columns(entity model.EntityID) []LogicalColumn {
	cols := sortedValues(s.s.Columns, func(c LogicalColumn) bool { return c.EntityID == entity })
	slices.SortStableFunc(cols, func(a, b LogicalColumn) int { return a.Position - b.Position })
	return cols
}

// Key returns the key with the given id.
func (s *Snapshot) Key(id model.KeyID) (LogicalKey, error) {
	k, ok := s.s.Keys[id]
	if !ok {
		return LogicalKey{}, notFound(KindKey, id)
	}
	return k, nil
}

// Keys returns the keys of entity ordered by id.
func (s *Snapshot) Keys(entity model.EntityID) []LogicalKey {
	return sortedValues(s.s.Keys, func(k LogicalKey) bool { return k.EntityID == entity })
}

// PrimaryKey returns the primary key of entity.
func (s *Snapshot) PrimaryKey(entity model.EntityID) (LogicalKey, error) {
	for _, k := range s.s.Keys {
		if k.EntityID == entity && k.Kind == model.PrimaryKey {
			return k, nil
		}
	}
	return LogicalKey{}, &NotFoundError{Kind: KindKey, Name: "primary key"}
}

// IsPrimaryKeyColumn reports whether column belongs to its entity's primary key.
func (s *Snapshot) IsPrimaryKeyColumn(column model.ColumnID) bool {
	c, ok := s.s.Columns[column]
	if !ok {
		return false
	}
	pk, err := s.PrimaryKey(c.EntityID)
	return err == nil && pk.HasColumn(column)
}

// ForeignKeysReferencing returns the foreign keys that reference key.
func (s *Snapshot) ForeignKeysReferencing(key model.KeyID) []LogicalKey {
	return sortedValues(s.s.Keys, func(k LogicalKey) bool {
		return k.Kind == model.ForeignKey && k.ReferencedKeyID == key
	})
}

// Index returns the index with the given id.
func (s *Snapshot) Index(id model.IndexID) (LogicalIndex, error) {
	i, ok := s.s.Indexes[id]
	if !ok {
		return LogicalIndex{}, notFound(KindIndex, id)
	}
	return i, nil
}

// IndexByName looks an index of entity up by name.
func (s *Snapshot) IndexByName(entity model.EntityID, name string) (LogicalIndex, error) {
	for _, i := range s.s.Indexes {
		if i.EntityID == entity && strings.EqualFold(i.Name, name) {
			return i, nil
		}
	}
	return LogicalIndex{}, notFoundName(KindIndex, name)
}

// Indexes returns the indexes of entity ordered by id.
func (s *Snapshot) Indexes(entity model.EntityID) []LogicalIndex {
	return sortedValues(s.s.Indexes, func(i LogicalIndex) bool { return i.EntityID == entity })
}

// Constraint returns the constraint with the given id.
func (s *Snapshot) Constraint(id model.ConstraintID) (LogicalConstraint, error) {
	c, ok := s.s.Constraints[id]
	if !ok {
		return LogicalConstraint{}, notFound(KindConstraint, id)
	}
	return c, nil
}

// Constraints returns the constraints of entity ordered by id.
func (s *Snapshot) Constraints(entity model.EntityID) []LogicalConstraint {
	return sortedValues(s.s.Constraints, func(c LogicalConstraint) bool { return c.EntityID == entity })
}

// Placement returns the placement with the given id.
func (s *Snapshot) Placement(id model.PlacementID) (AllocationPlacement, error) {
	p, ok := s.s.Placements[id]
	if !ok {
		return AllocationPlacement{}, notFound(KindPlacement, id)
	}
	return p, nil
}

// PlacementFor returns the placement of entity on adapter.
func (s *Snapshot) PlacementFor(entity model.EntityID, adapter model.AdapterID) (AllocationPlacement, error) {
	for _, p := range s.s.Placements {
		if p.EntityID == entity && p.AdapterID == adapter {
			return p, nil
		}
	}
	return AllocationPlacement{}, notFound(KindPlacement, entity)
}

// Placements returns the placements of entity ordered by id.
func (s *Snapshot) Placements(entity model.EntityID) []AllocationPlacement {
	return sortedValues(s.s.Placements, func(p AllocationPlacement) bool { return p.EntityID == entity })
}

// PlacementsOnAdapter returns every placement hosted by adapter.
func (s *Snapshot) PlacementsOnAdapter(adapter model.AdapterID) []AllocationPlacement {
	return sortedValues(s.s.Placements, func(p AllocationPlacement) bool { return p.AdapterID == adapter })
}

// AllocColumn returns the placement of column on placement.
func (s *Snapshot) AllocColumn(placement model.PlacementID, column model.ColumnID) (AllocationColumn, error) {
	for _, c := range s.s.AllocColumns[placement] {
		if c.ColumnID == column {
			return c, nil
		}
	}
	return AllocationColumn{}, notFound(KindAllocColumn, column)
}

// AllocColumns returns the columns placed on placement ordered by position.
func (s *Snapshot) AllocColumns(placement model.PlacementID) []AllocationColumn {
	cols := slices.Clone(s.s.AllocColumns[placement])
	slices.SortStableFunc(cols, func(a, b AllocationColumn) int { return a.Position - b.Position })
	return cols
}

// ColumnPlacements returns every placement of column.
func (s *Snapshot) ColumnPlacements(column model.ColumnID) []AllocationColumn {
	var out []AllocationColumn
	for _, p := range sortedValues(s.s.Placements, nil) {
		for _, c := range s.s.AllocColumns[p.ID] {
			if c.ColumnID == column {
				out = append(out, c)
			}
		}
	}
	return out
}

// Group returns the partition group with the given id.
func (s *Snapshot) Group(id model.GroupID) (AllocationPartitionGroup, error) {
	g, ok := s.s.Groups[id]
	if !ok {
		return AllocationPartitionGroup{}, notFound(KindGroup, id)
	}
	return g, nil
}

// Groups returns the partition groups of entity ordered by id.
func (s *Snapshot) Groups(entity model.EntityID) []AllocationPartitionGroup {
	return sortedValues(s.s.Groups, func(g AllocationPartitionGroup) bool { return g.EntityID == entity })
}

// Partition returns the partition with the given id.
func (s *Snapshot) Partition(id model.PartitionID) (AllocationPartition, error) {
	p, ok := s.s.Partitions[id]
	if !ok {
		return AllocationPartition{}, notFound(KindPartition, id)
	}
	return p, nil
}

// Partitions returns the partitions of entity ordered by id.
func (s *Snapshot) Partitions(entity model.EntityID) []AllocationPartition {
	return sortedValues(s.s.Partitions, func(p AllocationPartition) bool { return p.EntityID == entity })
}

// PartitionsInGroup returns the partitions of group ordered by id.
func (s *Snapshot) PartitionsInGroup(group model.GroupID) []AllocationPartition {
	return sortedValues(s.s.Partitions, func(p AllocationPartition) bool { return p.GroupID == group })
}

// Property returns the partition property of entity.
func (s *Snapshot) Property(entity model.EntityID) (PartitionProperty, error) {
	p, ok := s.s.Properties[entity]
	if !ok {
		return PartitionProperty{}, notFound(KindProperty, entity)
	}
	return p, nil
}

// Allocation returns the allocation entity with the given id.
func (s *Snapshot) Allocation(id model.AllocationID) (AllocationEntity, error) {
	a, ok := s.s.Allocations[id]
	if !ok {
		return AllocationEntity{}, notFound(KindAllocation, id)
	}
	return a, nil
}

// AllocationFor returns the allocation of partition on placement.
func (s *Snapshot) AllocationFor(placement model.PlacementID, partition model.PartitionID) (AllocationEntity, error) {
	for _, a := range s.s.Allocations {
		if a.PlacementID == placement && a.PartitionID == partition {
			return a, nil
		}
	}
	return AllocationEntity{}, notFound(KindAllocation, partition)
}

// Allocations returns every allocation of entity ordered by id.
func (s *Snapshot) Allocations(entity model.EntityID) []AllocationEntity {
	return sortedValues(s.s.Allocations, func(a AllocationEntity) bool { return a.EntityID == entity })
}

// AllocationsOfPlacement returns the allocations of placement ordered by id.
func (s *Snapshot) AllocationsOfPlacement(placement model.PlacementID) []AllocationEntity {
	return sortedValues(s.s.Allocations, func(a AllocationEntity) bool { return a.PlacementID == placement })
}

// AllocationsOfPartition returns the allocations of partition ordered by id.
func (s *Snapshot) AllocationsOfPartition(partition model.PartitionID) []AllocationEntity {
	return sortedValues(s.s.Allocations, func(a AllocationEntity) bool { return a.PartitionID == partition })
}

// AllocationsOnAdapter returns every allocation hosted by adapter.
func (s *Snapshot) AllocationsOnAdapter(adapter model.AdapterID) []AllocationEntity {
	return sortedValues(s.s.Allocations, func(a AllocationEntity) bool { return a.AdapterID == adapter })
}

// References reports whether any record of the snapshot still refers to
// entity. It is used to verify cascading drops.
func (s *Snapshot) References(entity model.EntityID) []Kind {
	var kinds []Kind
	add := func(k Kind, present bool) {
		if present {
			kinds = append(kinds, k)
		}
	}
	add(KindAllocation, len(s.Allocations(entity)) > 0)
	hasAllocCol := false
	for _, cols := range s.s.AllocColumns {
		for _, c := range cols {
			hasAllocCol = hasAllocCol || c.EntityID == entity
		}
	}
	add(KindAllocColumn, hasAllocCol)
	add(KindPlacement, len(s.Placements(entity)) > 0)
	add(KindPartition, len(s.Partitions(entity)) > 0)
	add(KindGroup, len(s.Groups(entity)) > 0)
	_, hasProp := s.s.Properties[entity]
	add(KindProperty, hasProp)
	add(KindIndex, len(s.Indexes(entity)) > 0)
	add(KindConstraint, len(s.Constraints(entity)) > 0)
	add(KindKey, len(s.Keys(entity)) > 0)
	add(KindColumn, len(s.Columns(entity)) > 0)
	_, hasEntity := s.s.Entities[entity]
	add(KindEntity, hasEntity)
	return kinds
}

func sameName(caseSensitive bool, a, b string) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}
