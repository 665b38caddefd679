package catalog

import (
	"fmt"

	"github.com/hupe1980/polyalloc/model"
)

// Namespace is a named container of logical entities.
type Namespace struct {
	ID            model.NamespaceID `json:"id"`
	Name          string            `json:"name"`
	Model         model.DataModel   `json:"model"`
	CaseSensitive bool              `json:"case_sensitive"`
}

// LogicalEntity is a table, collection or graph, or a view over them.
type LogicalEntity struct {
	ID          model.EntityID    `json:"id"`
	NamespaceID model.NamespaceID `json:"namespace_id"`
	Name        string            `json:"name"`
	Model       model.DataModel   `json:"model"`
	Type        model.EntityType  `json:"type"`
	Modifiable  bool              `json:"modifiable"`
	// Underlying lists the entities a view reads from.
	Underlying []model.EntityID `json:"underlying,omitempty"`
	// Query is the view definition.
	Query string `json:"query,omitempty"`
}

// DefaultValue is the default of a column.
type DefaultValue struct {
	Type  model.PolyType `json:"type"`
	Value string         `json:"value"`
}

// LogicalColumn is a column of a relational entity.
type LogicalColumn struct {
	ID          model.ColumnID    `json:"id"`
	EntityID    model.EntityID    `json:"entity_id"`
	NamespaceID model.NamespaceID `json:"namespace_id"`
	Name        string            `json:"name"`
	Position    int               `json:"position"`
	Type        model.PolyType    `json:"type"`
	Length      int               `json:"length,omitempty"`
	Scale       int               `json:"scale,omitempty"`
	Nullable    bool              `json:"nullable"`
	Default     *DefaultValue     `json:"default,omitempty"`
	Collation   model.Collation   `json:"collation"`
}

// LogicalKey is a primary, unique or foreign key over columns of one entity.
type LogicalKey struct {
	ID          model.KeyID       `json:"id"`
	EntityID    model.EntityID    `json:"entity_id"`
	NamespaceID model.NamespaceID `json:"namespace_id"`
	Kind        model.KeyKind     `json:"kind"`
	ColumnIDs   []model.ColumnID  `json:"column_ids"`
	// ReferencedKeyID is set for foreign keys.
	ReferencedKeyID model.KeyID            `json:"referenced_key_id,omitempty"`
	OnUpdate        model.ForeignKeyOption `json:"on_update,omitempty"`
	OnDelete        model.ForeignKeyOption `json:"on_delete,omitempty"`
}

// HasColumn reports whether the key covers column.
func (k LogicalKey) HasColumn(column model.ColumnID) bool {
	for _, c := range k.ColumnIDs {
		if c == column {
			return true
		}
	}
	return false
}

// LogicalIndex is a secondary index. A zero Location means the index is a
// polystore index maintained outside of any adapter.
type LogicalIndex struct {
	ID           model.IndexID     `json:"id"`
	EntityID     model.EntityID    `json:"entity_id"`
	NamespaceID  model.NamespaceID `json:"namespace_id"`
	KeyID        model.KeyID       `json:"key_id"`
	Name         string            `json:"name"`
	Unique       bool              `json:"unique"`
	Method       string            `json:"method"`
	Location     model.AdapterID   `json:"location"`
	PhysicalName string            `json:"physical_name,omitempty"`
}

// IsPolystore reports whether the index is not bound to an adapter.
func (i LogicalIndex) IsPolystore() bool { return i.Location == 0 }

// LogicalConstraint is a named constraint backed by a key.
type LogicalConstraint struct {
	ID       model.ConstraintID   `json:"id"`
	EntityID model.EntityID       `json:"entity_id"`
	KeyID    model.KeyID          `json:"key_id"`
	Name     string               `json:"name"`
	Type     model.ConstraintType `json:"type"`
}

// AllocationPlacement records that an entity has a footprint on an adapter.
type AllocationPlacement struct {
	ID          model.PlacementID `json:"id"`
	EntityID    model.EntityID    `json:"entity_id"`
	NamespaceID model.NamespaceID `json:"namespace_id"`
	AdapterID   model.AdapterID   `json:"adapter_id"`
}

// AllocationColumn binds a logical column to a placement.
type AllocationColumn struct {
	PlacementID model.PlacementID   `json:"placement_id"`
	ColumnID    model.ColumnID      `json:"column_id"`
	EntityID    model.EntityID      `json:"entity_id"`
	NamespaceID model.NamespaceID   `json:"namespace_id"`
	AdapterID   model.AdapterID     `json:"adapter_id"`
	Type        model.PlacementType `json:"type"`
	Position    int                 `json:"position"`
}

// AllocationPartitionGroup is a named bucket produced by a partition strategy.
type AllocationPartitionGroup struct {
	ID          model.GroupID     `json:"id"`
	EntityID    model.EntityID    `json:"entity_id"`
	NamespaceID model.NamespaceID `json:"namespace_id"`
	Name        string            `json:"name"`
	Unbound     bool              `json:"unbound"`
}

// AllocationPartition is the unit instantiated on every placement.
type AllocationPartition struct {
	ID          model.PartitionID `json:"id"`
	GroupID     model.GroupID     `json:"group_id"`
	EntityID    model.EntityID    `json:"entity_id"`
	NamespaceID model.NamespaceID `json:"namespace_id"`
	Name        string            `json:"name"`
	// Qualifiers are range bounds or list values.
	Qualifiers []string `json:"qualifiers,omitempty"`
	Unbound    bool     `json:"unbound"`
}

// TemperatureProperty holds the hot/cold configuration of a temperature
// partitioned entity. Promotion and demotion happen outside the catalog.
type TemperatureProperty struct {
	Internal    model.PartitionType `json:"internal"`
	HotGroupID  model.GroupID       `json:"hot_group_id"`
	ColdGroupID model.GroupID       `json:"cold_group_id"`
	// FrequencyInterval is the access-counting window in seconds.
	FrequencyInterval      int64                         `json:"frequency_interval"`
	HotAccessPercentageIn  int                           `json:"hot_access_percentage_in"`
	HotAccessPercentageOut int                           `json:"hot_access_percentage_out"`
	Cost                   model.PartitionCostIndication `json:"cost"`
}

// PartitionProperty is the authoritative partitioning descriptor of an entity.
type PartitionProperty struct {
	EntityID     model.EntityID      `json:"entity_id"`
	Type         model.PartitionType `json:"type"`
	ColumnID     model.ColumnID      `json:"column_id,omitempty"`
	GroupIDs     []model.GroupID     `json:"group_ids"`
	PartitionIDs []model.PartitionID `json:"partition_ids"`
	Unbound      bool                `json:"unbound"`
	// ReliesOnPeriodicChecks is set when an external process moves data
	// between partitions.
	ReliesOnPeriodicChecks bool                 `json:"relies_on_periodic_checks"`
	Temperature            *TemperatureProperty `json:"temperature,omitempty"`
}

// IsPartitioned reports whether the entity is split into more than one partition.
func (p PartitionProperty) IsPartitioned() bool {
	return p.Type != model.PartitionNone
}

// HasPartition reports whether id is one of the entity's current partitions.
func (p PartitionProperty) HasPartition(id model.PartitionID) bool {
	for _, pid := range p.PartitionIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// AllocationEntity is the physical realization of one (placement, partition)
// pair.
type AllocationEntity struct {
	ID          model.AllocationID `json:"id"`
	PlacementID model.PlacementID  `json:"placement_id"`
	PartitionID model.PartitionID  `json:"partition_id"`
	EntityID    model.EntityID     `json:"entity_id"`
	NamespaceID model.NamespaceID  `json:"namespace_id"`
	AdapterID   model.AdapterID    `json:"adapter_id"`
	Model       model.DataModel    `json:"model"`
	// External names a table owned by a data source. Such allocations are
	// read in place and never created or dropped.
	External string `json:"external,omitempty"`
}

// PhysicalName is the name adapters use for the stored table, collection or
// graph segment.
func (a AllocationEntity) PhysicalName() string {
	if a.External != "" {
		return a.External
	}
	return fmt.Sprintf("alloc_%d", a.ID)
}

// Variant returns the data-model specific view of the allocation.
func (a AllocationEntity) Variant() Variant {
	switch a.Model {
	case model.Document:
		return DocumentAllocation{a}
	case model.Graph:
		return GraphAllocation{a}
	default:
		return RelationalAllocation{a}
	}
}

// Variant is the closed set of allocation kinds.
type Variant interface {
	Allocation() AllocationEntity
	variant()
}

// RelationalAllocation is a physical table.
type RelationalAllocation struct{ AllocationEntity }

// DocumentAllocation is a physical collection.
type DocumentAllocation struct{ AllocationEntity }

// GraphAllocation is a physical graph segment.
type GraphAllocation struct{ AllocationEntity }

func (a RelationalAllocation) Allocation() AllocationEntity { return a.AllocationEntity }
func (a DocumentAllocation) Allocation() AllocationEntity   { return a.AllocationEntity }
func (a GraphAllocation) Allocation() AllocationEntity      { return a.AllocationEntity }

func (RelationalAllocation) variant() {}
func (DocumentAllocation) variant()   {}
func (GraphAllocation) variant()      {}
