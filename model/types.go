package model

import (
	"fmt"
	"strings"
)

// NamespaceID identifies a namespace.
type NamespaceID int64

// EntityID identifies a logical entity (table, collection or graph).
type EntityID int64

// ColumnID identifies a logical column.
type ColumnID int64

// KeyID identifies a logical key.
type KeyID int64

// IndexID identifies a logical index.
type IndexID int64

// ConstraintID identifies a logical constraint.
type ConstraintID int64

// AdapterID identifies a registered adapter.
type AdapterID int64

// PlacementID identifies an allocation placement.
type PlacementID int64

// GroupID identifies an allocation partition group.
type GroupID int64

// PartitionID identifies an allocation partition.
type PartitionID int64

// AllocationID identifies an allocation entity.
type AllocationID int64

// DataModel is the data model of a namespace and of the entities it holds.
type DataModel uint8

const (
	Relational DataModel = iota
	Document
	Graph
)

func (m DataModel) String() string {
	switch m {
	case Relational:
		return "RELATIONAL"
	case Document:
		return "DOCUMENT"
	case Graph:
		return "GRAPH"
	default:
		return fmt.Sprintf("DataModel(%d)", uint8(m))
	}
}

// ParseDataModel parses the String form of a DataModel.
func ParseDataModel(s string) (DataModel, error) {
	return parseEnum(s, []DataModel{Relational, Document, Graph}, "data model")
}

// EntityType distinguishes stored entities from external sources and views.
type EntityType uint8

const (
	// Entity is a regular, writable entity.
	Entity EntityType = iota
	// Source is a read-only entity exported by a data source adapter.
	Source
	// View is a non-materialized view.
	View
	// MaterializedView is a view whose result is stored on placements.
	MaterializedView
)

func (t EntityType) String() string {
	switch t {
	case Entity:
		return "ENTITY"
	case Source:
		return "SOURCE"
	case View:
		return "VIEW"
	case MaterializedView:
		return "MATERIALIZED_VIEW"
	default:
		return fmt.Sprintf("EntityType(%d)", uint8(t))
	}
}

// IsView reports whether t is a view of any kind.
func (t EntityType) IsView() bool {
	return t == View || t == MaterializedView
}

// PlacementType records why a column was placed on an adapter.
type PlacementType uint8

const (
	// Automatic placements were chosen by the router and may be reclaimed.
	Automatic PlacementType = iota
	// Manual placements were requested by the user.
	Manual
	// Static placements are structurally required, e.g. for sources.
	Static
)

func (t PlacementType) String() string {
	switch t {
	case Automatic:
		return "AUTOMATIC"
	case Manual:
		return "MANUAL"
	case Static:
		return "STATIC"
	default:
		return fmt.Sprintf("PlacementType(%d)", uint8(t))
	}
}

// ParsePlacementType parses the String form of a PlacementType.
func ParsePlacementType(s string) (PlacementType, error) {
	return parseEnum(s, []PlacementType{Automatic, Manual, Static}, "placement type")
}

// PartitionType selects a partition strategy.
type PartitionType uint8

const (
	PartitionNone PartitionType = iota
	PartitionHash
	PartitionRange
	PartitionList
	PartitionTemperature
)

func (t PartitionType) String() string {
	switch t {
	case PartitionNone:
		return "NONE"
	case PartitionHash:
		return "HASH"
	case PartitionRange:
		return "RANGE"
	case PartitionList:
		return "LIST"
	case PartitionTemperature:
		return "TEMPERATURE"
	default:
		return fmt.Sprintf("PartitionType(%d)", uint8(t))
	}
}

// ParsePartitionType parses the String form of a PartitionType.
func ParsePartitionType(s string) (PartitionType, error) {
	return parseEnum(s, []PartitionType{
		PartitionNone, PartitionHash, PartitionRange, PartitionList, PartitionTemperature,
	}, "partition type")
}

// PartitionCostIndication tells the temperature redistribution process which
// accesses count towards a partition's heat.
type PartitionCostIndication uint8

const (
	CostAll PartitionCostIndication = iota
	CostRead
	CostWrite
)

func (c PartitionCostIndication) String() string {
	switch c {
	case CostAll:
		return "ALL"
	case CostRead:
		return "READ"
	case CostWrite:
		return "WRITE"
	default:
		return fmt.Sprintf("PartitionCostIndication(%d)", uint8(c))
	}
}

// ParsePartitionCostIndication parses the String form of a PartitionCostIndication.
func ParsePartitionCostIndication(s string) (PartitionCostIndication, error) {
	return parseEnum(s, []PartitionCostIndication{CostAll, CostRead, CostWrite}, "cost indication")
}

// TimeUnit is the unit of a temperature frequency interval.
type TimeUnit uint8

const (
	Seconds TimeUnit = iota
	Minutes
	Hours
	Days
)

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "SECONDS"
	case Minutes:
		return "MINUTES"
	case Hours:
		return "HOURS"
	case Days:
		return "DAYS"
	default:
		return fmt.Sprintf("TimeUnit(%d)", uint8(u))
	}
}

// Seconds converts n units to seconds.
func (u TimeUnit) Seconds(n int64) int64 {
	switch u {
	case Minutes:
		return n * 60
	case Hours:
		return n * 3600
	case Days:
		return n * 86400
	default:
		return n
	}
}

// ParseTimeUnit parses the String form of a TimeUnit.
func ParseTimeUnit(s string) (TimeUnit, error) {
	return parseEnum(s, []TimeUnit{Seconds, Minutes, Hours, Days}, "time unit")
}

// KeyKind distinguishes primary, unique and foreign keys.
type KeyKind uint8

const (
	PrimaryKey KeyKind = iota
	UniqueKey
	ForeignKey
	// GenericKey is a plain column set referenced by non-unique indexes.
	GenericKey
)

func (k KeyKind) String() string {
	switch k {
	case PrimaryKey:
		return "PRIMARY"
	case UniqueKey:
		return "UNIQUE"
	case ForeignKey:
		return "FOREIGN"
	case GenericKey:
		return "GENERIC"
	default:
		return fmt.Sprintf("KeyKind(%d)", uint8(k))
	}
}

// ConstraintType is the type of a named logical constraint.
type ConstraintType uint8

const (
	ConstraintUnique ConstraintType = iota
	ConstraintPrimary
	ConstraintForeign
)

func (t ConstraintType) String() string {
	switch t {
	case ConstraintUnique:
		return "UNIQUE"
	case ConstraintPrimary:
		return "PRIMARY"
	case ConstraintForeign:
		return "FOREIGN"
	default:
		return fmt.Sprintf("ConstraintType(%d)", uint8(t))
	}
}

// ForeignKeyOption is the referential action of a foreign key.
type ForeignKeyOption uint8

const (
	NoAction ForeignKeyOption = iota
	Restrict
	Cascade
	SetNull
	SetDefault
)

func (o ForeignKeyOption) String() string {
	switch o {
	case NoAction:
		return "NO ACTION"
	case Restrict:
		return "RESTRICT"
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	default:
		return fmt.Sprintf("ForeignKeyOption(%d)", uint8(o))
	}
}

// Collation controls string comparison on a column.
type Collation uint8

const (
	CaseSensitive Collation = iota
	CaseInsensitive
)

func (c Collation) String() string {
	if c == CaseInsensitive {
		return "CASE_INSENSITIVE"
	}
	return "CASE_SENSITIVE"
}

func parseEnum[T fmt.Stringer](s string, values []T, what string) (T, error) {
	for _, v := range values {
		if strings.EqualFold(v.String(), s) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", what, s)
}
