package adapter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Column is a physical column of an allocation table.
type Column struct {
	ID        model.ColumnID
	Type      model.PolyType
	Length    int
	Scale     int
	Nullable  bool
	Position  int
	Collation model.Collation
	Default   *catalog.DefaultValue
	// External is the column name inside a data source table.
	External string
}

// Name is the physical column name.
func (c Column) Name() string {
	if c.External != "" {
		return c.External
	}
	return ColumnName(c.ID)
}

// Table is the physical description of a relational allocation.
type Table struct {
	Alloc      catalog.AllocationEntity
	Columns    []Column
	PrimaryKey []model.ColumnID
}

// Name is the physical table name.
func (t Table) Name() string { return t.Alloc.PhysicalName() }

// Column returns the column with the given id.
func (t Table) Column(id model.ColumnID) (Column, bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnIDs returns the column ids in physical order.
func (t Table) ColumnIDs() []model.ColumnID {
	ids := make([]model.ColumnID, len(t.Columns))
	for i, c := range t.Columns {
		ids[i] = c.ID
	}
	return ids
}

// Key returns the primary key value of row as a comparable string, or false
// when the table has no primary key.
func (t Table) Key(row Row) (string, bool) {
	if len(t.PrimaryKey) == 0 {
		return "", false
	}
	return RowKey(row, t.PrimaryKey), true
}

// Index is a physical index on one allocation.
type Index struct {
	ID      model.IndexID
	Columns []model.ColumnID
	Unique  bool
	Method  string
	Alloc   model.AllocationID
}

// Name is the physical index name.
func (i Index) Name() string {
	return fmt.Sprintf("idx_%d_%d", i.ID, i.Alloc)
}

// ColumnName is the physical name of a logical column.
func ColumnName(id model.ColumnID) string {
	return fmt.Sprintf("col_%d", id)
}

// RowKey renders the values of columns in row as a single comparable key.
func RowKey(row Row, columns []model.ColumnID) string {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = row[c]
	}
	return ValuesKey(values...)
}

// ValuesKey renders values as RowKey does.
func ValuesKey(values ...any) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(0)
		}
		fmt.Fprint(&sb, v)
	}
	return sb.String()
}

// TableFor describes the physical table of a relational allocation as seen
// in snap.
func TableFor(snap *catalog.Snapshot, alloc catalog.AllocationEntity) (Table, error) {
	t := Table{Alloc: alloc}
	for _, ac := range snap.AllocColumns(alloc.PlacementID) {
		col, err := snap.Column(ac.ColumnID)
		if err != nil {
			return Table{}, err
		}
		c := ColumnFor(col, ac.Position)
		if alloc.External != "" {
			c.External = col.Name
		}
		t.Columns = append(t.Columns, c)
	}
	if pk, err := snap.PrimaryKey(alloc.EntityID); err == nil {
		if all(pk.ColumnIDs, func(id model.ColumnID) bool { _, ok := t.Column(id); return ok }) {
			t.PrimaryKey = slices.Clone(pk.ColumnIDs)
		}
	}
	return t, nil
}

// IndexFor describes the physical index of a logical index on alloc.
func IndexFor(snap *catalog.Snapshot, idx catalog.LogicalIndex, alloc catalog.AllocationEntity) (Index, error) {
	key, err := snap.Key(idx.KeyID)
	if err != nil {
		return Index{}, err
	}
	return Index{
		ID:      idx.ID,
		Columns: slices.Clone(key.ColumnIDs),
		Unique:  idx.Unique,
		Method:  idx.Method,
		Alloc:   alloc.ID,
	}, nil
}

// ColumnFor describes the physical column of a logical column.
func ColumnFor(col catalog.LogicalColumn, position int) Column {
	return Column{
		ID:        col.ID,
		Type:      col.Type,
		Length:    col.Length,
		Scale:     col.Scale,
		Nullable:  col.Nullable,
		Position:  position,
		Collation: col.Collation,
		Default:   col.Default,
	}
}

func all[T any](s []T, pred func(T) bool) bool {
	for _, v := range s {
		if !pred(v) {
			return false
		}
	}
	return true
}
