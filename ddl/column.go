package ddl

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// ColumnSpec describes a new column.
type ColumnSpec struct {
	Name      string
	Type      model.PolyType
	Length    int
	Scale     int
	Nullable  bool
	Default   *catalog.DefaultValue
	Collation model.Collation
}

func validateColumns(specs []ColumnSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, c := range specs {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return invalid("column name is empty")
		}
		if seen[name] {
			return &catalog.AlreadyExistsError{Kind: catalog.KindColumn, Name: c.Name}
		}
		seen[name] = true
		if c.Length < 0 || c.Scale < 0 {
			return invalid("column %s has a negative length or scale", c.Name)
		}
		if c.Default != nil {
			if _, err := adapter.ParseValue(c.Type, c.Default.Value); err != nil {
				return invalid("default of column %s: %v", c.Name, err)
			}
		}
	}
	return nil
}

func (o *Orchestrator) addColumns(e catalog.LogicalEntity, specs []ColumnSpec) ([]catalog.LogicalColumn, error) {
	cols := make([]catalog.LogicalColumn, 0, len(specs))
	for _, s := range specs {
		c, err := o.cat.AddColumn(catalog.LogicalColumn{
			EntityID:  e.ID,
			Name:      s.Name,
			Type:      s.Type,
			Length:    s.Length,
			Scale:     s.Scale,
			Nullable:  s.Nullable,
			Default:   s.Default,
			Collation: s.Collation,
		})
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// AddColumn appends a column to a table and places it on the adapters the
// router selects. Existing rows read the default value, so a NOT NULL
// column needs one.
func (o *Orchestrator) AddColumn(ctx context.Context, ns, table string, spec ColumnSpec) (catalog.LogicalColumn, error) {
	var col catalog.LogicalColumn
	err := o.run(ctx, "ADD COLUMN", ns+"."+table+"."+spec.Name, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, ns, table, model.Relational)
		if err != nil {
			return err
		}
		if err := validateColumns([]ColumnSpec{spec}); err != nil {
			return err
		}
		if _, err := v.ColumnByName(e.ID, spec.Name); err == nil {
			return &catalog.AlreadyExistsError{Kind: catalog.KindColumn, Name: spec.Name}
		}
		if !spec.Nullable && spec.Default == nil {
			return fmt.Errorf("%w: %s", ErrNotNullWithoutDefault, spec.Name)
		}
		adapters, err := o.router.DataStoresForNewRelField(v, catalog.LogicalColumn{EntityID: e.ID, Name: spec.Name})
		if err != nil {
			return err
		}

		cols, err := o.addColumns(e, []ColumnSpec{spec})
		if err != nil {
			return err
		}
		col = cols[0]
		for _, a := range adapters {
			if err := o.alloc.AddColumnPlacement(ctx, e.ID, col.ID, a, model.Automatic); err != nil {
				return err
			}
		}
		return nil
	})
	return col, err
}

// DropColumn removes a column from every placement and from the table.
// Key columns, the partition column and columns read by views cannot be
// dropped.
func (o *Orchestrator) DropColumn(ctx context.Context, ns, table, column string) error {
	return o.run(ctx, "DROP COLUMN", ns+"."+table+"."+column, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, ns, table, model.Relational)
		if err != nil {
			return err
		}
		c, err := v.ColumnByName(e.ID, column)
		if err != nil {
			return err
		}
		if len(v.Columns(e.ID)) == 1 {
			return invalid("%s is the last column of %s", c.Name, e.Name)
		}
		for _, k := range v.Keys(e.ID) {
			if k.HasColumn(c.ID) {
				return &catalog.ReferencedError{Kind: catalog.KindColumn, ID: int64(c.ID), By: catalog.KindKey}
			}
		}
		if prop, err := v.Property(e.ID); err == nil && prop.IsPartitioned() && prop.ColumnID == c.ID {
			return invalid("%s is the partition column of %s", c.Name, e.Name)
		}
		if deps := v.DependentViews(e.ID); len(deps) > 0 {
			return fmt.Errorf("%w: %s is read by %s", ErrDependentView, e.Name, deps[0].Name)
		}

		if err := o.alloc.RemoveColumn(ctx, c.ID); err != nil {
			return err
		}
		return o.cat.DeleteColumn(c.ID)
	})
}
