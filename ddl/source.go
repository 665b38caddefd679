package ddl

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// AddSource registers every table a data source exports as a read-only
// SOURCE entity in namespace ns. Each table gets one placement on the
// source with STATIC columns and an allocation bound to the external table
// name. Nothing is created on the source. A table whose name is taken is
// registered under the name with the smallest free numeric suffix.
func (o *Orchestrator) AddSource(ctx context.Context, ns string, id model.AdapterID) ([]catalog.LogicalEntity, error) {
	var added []catalog.LogicalEntity
	err := o.run(ctx, "ADD SOURCE", fmt.Sprintf("%s@%d", ns, id), func() error {
		v := o.cat.Working()
		n, err := namespace(v, ns, model.Relational)
		if err != nil {
			return err
		}
		src, err := o.adapters.DataSource(id)
		if err != nil {
			return err
		}
		tables, err := src.ExportedColumns(ctx)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			return invalid("adapter %s exports no tables", src.Name())
		}

		names := slices.Sorted(maps.Keys(tables))
		for _, name := range names {
			if err := checkSourceTable(name, tables[name]); err != nil {
				return err
			}
		}
		for _, name := range names {
			e, err := o.addSourceTable(n, id, freeName(o.cat.Working(), n, name), name, tables[name])
			if err != nil {
				return err
			}
			added = append(added, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func checkSourceTable(name string, cols []adapter.ExportedColumn) error {
	if strings.TrimSpace(name) == "" {
		return invalid("source table name is empty")
	}
	if len(cols) == 0 {
		return invalid("source table %s has no columns", name)
	}
	if !slices.ContainsFunc(cols, func(c adapter.ExportedColumn) bool { return c.PrimaryKey }) {
		return invalid("source table %s exports no primary key", name)
	}
	specs := make([]ColumnSpec, len(cols))
	for i, c := range cols {
		specs[i] = ColumnSpec{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
	}
	return validateColumns(specs)
}

func freeName(v *catalog.Snapshot, ns catalog.Namespace, name string) string {
	if _, err := v.EntityByName(ns.ID, name); err != nil {
		return name
	}
	for i := 0; ; i++ {
		candidate := name + strconv.Itoa(i)
		if _, err := v.EntityByName(ns.ID, candidate); err != nil {
			return candidate
		}
	}
}

func (o *Orchestrator) addSourceTable(ns catalog.Namespace, id model.AdapterID, name, external string, exported []adapter.ExportedColumn) (catalog.LogicalEntity, error) {
	cols := slices.SortedStableFunc(slices.Values(exported), func(a, b adapter.ExportedColumn) int {
		return cmp.Compare(a.Position, b.Position)
	})
	e, err := o.cat.AddEntity(catalog.LogicalEntity{
		NamespaceID: ns.ID,
		Name:        name,
		Model:       model.Relational,
		Type:        model.Source,
	})
	if err != nil {
		return catalog.LogicalEntity{}, err
	}

	specs := make([]ColumnSpec, len(cols))
	var pk []string
	for i, c := range cols {
		specs[i] = ColumnSpec{Name: c.Name, Type: c.Type, Nullable: c.Nullable && !c.PrimaryKey}
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	logical, err := o.addColumns(e, specs)
	if err != nil {
		return catalog.LogicalEntity{}, err
	}
	if err := o.addPrimaryKey(e, pk); err != nil {
		return catalog.LogicalEntity{}, err
	}
	if err := o.addDefaultPartition(e.ID); err != nil {
		return catalog.LogicalEntity{}, err
	}

	p, err := o.cat.AddPlacement(e.ID, id)
	if err != nil {
		return catalog.LogicalEntity{}, err
	}
	for i, c := range logical {
		if _, err := o.cat.AddAllocColumn(p.ID, c.ID, model.Static, cols[i].Position); err != nil {
			return catalog.LogicalEntity{}, err
		}
	}
	prop, err := o.cat.Working().Property(e.ID)
	if err != nil {
		return catalog.LogicalEntity{}, err
	}
	for _, part := range prop.PartitionIDs {
		if _, err := o.cat.AddExternalAllocation(p.ID, part, external); err != nil {
			return catalog.LogicalEntity{}, err
		}
	}
	return e, nil
}
