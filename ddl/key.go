package ddl

import (
	"context"
	"slices"
	"strings"

	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// ForeignKeySpec describes a foreign key from Columns of Table to
// RefColumns of RefTable. An empty RefNamespace means Namespace.
type ForeignKeySpec struct {
	Namespace    string
	Table        string
	Name         string
	Columns      []string
	RefNamespace string
	RefTable     string
	RefColumns   []string
	OnUpdate     model.ForeignKeyOption
	OnDelete     model.ForeignKeyOption
}

// IndexSpec describes a new index. A zero Location creates a polystore
// index maintained outside of the adapters.
type IndexSpec struct {
	Namespace string
	Table     string
	Name      string
	Columns   []string
	Unique    bool
	Method    string
	Location  model.AdapterID
}

// AddPrimaryKey adds the primary key of a table. Every placement must
// already hold the key columns.
func (o *Orchestrator) AddPrimaryKey(ctx context.Context, ns, table string, columns []string) error {
	return o.run(ctx, "ADD PRIMARY KEY", ns+"."+table, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, ns, table, model.Relational)
		if err != nil {
			return err
		}
		if _, err := v.PrimaryKey(e.ID); err == nil {
			return &catalog.AlreadyExistsError{Kind: catalog.KindKey, Name: "primary key of " + e.Name}
		}
		ids, err := keyColumns(v, e, columns)
		if err != nil {
			return err
		}
		for _, p := range v.Placements(e.ID) {
			for _, id := range ids {
				if _, err := v.AllocColumn(p.ID, id); err != nil {
					return &allocation.PlacementError{Entity: e.ID, Adapter: p.AdapterID, Column: id, Err: ErrKeyNotPlaced}
				}
			}
		}
		return o.addPrimaryKey(e, columns)
	})
}

func (o *Orchestrator) addPrimaryKey(e catalog.LogicalEntity, columns []string) error {
	ids, err := columnIDs(o.cat.Working(), e.ID, columns)
	if err != nil {
		return err
	}
	k, err := o.cat.AddKey(catalog.LogicalKey{EntityID: e.ID, Kind: model.PrimaryKey, ColumnIDs: ids})
	if err != nil {
		return err
	}
	_, err = o.cat.AddConstraint(catalog.LogicalConstraint{
		EntityID: e.ID,
		KeyID:    k.ID,
		Name:     "pk_" + e.Name,
		Type:     model.ConstraintPrimary,
	})
	return err
}

// AddUniqueConstraint adds a named unique constraint over columns.
func (o *Orchestrator) AddUniqueConstraint(ctx context.Context, ns, table, name string, columns []string) error {
	return o.run(ctx, "ADD UNIQUE", ns+"."+table+"."+name, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, ns, table, model.Relational)
		if err != nil {
			return err
		}
		if err := checkConstraintName(v, e, name); err != nil {
			return err
		}
		ids, err := keyColumns(v, e, columns)
		if err != nil {
			return err
		}

		k, err := o.keyFor(v, e, ids, model.UniqueKey)
		if err != nil {
			return err
		}
		_, err = o.cat.AddConstraint(catalog.LogicalConstraint{
			EntityID: e.ID,
			KeyID:    k.ID,
			Name:     name,
			Type:     model.ConstraintUnique,
		})
		return err
	})
}

// AddForeignKey adds a foreign key. The referenced columns must form the
// primary key or a unique key of the referenced table.
func (o *Orchestrator) AddForeignKey(ctx context.Context, spec ForeignKeySpec) error {
	return o.run(ctx, "ADD FOREIGN KEY", spec.Namespace+"."+spec.Table+"."+spec.Name, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, spec.Namespace, spec.Table, model.Relational)
		if err != nil {
			return err
		}
		if err := checkConstraintName(v, e, spec.Name); err != nil {
			return err
		}
		refNS := spec.RefNamespace
		if refNS == "" {
			refNS = spec.Namespace
		}
		ref, err := modifiable(v, refNS, spec.RefTable, model.Relational)
		if err != nil {
			return err
		}
		ids, err := keyColumns(v, e, spec.Columns)
		if err != nil {
			return err
		}
		refIDs, err := keyColumns(v, ref, spec.RefColumns)
		if err != nil {
			return err
		}
		if len(ids) != len(refIDs) {
			return invalid("foreign key %s has %d columns, referenced columns are %d", spec.Name, len(ids), len(refIDs))
		}
		for i := range ids {
			c, _ := v.Column(ids[i])
			rc, _ := v.Column(refIDs[i])
			if c.Type != rc.Type {
				return invalid("column %s is %s, referenced column %s is %s", c.Name, c.Type, rc.Name, rc.Type)
			}
		}
		target, ok := findKey(v, ref.ID, refIDs, func(k catalog.LogicalKey) bool {
			return k.Kind == model.PrimaryKey || k.Kind == model.UniqueKey
		})
		if !ok {
			return invalid("columns %s of %s are not a primary or unique key", strings.Join(spec.RefColumns, ", "), ref.Name)
		}

		k, err := o.cat.AddKey(catalog.LogicalKey{
			EntityID:        e.ID,
			Kind:            model.ForeignKey,
			ColumnIDs:       ids,
			ReferencedKeyID: target.ID,
			OnUpdate:        spec.OnUpdate,
			OnDelete:        spec.OnDelete,
		})
		if err != nil {
			return err
		}
		_, err = o.cat.AddConstraint(catalog.LogicalConstraint{
			EntityID: e.ID,
			KeyID:    k.ID,
			Name:     spec.Name,
			Type:     model.ConstraintForeign,
		})
		return err
	})
}

// AddIndex adds an index. Adapter indexes are created on every allocation
// of the placement on Location; polystore indexes are built from the
// placements covering the columns.
func (o *Orchestrator) AddIndex(ctx context.Context, spec IndexSpec) (catalog.LogicalIndex, error) {
	var li catalog.LogicalIndex
	err := o.run(ctx, "ADD INDEX", spec.Namespace+"."+spec.Table+"."+spec.Name, func() error {
		v := o.cat.Working()
		e, err := modifiable(v, spec.Namespace, spec.Table, model.Relational)
		if err != nil {
			return err
		}
		if strings.TrimSpace(spec.Name) == "" {
			return invalid("index name is empty")
		}
		if _, err := v.IndexByName(e.ID, spec.Name); err == nil {
			return &catalog.AlreadyExistsError{Kind: catalog.KindIndex, Name: spec.Name}
		}
		ids, err := keyColumns(v, e, spec.Columns)
		if err != nil {
			return err
		}
		if spec.Location != 0 {
			p, err := v.PlacementFor(e.ID, spec.Location)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if _, err := v.AllocColumn(p.ID, id); err != nil {
					return &allocation.PlacementError{Entity: e.ID, Adapter: spec.Location, Column: id, Err: allocation.ErrNotPlaceable}
				}
			}
		}

		kind := model.GenericKey
		if spec.Unique {
			kind = model.UniqueKey
		}
		k, err := o.keyFor(v, e, ids, kind)
		if err != nil {
			return err
		}
		li, err = o.cat.AddIndex(catalog.LogicalIndex{
			EntityID: e.ID,
			KeyID:    k.ID,
			Name:     spec.Name,
			Unique:   spec.Unique,
			Method:   spec.Method,
			Location: spec.Location,
		})
		if err != nil {
			return err
		}
		if li.IsPolystore() {
			return o.indexes.Build(ctx, o.cat.Working(), li)
		}
		return o.alloc.CreateIndex(ctx, o.cat.Working(), li)
	})
	return li, err
}

// DropIndex drops an index. A generic key only the index used is dropped
// with it.
func (o *Orchestrator) DropIndex(ctx context.Context, ns, table, name string) error {
	return o.run(ctx, "DROP INDEX", ns+"."+table+"."+name, func() error {
		v := o.cat.Working()
		e, err := entity(v, ns, table)
		if err != nil {
			return err
		}
		li, err := v.IndexByName(e.ID, name)
		if err != nil {
			return err
		}

		if li.IsPolystore() {
			o.indexes.Drop(li.ID)
		} else if err := o.alloc.DropIndex(ctx, v, li); err != nil {
			return err
		}
		if err := o.cat.DeleteIndex(li.ID); err != nil {
			return err
		}
		return o.dropUnusedKey(li.KeyID)
	})
}

func (o *Orchestrator) dropUnusedKey(id model.KeyID) error {
	v := o.cat.Working()
	k, err := v.Key(id)
	if err != nil || k.Kind != model.GenericKey {
		return nil
	}
	for _, li := range v.Indexes(k.EntityID) {
		if li.KeyID == id {
			return nil
		}
	}
	for _, cn := range v.Constraints(k.EntityID) {
		if cn.KeyID == id {
			return nil
		}
	}
	return o.cat.DeleteKey(id)
}

// keyFor returns the key of entity over exactly ids, adding one of kind
// when none exists.
func (o *Orchestrator) keyFor(v *catalog.Snapshot, e catalog.LogicalEntity, ids []model.ColumnID, kind model.KeyKind) (catalog.LogicalKey, error) {
	if k, ok := findKey(v, e.ID, ids, func(k catalog.LogicalKey) bool {
		return k.Kind == kind || k.Kind == model.PrimaryKey
	}); ok {
		return k, nil
	}
	return o.cat.AddKey(catalog.LogicalKey{EntityID: e.ID, Kind: kind, ColumnIDs: ids})
}

func findKey(v *catalog.Snapshot, entity model.EntityID, ids []model.ColumnID, match func(catalog.LogicalKey) bool) (catalog.LogicalKey, bool) {
	for _, k := range v.Keys(entity) {
		if match(k) && slices.Equal(k.ColumnIDs, ids) {
			return k, true
		}
	}
	return catalog.LogicalKey{}, false
}

// keyColumns resolves a non-empty list of distinct column names.
func keyColumns(v *catalog.Snapshot, e catalog.LogicalEntity, names []string) ([]model.ColumnID, error) {
	if len(names) == 0 {
		return nil, invalid("no columns given for %s", e.Name)
	}
	ids, err := columnIDs(v, e.ID, names)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if slices.Contains(ids[:i], id) {
			return nil, invalid("column %s listed twice", names[i])
		}
	}
	return ids, nil
}

func checkConstraintName(v *catalog.Snapshot, e catalog.LogicalEntity, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("constraint name is empty")
	}
	for _, cn := range v.Constraints(e.ID) {
		if strings.EqualFold(cn.Name, name) {
			return &catalog.AlreadyExistsError{Kind: catalog.KindConstraint, Name: name}
		}
	}
	return nil
}
