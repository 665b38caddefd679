package ddl

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/partition"
)

// TableSpec describes a new table. Without Adapters the router picks the
// placements.
type TableSpec struct {
	Namespace  string
	Name       string
	Columns    []ColumnSpec
	PrimaryKey []string
	Adapters   []model.AdapterID
}

// CreateTable creates a table with a single unpartitioned partition and
// places it on the requested adapters. A table created without a primary
// key must get one before the transaction commits.
func (o *Orchestrator) CreateTable(ctx context.Context, spec TableSpec) (catalog.LogicalEntity, error) {
	var e catalog.LogicalEntity
	err := o.run(ctx, "CREATE TABLE", spec.Namespace+"."+spec.Name, func() error {
		v := o.cat.Working()
		ns, err := namespace(v, spec.Namespace, model.Relational)
		if err != nil {
			return err
		}
		if err := checkNewEntity(v, ns, spec.Name); err != nil {
			return err
		}
		if len(spec.Columns) == 0 {
			return invalid("table %s has no columns", spec.Name)
		}
		if err := validateColumns(spec.Columns); err != nil {
			return err
		}
		for _, name := range spec.PrimaryKey {
			if !slices.ContainsFunc(spec.Columns, func(c ColumnSpec) bool { return strings.EqualFold(c.Name, name) }) {
				return &catalog.NotFoundError{Kind: catalog.KindColumn, Name: name}
			}
		}
		adapters, typ, err := o.targets(model.Relational, spec.Adapters)
		if err != nil {
			return err
		}

		e, err = o.cat.AddEntity(catalog.LogicalEntity{
			NamespaceID: ns.ID,
			Name:        spec.Name,
			Model:       model.Relational,
			Type:        model.Entity,
			Modifiable:  true,
		})
		if err != nil {
			return err
		}
		if _, err := o.addColumns(e, spec.Columns); err != nil {
			return err
		}
		if len(spec.PrimaryKey) > 0 {
			if err := o.addPrimaryKey(e, spec.PrimaryKey); err != nil {
				return err
			}
		} else {
			o.deferPrimaryKey(e)
		}
		if err := o.addDefaultPartition(e.ID); err != nil {
			return err
		}
		return o.place(ctx, e, adapters, typ)
	})
	return e, err
}

// CreateCollection creates a document collection.
func (o *Orchestrator) CreateCollection(ctx context.Context, ns, name string, adapters ...model.AdapterID) (catalog.LogicalEntity, error) {
	return o.createUnstructured(ctx, "CREATE COLLECTION", model.Document, ns, name, adapters)
}

// CreateGraph creates a graph.
func (o *Orchestrator) CreateGraph(ctx context.Context, ns, name string, adapters ...model.AdapterID) (catalog.LogicalEntity, error) {
	return o.createUnstructured(ctx, "CREATE GRAPH", model.Graph, ns, name, adapters)
}

func (o *Orchestrator) createUnstructured(ctx context.Context, verb string, m model.DataModel, ns, name string, requested []model.AdapterID) (catalog.LogicalEntity, error) {
	var e catalog.LogicalEntity
	err := o.run(ctx, verb, ns+"."+name, func() error {
		v := o.cat.Working()
		n, err := namespace(v, ns, m)
		if err != nil {
			return err
		}
		if err := checkNewEntity(v, n, name); err != nil {
			return err
		}
		adapters, typ, err := o.targets(m, requested)
		if err != nil {
			return err
		}

		e, err = o.cat.AddEntity(catalog.LogicalEntity{
			NamespaceID: n.ID,
			Name:        name,
			Model:       m,
			Type:        model.Entity,
			Modifiable:  true,
		})
		if err != nil {
			return err
		}
		if err := o.addDefaultPartition(e.ID); err != nil {
			return err
		}
		return o.place(ctx, e, adapters, typ)
	})
	return e, err
}

// DropTable drops a table and everything that belongs to it.
func (o *Orchestrator) DropTable(ctx context.Context, ns, name string) error {
	return o.dropEntity(ctx, "DROP TABLE", ns, name, model.Relational, model.Entity, model.Source)
}

// DropCollection drops a document collection.
func (o *Orchestrator) DropCollection(ctx context.Context, ns, name string) error {
	return o.dropEntity(ctx, "DROP COLLECTION", ns, name, model.Document, model.Entity, model.Source)
}

// DropGraph drops a graph.
func (o *Orchestrator) DropGraph(ctx context.Context, ns, name string) error {
	return o.dropEntity(ctx, "DROP GRAPH", ns, name, model.Graph, model.Entity, model.Source)
}

func (o *Orchestrator) dropEntity(ctx context.Context, verb, ns, name string, m model.DataModel, types ...model.EntityType) error {
	return o.run(ctx, verb, ns+"."+name, func() error {
		v := o.cat.Working()
		e, err := entity(v, ns, name)
		if err != nil {
			return err
		}
		if e.Model != m {
			return fmt.Errorf("%w: %s is a %s entity", ErrModelMismatch, e.Name, e.Model)
		}
		if !slices.Contains(types, e.Type) {
			return invalid("%s is a %s", e.Name, e.Type)
		}
		if deps := v.DependentViews(e.ID); len(deps) > 0 {
			return fmt.Errorf("%w: %s is read by %s", ErrDependentView, e.Name, deps[0].Name)
		}
		if err := checkForeignKeys(v, e, nil); err != nil {
			return err
		}
		return o.cascade(ctx, e)
	})
}

// RenameTable renames an entity inside its namespace.
func (o *Orchestrator) RenameTable(ctx context.Context, ns, name, newName string) error {
	return o.run(ctx, "RENAME TABLE", ns+"."+name, func() error {
		v := o.cat.Working()
		e, err := entity(v, ns, name)
		if err != nil {
			return err
		}
		if strings.TrimSpace(newName) == "" {
			return invalid("new name of %s is empty", e.Name)
		}
		e.Name = newName
		return o.cat.UpdateEntity(e)
	})
}

// Truncate removes every row, document or graph element of an entity on
// all of its allocations.
func (o *Orchestrator) Truncate(ctx context.Context, ns, name string) error {
	return o.run(ctx, "TRUNCATE", ns+"."+name, func() error {
		v := o.cat.Working()
		e, err := entity(v, ns, name)
		if err != nil {
			return err
		}
		if !e.Modifiable {
			return fmt.Errorf("%w: %s is a %s", ErrNotModifiable, e.Name, e.Type)
		}
		for _, a := range v.Allocations(e.ID) {
			if err := o.alloc.TruncatePhysical(ctx, v, a); err != nil {
				return err
			}
		}
		return o.indexes.Reindex(ctx, v, e.ID)
	})
}

// cascade deletes an entity and every record that refers to it, in the
// order allocations, allocation columns, placements, partitions, groups,
// partition property, indexes, constraints, keys, columns, entity.
func (o *Orchestrator) cascade(ctx context.Context, e catalog.LogicalEntity) error {
	v := o.cat.Working()
	placements := v.Placements(e.ID)

	for _, a := range v.Allocations(e.ID) {
		if err := o.alloc.DropPhysical(ctx, v, a); err != nil {
			return err
		}
		if err := o.cat.DeleteAllocation(a.ID); err != nil {
			return err
		}
	}
	for _, p := range placements {
		for _, ac := range v.AllocColumns(p.ID) {
			if err := o.cat.DeleteAllocColumn(p.ID, ac.ColumnID); err != nil {
				return err
			}
		}
	}
	for _, p := range placements {
		if err := o.cat.DeletePlacement(p.ID); err != nil {
			return err
		}
	}
	for _, part := range v.Partitions(e.ID) {
		if err := o.cat.DeletePartition(part.ID); err != nil {
			return err
		}
	}
	for _, g := range v.Groups(e.ID) {
		if err := o.cat.DeleteGroup(g.ID); err != nil {
			return err
		}
	}
	if _, err := v.Property(e.ID); err == nil {
		if err := o.cat.DeleteProperty(e.ID); err != nil {
			return err
		}
	}
	for _, li := range v.Indexes(e.ID) {
		if li.IsPolystore() {
			o.indexes.Drop(li.ID)
		}
		if err := o.cat.DeleteIndex(li.ID); err != nil {
			return err
		}
	}
	for _, cn := range v.Constraints(e.ID) {
		if err := o.cat.DeleteConstraint(cn.ID); err != nil {
			return err
		}
	}
	// Own foreign keys may reference the entity's primary key.
	keys := v.Keys(e.ID)
	slices.SortStableFunc(keys, func(a, b catalog.LogicalKey) int {
		return cmp.Compare(keyRank(a), keyRank(b))
	})
	for _, k := range keys {
		if err := o.cat.DeleteKey(k.ID); err != nil {
			return err
		}
	}
	for _, c := range v.Columns(e.ID) {
		if err := o.cat.DeleteColumn(c.ID); err != nil {
			return err
		}
	}
	if err := o.cat.DeleteEntity(e.ID); err != nil {
		return err
	}
	o.logger.DebugContext(ctx, "entity dropped",
		"entity", e.Name, "placements", len(placements))
	return nil
}

func keyRank(k catalog.LogicalKey) int {
	if k.Kind == model.ForeignKey {
		return 0
	}
	return 1
}

// dropForeignKeys deletes the foreign keys of entity and their constraints.
func (o *Orchestrator) dropForeignKeys(v *catalog.Snapshot, entity model.EntityID) error {
	for _, cn := range v.Constraints(entity) {
		if cn.Type != model.ConstraintForeign {
			continue
		}
		if err := o.cat.DeleteConstraint(cn.ID); err != nil {
			return err
		}
	}
	for _, k := range v.Keys(entity) {
		if k.Kind != model.ForeignKey {
			continue
		}
		if err := o.cat.DeleteKey(k.ID); err != nil {
			return err
		}
	}
	return nil
}

// checkForeignKeys fails when a foreign key of another entity references a
// key of e, unless allowed accepts the referencing entity.
func checkForeignKeys(v *catalog.Snapshot, e catalog.LogicalEntity, allowed func(catalog.LogicalEntity) bool) error {
	for _, k := range v.Keys(e.ID) {
		for _, fk := range v.ForeignKeysReferencing(k.ID) {
			if fk.EntityID == e.ID {
				continue
			}
			other, err := v.Entity(fk.EntityID)
			if err != nil {
				return err
			}
			if allowed != nil && allowed(other) {
				continue
			}
			return fmt.Errorf("%w: %s is referenced by %s", ErrForeignKeyReference, e.Name, other.Name)
		}
	}
	return nil
}

func checkNewEntity(v *catalog.Snapshot, ns catalog.Namespace, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("entity name is empty")
	}
	if _, err := v.EntityByName(ns.ID, name); err == nil {
		return &catalog.AlreadyExistsError{Kind: catalog.KindEntity, Name: name}
	}
	return nil
}

// targets resolves the adapters of a new entity. Explicit adapters produce
// MANUAL placements, router picks AUTOMATIC ones.
func (o *Orchestrator) targets(m model.DataModel, requested []model.AdapterID) ([]model.AdapterID, model.PlacementType, error) {
	if len(requested) == 0 {
		ids, err := o.router.DataStoresForNewEntity(m)
		return ids, model.Automatic, err
	}
	seen := make(map[model.AdapterID]bool, len(requested))
	for _, id := range requested {
		if seen[id] {
			return nil, 0, invalid("adapter %d listed twice", id)
		}
		seen[id] = true
		a, err := o.adapters.Get(id)
		if err != nil {
			return nil, 0, err
		}
		if !a.Supports(m) {
			return nil, 0, fmt.Errorf("%w: adapter %s does not store %s entities", ErrModelMismatch, a.Name(), m)
		}
	}
	return requested, model.Manual, nil
}

// addDefaultPartition gives a new entity one group with one partition.
func (o *Orchestrator) addDefaultPartition(entity model.EntityID) error {
	layout := partition.DefaultLayout()
	groups, parts, err := o.addLayout(entity, layout)
	if err != nil {
		return err
	}
	return o.cat.SetProperty(layout.Property(entity, 0, groups, parts))
}

// addLayout creates the groups and partitions of layout.
func (o *Orchestrator) addLayout(entity model.EntityID, layout *partition.Layout) ([]model.GroupID, []model.PartitionID, error) {
	groups := make([]model.GroupID, 0, len(layout.Groups))
	var parts []model.PartitionID
	for _, gs := range layout.Groups {
		g, err := o.cat.AddGroup(catalog.AllocationPartitionGroup{
			EntityID: entity,
			Name:     gs.Name,
			Unbound:  gs.Unbound,
		})
		if err != nil {
			return nil, nil, err
		}
		groups = append(groups, g.ID)
		for i := range gs.Partitions {
			p, err := o.cat.AddPartition(catalog.AllocationPartition{
				GroupID:    g.ID,
				Name:       gs.PartitionName(i),
				Qualifiers: gs.Qualifiers,
				Unbound:    gs.Unbound,
			})
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, p.ID)
		}
	}
	return groups, parts, nil
}

func (o *Orchestrator) place(ctx context.Context, e catalog.LogicalEntity, adapters []model.AdapterID, typ model.PlacementType) error {
	for _, id := range adapters {
		if _, err := o.alloc.AddPlacement(ctx, allocation.PlacementSpec{
			Entity:  e.ID,
			Adapter: id,
			Type:    typ,
		}); err != nil {
			return err
		}
	}
	return nil
}

// deferPrimaryKey registers a commit check that the table got a primary key.
func (o *Orchestrator) deferPrimaryKey(e catalog.LogicalEntity) {
	id := e.ID
	o.cat.AttachCommitConstraint(func(s *catalog.Snapshot) bool {
		if _, err := s.Entity(id); err != nil {
			return true
		}
		_, err := s.PrimaryKey(id)
		return err == nil
	}, fmt.Sprintf("table %s has no primary key", e.Name))
}
