package ddl

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// CreateNamespace adds an empty namespace holding entities of data model m.
func (o *Orchestrator) CreateNamespace(ctx context.Context, name string, m model.DataModel, caseSensitive bool) (catalog.Namespace, error) {
	var ns catalog.Namespace
	err := o.run(ctx, "CREATE NAMESPACE", name, func() error {
		if name == "" {
			return invalid("namespace name is empty")
		}
		var err error
		ns, err = o.cat.AddNamespace(catalog.Namespace{Name: name, Model: m, CaseSensitive: caseSensitive})
		return err
	})
	return ns, err
}

// DropNamespace drops a namespace and every entity in it. Views are dropped
// before the entities they read from. Views in other namespaces that read
// from the namespace make the verb fail.
func (o *Orchestrator) DropNamespace(ctx context.Context, name string) error {
	return o.run(ctx, "DROP NAMESPACE", name, func() error {
		v := o.cat.Working()
		ns, err := v.NamespaceByName(name)
		if err != nil {
			return err
		}
		entities := v.Entities(ns.ID)
		for _, e := range entities {
			for _, dep := range v.DependentViews(e.ID) {
				if dep.NamespaceID != ns.ID {
					return fmt.Errorf("%w: %s is read by %s", ErrDependentView, e.Name, dep.Name)
				}
			}
			if err := checkForeignKeys(v, e, func(other catalog.LogicalEntity) bool {
				return other.NamespaceID == ns.ID
			}); err != nil {
				return err
			}
		}

		// Foreign keys between entities of the namespace would block the
		// keys they reference.
		for _, e := range entities {
			if err := o.dropForeignKeys(v, e.ID); err != nil {
				return err
			}
		}
		v = o.cat.Working()
		for _, e := range dropOrder(v, entities) {
			if err := o.cascade(ctx, e); err != nil {
				return err
			}
		}
		return o.cat.DeleteNamespace(ns.ID)
	})
}

// dropOrder sorts entities so that every view comes before the entities it
// reads from.
func dropOrder(v *catalog.Snapshot, entities []catalog.LogicalEntity) []catalog.LogicalEntity {
	var out []catalog.LogicalEntity
	done := make(map[model.EntityID]bool, len(entities))
	var visit func(e catalog.LogicalEntity)
	visit = func(e catalog.LogicalEntity) {
		if done[e.ID] {
			return
		}
		done[e.ID] = true
		for _, dep := range v.DependentViews(e.ID) {
			if slices.ContainsFunc(entities, func(x catalog.LogicalEntity) bool { return x.ID == dep.ID }) {
				visit(dep)
			}
		}
		out = append(out, e)
	}
	for _, e := range entities {
		visit(e)
	}
	return out
}
