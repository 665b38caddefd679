package ddl

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Materializer evaluates the query of a materialized view. Rows are keyed
// by the view's column ids.
type Materializer interface {
	Materialize(ctx context.Context, snap *catalog.Snapshot, view catalog.LogicalEntity) ([]adapter.Row, error)
}

// MaterializerFunc adapts a function to Materializer.
type MaterializerFunc func(ctx context.Context, snap *catalog.Snapshot, view catalog.LogicalEntity) ([]adapter.Row, error)

func (f MaterializerFunc) Materialize(ctx context.Context, snap *catalog.Snapshot, view catalog.LogicalEntity) ([]adapter.Row, error) {
	return f(ctx, snap, view)
}

// ViewSpec describes a view. Underlying names entities as "name" in the
// view's namespace or as "namespace.name". Adapters is only used by
// materialized views.
type ViewSpec struct {
	Namespace  string
	Name       string
	Query      string
	Underlying []string
	Columns    []ColumnSpec
	Adapters   []model.AdapterID
}

// CreateView records a view over existing entities. Views hold no data and
// have no placements.
func (o *Orchestrator) CreateView(ctx context.Context, spec ViewSpec) (catalog.LogicalEntity, error) {
	var e catalog.LogicalEntity
	err := o.run(ctx, "CREATE VIEW", spec.Namespace+"."+spec.Name, func() error {
		v := o.cat.Working()
		ns, underlying, err := o.checkView(v, spec)
		if err != nil {
			return err
		}
		e, err = o.addView(ns, spec, model.View, underlying)
		return err
	})
	return e, err
}

// CreateMaterializedView records a relational view whose result is stored
// on placements, and fills it when a Materializer is configured.
func (o *Orchestrator) CreateMaterializedView(ctx context.Context, spec ViewSpec) (catalog.LogicalEntity, error) {
	var e catalog.LogicalEntity
	err := o.run(ctx, "CREATE MATERIALIZED VIEW", spec.Namespace+"."+spec.Name, func() error {
		v := o.cat.Working()
		ns, underlying, err := o.checkView(v, spec)
		if err != nil {
			return err
		}
		if ns.Model != model.Relational {
			return fmt.Errorf("%w: materialized views must be relational", ErrModelMismatch)
		}
		if len(spec.Columns) == 0 {
			return invalid("materialized view %s has no columns", spec.Name)
		}
		adapters, typ, err := o.targets(model.Relational, spec.Adapters)
		if err != nil {
			return err
		}

		e, err = o.addView(ns, spec, model.MaterializedView, underlying)
		if err != nil {
			return err
		}
		if err := o.addDefaultPartition(e.ID); err != nil {
			return err
		}
		if err := o.place(ctx, e, adapters, typ); err != nil {
			return err
		}
		if o.materializer == nil {
			return nil
		}
		return o.refresh(ctx, e)
	})
	return e, err
}

// RefreshMaterializedView replaces the stored result of a materialized
// view on every allocation.
func (o *Orchestrator) RefreshMaterializedView(ctx context.Context, ns, name string) error {
	return o.run(ctx, "REFRESH MATERIALIZED VIEW", ns+"."+name, func() error {
		e, err := entity(o.cat.Working(), ns, name)
		if err != nil {
			return err
		}
		if e.Type != model.MaterializedView {
			return invalid("%s is a %s", e.Name, e.Type)
		}
		if o.materializer == nil {
			return ErrNoMaterializer
		}
		return o.refresh(ctx, e)
	})
}

func (o *Orchestrator) refresh(ctx context.Context, e catalog.LogicalEntity) error {
	v := o.cat.Working()
	rows, err := o.materializer.Materialize(ctx, v, e)
	if err != nil {
		return err
	}
	for _, a := range v.Allocations(e.ID) {
		if err := o.alloc.TruncatePhysical(ctx, v, a); err != nil {
			return err
		}
		ds, err := o.adapters.DataStore(a.AdapterID)
		if err != nil {
			return err
		}
		t, err := adapter.TableFor(v, a)
		if err != nil {
			return err
		}
		if err := ds.WriteRows(ctx, t, rows); err != nil {
			return err
		}
	}
	o.logger.DebugContext(ctx, "materialized view refreshed", "entity", e.Name, "rows", len(rows))
	return nil
}

// DropView drops a view that no other view reads from.
func (o *Orchestrator) DropView(ctx context.Context, ns, name string) error {
	return o.dropEntity(ctx, "DROP VIEW", ns, name, o.namespaceModel(ns), model.View)
}

// DropMaterializedView drops a materialized view and its placements.
func (o *Orchestrator) DropMaterializedView(ctx context.Context, ns, name string) error {
	return o.dropEntity(ctx, "DROP MATERIALIZED VIEW", ns, name, model.Relational, model.MaterializedView)
}

func (o *Orchestrator) namespaceModel(name string) model.DataModel {
	ns, err := o.cat.Working().NamespaceByName(name)
	if err != nil {
		return model.Relational
	}
	return ns.Model
}

func (o *Orchestrator) checkView(v *catalog.Snapshot, spec ViewSpec) (catalog.Namespace, []model.EntityID, error) {
	ns, err := v.NamespaceByName(spec.Namespace)
	if err != nil {
		return catalog.Namespace{}, nil, err
	}
	if err := checkNewEntity(v, ns, spec.Name); err != nil {
		return catalog.Namespace{}, nil, err
	}
	if len(spec.Underlying) == 0 {
		return catalog.Namespace{}, nil, invalid("view %s reads from no entity", spec.Name)
	}
	if ns.Model != model.Relational && len(spec.Columns) > 0 {
		return catalog.Namespace{}, nil, fmt.Errorf("%w: only relational views have columns", ErrModelMismatch)
	}
	if err := validateColumns(spec.Columns); err != nil {
		return catalog.Namespace{}, nil, err
	}
	ids := make([]model.EntityID, 0, len(spec.Underlying))
	for _, ref := range spec.Underlying {
		refNS, refName := spec.Namespace, ref
		if i := strings.IndexByte(ref, '.'); i >= 0 {
			refNS, refName = ref[:i], ref[i+1:]
		}
		u, err := entity(v, refNS, refName)
		if err != nil {
			return catalog.Namespace{}, nil, err
		}
		ids = append(ids, u.ID)
	}
	return ns, ids, nil
}

func (o *Orchestrator) addView(ns catalog.Namespace, spec ViewSpec, typ model.EntityType, underlying []model.EntityID) (catalog.LogicalEntity, error) {
	e, err := o.cat.AddEntity(catalog.LogicalEntity{
		NamespaceID: ns.ID,
		Name:        spec.Name,
		Model:       ns.Model,
		Type:        typ,
		Underlying:  underlying,
		Query:       spec.Query,
	})
	if err != nil {
		return catalog.LogicalEntity{}, err
	}
	if _, err := o.addColumns(e, spec.Columns); err != nil {
		return catalog.LogicalEntity{}, err
	}
	return e, nil
}
