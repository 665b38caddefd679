package allocation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Migrator fills new allocations with existing data.
type Migrator interface {
	// CopyData copies columns of the targets' partitions from the other
	// placements of the entity into targets.
	CopyData(ctx context.Context, snap *catalog.Snapshot, targets []catalog.AllocationEntity, columns []model.ColumnID) error
}

// IndexManager maintains polystore indexes.
type IndexManager interface {
	// Reindex rebuilds the polystore indexes of entity from its placements.
	Reindex(ctx context.Context, snap *catalog.Snapshot, entity model.EntityID) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithMigrator sets the migrator that fills new allocations.
func WithMigrator(mg Migrator) Option {
	return func(m *Manager) {
		m.migrator = mg
	}
}

// WithIndexManager sets the polystore index manager.
func WithIndexManager(im IndexManager) Option {
	return func(m *Manager) {
		m.indexes = im
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager owns placements, column placements and allocations. It assumes a
// single writer on the catalog.
type Manager struct {
	cat      *catalog.Catalog
	adapters *adapter.Registry
	migrator Migrator
	indexes  IndexManager
	logger   *slog.Logger
}

// NewManager returns a manager writing to cat and realizing allocations
// through adapters.
func NewManager(cat *catalog.Catalog, adapters *adapter.Registry, opts ...Option) *Manager {
	m := &Manager{
		cat:      cat,
		adapters: adapters,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PlacementSpec describes a new placement. Empty Columns selects every
// column and empty Partitions every partition.
type PlacementSpec struct {
	Entity     model.EntityID
	Adapter    model.AdapterID
	Columns    []model.ColumnID
	Partitions []model.PartitionID
	Type       model.PlacementType
}

// AddPlacement places an entity on an adapter. Primary key columns are added
// as AUTOMATIC when spec does not list them. Existing data is copied from
// the other placements.
func (m *Manager) AddPlacement(ctx context.Context, spec PlacementSpec) (catalog.AllocationPlacement, error) {
	v := m.cat.Working()
	e, err := v.Entity(spec.Entity)
	if err != nil {
		return catalog.AllocationPlacement{}, err
	}
	if e.Type == model.View {
		return catalog.AllocationPlacement{}, &PlacementError{Entity: e.ID, Adapter: spec.Adapter, Err: ErrNotPlaceable}
	}
	if err := m.checkAdapter(e, spec.Adapter); err != nil {
		return catalog.AllocationPlacement{}, err
	}
	if _, err := v.PlacementFor(e.ID, spec.Adapter); err == nil {
		return catalog.AllocationPlacement{}, &catalog.AlreadyExistsError{
			Kind: catalog.KindPlacement,
			Name: fmt.Sprintf("%s on adapter %d", e.Name, spec.Adapter),
		}
	}
	columns, err := placementColumnSet(v, e, spec.Columns, spec.Type)
	if err != nil {
		return catalog.AllocationPlacement{}, err
	}
	partitions, err := validPartitions(v, e.ID, spec.Partitions)
	if err != nil {
		return catalog.AllocationPlacement{}, err
	}
	existing := len(v.Placements(e.ID)) > 0

	p, err := m.cat.AddPlacement(e.ID, spec.Adapter)
	if err != nil {
		return catalog.AllocationPlacement{}, err
	}
	for _, c := range columns {
		if _, err := m.cat.AddAllocColumn(p.ID, c.id, c.typ, 0); err != nil {
			return catalog.AllocationPlacement{}, err
		}
	}
	allocs := make([]catalog.AllocationEntity, 0, len(partitions))
	for _, part := range partitions {
		a, err := m.cat.AddAllocation(p.ID, part)
		if err != nil {
			return catalog.AllocationPlacement{}, err
		}
		allocs = append(allocs, a)
	}

	v = m.cat.Working()
	for _, a := range allocs {
		if err := m.CreatePhysical(ctx, v, a); err != nil {
			return catalog.AllocationPlacement{}, err
		}
	}
	if existing {
		ids := make([]model.ColumnID, len(columns))
		for i, c := range columns {
			ids[i] = c.id
		}
		if err := m.copy(ctx, v, allocs, ids); err != nil {
			return catalog.AllocationPlacement{}, err
		}
	}
	m.logger.DebugContext(ctx, "placement added",
		"entity", e.Name, "adapter", spec.Adapter, "columns", len(columns), "partitions", len(partitions))
	return p, nil
}

// DropPlacement removes an entity's placement on an adapter after proving
// that every column and partition stays covered elsewhere.
func (m *Manager) DropPlacement(ctx context.Context, entity model.EntityID, adapterID model.AdapterID) error {
	v := m.cat.Working()
	p, err := v.PlacementFor(entity, adapterID)
	if err != nil {
		return err
	}
	if !CanDropPlacement(v, p) {
		return &PlacementError{Entity: entity, Adapter: adapterID, Err: ErrConstraintViolation}
	}
	return m.dropPlacement(ctx, v, p)
}

// RemovePlacement drops a placement without validation. The caller has
// checked CanDropPlacement.
func (m *Manager) RemovePlacement(ctx context.Context, p catalog.AllocationPlacement) error {
	return m.dropPlacement(ctx, m.cat.Working(), p)
}

func (m *Manager) dropPlacement(ctx context.Context, v *catalog.Snapshot, p catalog.AllocationPlacement) error {
	for _, li := range v.Indexes(p.EntityID) {
		if li.Location == p.AdapterID {
			if err := m.cat.DeleteIndex(li.ID); err != nil {
				return err
			}
		}
	}
	for _, a := range v.AllocationsOfPlacement(p.ID) {
		if err := m.DropPhysical(ctx, v, a); err != nil {
			return err
		}
		if err := m.cat.DeleteAllocation(a.ID); err != nil {
			return err
		}
	}
	for _, ac := range v.AllocColumns(p.ID) {
		if err := m.cat.DeleteAllocColumn(p.ID, ac.ColumnID); err != nil {
			return err
		}
	}
	if err := m.cat.DeletePlacement(p.ID); err != nil {
		return err
	}
	if err := m.reindex(ctx, p.EntityID); err != nil {
		return err
	}
	m.logger.DebugContext(ctx, "placement dropped", "entity", p.EntityID, "adapter", p.AdapterID)
	return nil
}

// AddColumnPlacement puts a column on an existing placement. A column that
// is already placed AUTOMATIC is upgraded to MANUAL.
func (m *Manager) AddColumnPlacement(ctx context.Context, entity model.EntityID, column model.ColumnID, adapterID model.AdapterID, typ model.PlacementType) error {
	v := m.cat.Working()
	p, err := v.PlacementFor(entity, adapterID)
	if err != nil {
		return err
	}
	col, err := v.Column(column)
	if err != nil {
		return err
	}
	if col.EntityID != entity {
		return &catalog.NotFoundError{Kind: catalog.KindColumn, ID: int64(column)}
	}
	if ac, err := v.AllocColumn(p.ID, column); err == nil {
		if ac.Type == model.Automatic && typ == model.Manual {
			_, err := m.cat.UpdateAllocColumn(p.ID, column, model.Manual)
			return err
		}
		return &catalog.AlreadyExistsError{Kind: catalog.KindAllocColumn, Name: col.Name}
	}

	ac, err := m.cat.AddAllocColumn(p.ID, column, typ, 0)
	if err != nil {
		return err
	}
	if err := m.addPhysicalColumn(ctx, p, adapter.ColumnFor(col, ac.Position)); err != nil {
		return err
	}
	v = m.cat.Working()
	if len(v.ColumnPlacements(column)) > 1 {
		return m.copy(ctx, v, v.AllocationsOfPlacement(p.ID), []model.ColumnID{column})
	}
	return nil
}

func (m *Manager) addPhysicalColumn(ctx context.Context, p catalog.AllocationPlacement, c adapter.Column) error {
	ds, err := m.adapters.DataStore(p.AdapterID)
	if err != nil {
		return err
	}
	v := m.cat.Working()
	for _, a := range v.AllocationsOfPlacement(p.ID) {
		t, err := adapter.TableFor(v, a)
		if err != nil {
			return err
		}
		if err := ds.AddColumn(ctx, t, c); err != nil {
			return err
		}
	}
	return nil
}

// DropColumnPlacement removes a column from a placement. The removal is
// refused when an index on the adapter uses the column, when the placement
// is the last one holding the column for some partition, or when the
// column is part of the primary key.
func (m *Manager) DropColumnPlacement(ctx context.Context, entity model.EntityID, column model.ColumnID, adapterID model.AdapterID) error {
	v := m.cat.Working()
	p, err := v.PlacementFor(entity, adapterID)
	if err != nil {
		return err
	}
	if _, err := v.AllocColumn(p.ID, column); err != nil {
		return err
	}
	if err := checkColumnRemoval(v, p, []model.ColumnID{column}); err != nil {
		return err
	}
	return m.dropColumnPlacement(ctx, v, p, column)
}

func checkColumnRemoval(v *catalog.Snapshot, p catalog.AllocationPlacement, columns []model.ColumnID) error {
	for _, c := range columns {
		for _, li := range v.Indexes(p.EntityID) {
			if li.Location != p.AdapterID {
				continue
			}
			if k, err := v.Key(li.KeyID); err == nil && k.HasColumn(c) {
				return &PlacementError{Entity: p.EntityID, Adapter: p.AdapterID, Column: c,
					Err: fmt.Errorf("%w: %s", ErrIndexPreventsRemoval, li.Name)}
			}
		}
	}
	if !ValidatePlacementsConstraints(v, p, columns, nil) {
		return &PlacementError{Entity: p.EntityID, Adapter: p.AdapterID, Column: columns[0], Err: ErrLastPlacement}
	}
	for _, c := range columns {
		if v.IsPrimaryKeyColumn(c) {
			return &PlacementError{Entity: p.EntityID, Adapter: p.AdapterID, Column: c, Err: ErrPrimaryKeyPlacement}
		}
	}
	return nil
}

func (m *Manager) dropColumnPlacement(ctx context.Context, v *catalog.Snapshot, p catalog.AllocationPlacement, column model.ColumnID) error {
	col, err := v.Column(column)
	if err != nil {
		return err
	}
	ac, err := v.AllocColumn(p.ID, column)
	if err != nil {
		return err
	}
	ds, err := m.adapters.DataStore(p.AdapterID)
	if err != nil {
		return err
	}
	for _, a := range v.AllocationsOfPlacement(p.ID) {
		t, err := adapter.TableFor(v, a)
		if err != nil {
			return err
		}
		if err := ds.DropColumn(ctx, t, adapter.ColumnFor(col, ac.Position)); err != nil {
			return err
		}
	}
	return m.cat.DeleteAllocColumn(p.ID, column)
}

// RemoveColumn drops a column from every placement that holds it, without
// validation. It is used when the logical column itself is dropped.
func (m *Manager) RemoveColumn(ctx context.Context, column model.ColumnID) error {
	v := m.cat.Working()
	for _, ac := range v.ColumnPlacements(column) {
		p, err := v.Placement(ac.PlacementID)
		if err != nil {
			return err
		}
		if err := m.dropColumnPlacement(ctx, v, p, column); err != nil {
			return err
		}
		v = m.cat.Working()
	}
	return nil
}

// ModifyPlacement makes the placement hold exactly columns plus the primary
// key. Every removal is validated before anything is written.
func (m *Manager) ModifyPlacement(ctx context.Context, entity model.EntityID, adapterID model.AdapterID, columns []model.ColumnID, typ model.PlacementType) error {
	v := m.cat.Working()
	p, err := v.PlacementFor(entity, adapterID)
	if err != nil {
		return err
	}
	for _, c := range columns {
		col, err := v.Column(c)
		if err != nil {
			return err
		}
		if col.EntityID != entity {
			return &catalog.NotFoundError{Kind: catalog.KindColumn, ID: int64(c)}
		}
	}

	var drop []model.ColumnID
	for _, ac := range v.AllocColumns(p.ID) {
		if !slices.Contains(columns, ac.ColumnID) && !v.IsPrimaryKeyColumn(ac.ColumnID) {
			drop = append(drop, ac.ColumnID)
		}
	}
	var add []model.ColumnID
	for _, c := range columns {
		if ac, err := v.AllocColumn(p.ID, c); err != nil || (ac.Type == model.Automatic && typ == model.Manual) {
			add = append(add, c)
		}
	}
	if len(drop) > 0 {
		if err := checkColumnRemoval(v, p, drop); err != nil {
			return err
		}
	}

	for _, c := range add {
		if err := m.AddColumnPlacement(ctx, entity, c, adapterID, typ); err != nil {
			return err
		}
	}
	for _, c := range drop {
		if err := m.dropColumnPlacement(ctx, m.cat.Working(), p, c); err != nil {
			return err
		}
	}
	return nil
}

// ModifyPartitionPlacement makes the placement hold exactly partitions.
// Removed partitions are validated first; added ones are created and
// filled from the other placements.
func (m *Manager) ModifyPartitionPlacement(ctx context.Context, entity model.EntityID, adapterID model.AdapterID, partitions []model.PartitionID) error {
	v := m.cat.Working()
	p, err := v.PlacementFor(entity, adapterID)
	if err != nil {
		return err
	}
	want, err := validPartitions(v, entity, partitions)
	if err != nil {
		return err
	}
	held := heldPartitions(v, p.ID)

	var removed, added []model.PartitionID
	for _, id := range held {
		if !slices.Contains(want, id) {
			removed = append(removed, id)
		}
	}
	for _, id := range want {
		if !slices.Contains(held, id) {
			added = append(added, id)
		}
	}
	if len(removed) > 0 && !ValidatePlacementsConstraints(v, p, nil, removed) {
		return &PlacementError{Entity: entity, Adapter: adapterID, Err: ErrConstraintViolation}
	}

	allocs := make([]catalog.AllocationEntity, 0, len(added))
	for _, id := range added {
		a, err := m.cat.AddAllocation(p.ID, id)
		if err != nil {
			return err
		}
		allocs = append(allocs, a)
	}
	v = m.cat.Working()
	for _, a := range allocs {
		if err := m.CreatePhysical(ctx, v, a); err != nil {
			return err
		}
	}
	if len(allocs) > 0 {
		e, err := v.Entity(entity)
		if err != nil {
			return err
		}
		if err := m.copy(ctx, v, allocs, placementColumns(v, e, p.ID)); err != nil {
			return err
		}
	}
	for _, id := range removed {
		a, err := v.AllocationFor(p.ID, id)
		if err != nil {
			return err
		}
		if err := m.DropPhysical(ctx, v, a); err != nil {
			return err
		}
		if err := m.cat.DeleteAllocation(a.ID); err != nil {
			return err
		}
	}
	m.logger.DebugContext(ctx, "partition placement modified",
		"entity", entity, "adapter", adapterID, "added", len(added), "removed", len(removed))
	return nil
}

// Allocate creates and realizes one allocation per (placement, partition)
// pair. It does not copy data.
func (m *Manager) Allocate(ctx context.Context, placements []catalog.AllocationPlacement, partitions []model.PartitionID) ([]catalog.AllocationEntity, error) {
	var allocs []catalog.AllocationEntity
	for _, p := range placements {
		for _, part := range partitions {
			a, err := m.cat.AddAllocation(p.ID, part)
			if err != nil {
				return nil, err
			}
			allocs = append(allocs, a)
		}
	}
	v := m.cat.Working()
	for _, a := range allocs {
		if err := m.CreatePhysical(ctx, v, a); err != nil {
			return nil, err
		}
	}
	return allocs, nil
}

// Deallocate drops and deletes allocations.
func (m *Manager) Deallocate(ctx context.Context, allocs []catalog.AllocationEntity) error {
	v := m.cat.Working()
	for _, a := range allocs {
		if err := m.DropPhysical(ctx, v, a); err != nil {
			return err
		}
		if err := m.cat.DeleteAllocation(a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) checkAdapter(e catalog.LogicalEntity, id model.AdapterID) error {
	a, err := m.adapters.Get(id)
	if err != nil {
		return err
	}
	if !a.Supports(e.Model) {
		return &PlacementError{Entity: e.ID, Adapter: id, Err: fmt.Errorf("%w: %s", ErrModelMismatch, e.Model)}
	}
	return nil
}

func (m *Manager) copy(ctx context.Context, v *catalog.Snapshot, targets []catalog.AllocationEntity, columns []model.ColumnID) error {
	if m.migrator == nil || len(targets) == 0 {
		return nil
	}
	return m.migrator.CopyData(ctx, v, targets, columns)
}

func (m *Manager) reindex(ctx context.Context, entity model.EntityID) error {
	if m.indexes == nil {
		return nil
	}
	return m.indexes.Reindex(ctx, m.cat.Working(), entity)
}

type placedColumn struct {
	id  model.ColumnID
	typ model.PlacementType
}

func placementColumnSet(v *catalog.Snapshot, e catalog.LogicalEntity, requested []model.ColumnID, typ model.PlacementType) ([]placedColumn, error) {
	if e.Model != model.Relational {
		return nil, nil
	}
	all := v.Columns(e.ID)
	if len(requested) == 0 {
		out := make([]placedColumn, len(all))
		for i, c := range all {
			out[i] = placedColumn{id: c.ID, typ: typ}
		}
		return out, nil
	}

	out := make([]placedColumn, 0, len(requested))
	for _, id := range requested {
		c, err := v.Column(id)
		if err != nil {
			return nil, err
		}
		if c.EntityID != e.ID {
			return nil, &catalog.NotFoundError{Kind: catalog.KindColumn, ID: int64(id)}
		}
		out = append(out, placedColumn{id: id, typ: typ})
	}
	if pk, err := v.PrimaryKey(e.ID); err == nil {
		for _, id := range pk.ColumnIDs {
			if !slices.Contains(requested, id) {
				out = append(out, placedColumn{id: id, typ: model.Automatic})
			}
		}
	}
	return out, nil
}

func validPartitions(v *catalog.Snapshot, entity model.EntityID, requested []model.PartitionID) ([]model.PartitionID, error) {
	all := entityPartitions(v, entity)
	if len(requested) == 0 {
		return slices.Clone(all), nil
	}
	for _, id := range requested {
		if !slices.Contains(all, id) {
			return nil, &catalog.NotFoundError{Kind: catalog.KindPartition, ID: int64(id)}
		}
	}
	return slices.Clone(requested), nil
}
