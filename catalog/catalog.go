package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/polyalloc/codec"
	"github.com/hupe1980/polyalloc/internal/manifest"
	"github.com/hupe1980/polyalloc/model"
)

// Catalog is the single-writer store of logical and allocation records.
//
// Writes go to a working state. UpdateSnapshot publishes the working state to
// readers, Commit makes it durable and Rollback discards it.
type Catalog struct {
	mu sync.Mutex

	working   *state
	committed *state
	snap      atomic.Pointer[Snapshot]
	version   uint64

	constraints []commitConstraint
	journal     []JournalEntry
	journalSeq  uint64

	manifests   *manifest.Store
	imageID     uint64
	codec       codec.Codec
	compression Compression
	logger      *slog.Logger
}

type commitConstraint struct {
	check func(*Snapshot) bool
	msg   string
}

// New creates an empty in-memory catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		working: newState(),
		codec:   codec.Default,
		logger:  discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.committed = c.working.clone()
	c.publish(c.committed)
	return c
}

func (c *Catalog) publish(s *state) {
	c.version++
	c.snap.Store(&Snapshot{s: s.clone(), version: c.version})
}

// Snapshot returns the latest published read view. It is safe for
// concurrent use.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Working returns a read view over the unpublished working state. The view
// reflects later writes and must only be used by the writer.
func (c *Catalog) Working() *Snapshot {
	return &Snapshot{s: c.working, version: c.version}
}

// UpdateSnapshot publishes the working state.
func (c *Catalog) UpdateSnapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.publish(c.working)
	return c.snap.Load()
}

// AttachCommitConstraint registers a check evaluated by the next Commit.
func (c *Catalog) AttachCommitConstraint(check func(*Snapshot) bool, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.constraints = append(c.constraints, commitConstraint{check: check, msg: msg})
}

// Commit evaluates the attached commit constraints against the working
// state, persists it when a store is configured and makes it the new
// committed state. A failed constraint leaves the working state untouched.
func (c *Catalog) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	view := &Snapshot{s: c.working, version: c.version}
	var failed []string
	for _, cc := range c.constraints {
		if !cc.check(view) {
			failed = append(failed, cc.msg)
		}
	}
	if len(failed) > 0 {
		c.logger.Warn("commit rejected", "constraints", failed)
		return &CommitConstraintError{Messages: failed}
	}

	if c.manifests != nil {
		if err := c.persist(ctx); err != nil {
			return fmt.Errorf("persist catalog image: %w", err)
		}
	}

	c.committed = c.working.clone()
	c.constraints = nil
	c.journal = nil
	c.publish(c.committed)
	c.logger.Debug("catalog committed", "version", c.version, "image", c.imageID, "duration", time.Since(start))
	return nil
}

// Rollback discards every write since the last commit and republishes the
// committed state. Ids handed out since the commit are not reissued.
func (c *Catalog) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.working.Seq
	c.working = c.committed.clone()
	c.working.Seq = max(c.working.Seq, seq)
	c.constraints = nil
	c.journal = nil
	c.publish(c.committed)
	c.logger.Debug("catalog rolled back", "version", c.version)
}

// Savepoint marks the working state so that a failed statement can be
// undone without discarding the rest of the transaction.
type Savepoint struct {
	s           *state
	journal     int
	constraints int
}

// Savepoint returns a mark of the current working state.
func (c *Catalog) Savepoint() Savepoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Savepoint{s: c.working.clone(), journal: len(c.journal), constraints: len(c.constraints)}
}

// RollbackTo restores the working state to sp. Journal entries and commit
// constraints added after sp are dropped, ids issued after sp stay used. A
// savepoint taken before the last Commit or Rollback is ignored.
func (c *Catalog) RollbackTo(sp Savepoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sp.s == nil || sp.journal > len(c.journal) || sp.constraints > len(c.constraints) {
		return
	}
	seq := c.working.Seq
	c.working = sp.s.clone()
	c.working.Seq = max(c.working.Seq, seq)
	c.journal = c.journal[:sp.journal]
	c.constraints = c.constraints[:sp.constraints]
}

// AllocationsSince returns the allocations of the working state that did
// not exist at sp, ordered by id.
func (c *Catalog) AllocationsSince(sp Savepoint) []AllocationEntity {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sp.s == nil {
		return nil
	}
	return sortedValues(c.working.Allocations, func(a AllocationEntity) bool {
		_, ok := sp.s.Allocations[a.ID]
		return !ok
	})
}

// Journal returns the writes since the last commit or rollback.
func (c *Catalog) Journal() []JournalEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.journal)
}

// ImageID returns the id of the last image written or loaded, or 0.
func (c *Catalog) ImageID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.imageID
}

func (c *Catalog) record(op Op, kind Kind, id, ref int64) {
	c.journalSeq++
	c.journal = append(c.journal, JournalEntry{Seq: c.journalSeq, Op: op, Kind: kind, ID: id, Ref: ref})
}

// AddNamespace stores ns under a new id.
func (c *Catalog) AddNamespace(ns Namespace) (Namespace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.Working().NamespaceByName(ns.Name); err == nil {
		return Namespace{}, &AlreadyExistsError{Kind: KindNamespace, Name: ns.Name}
	}
	ns.ID = model.NamespaceID(c.working.nextID())
	c.working.Namespaces[ns.ID] = ns
	c.record(OpAdd, KindNamespace, int64(ns.ID), 0)
	return ns, nil
}

// DeleteNamespace removes an empty namespace.
func (c *Catalog) DeleteNamespace(id model.NamespaceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.working.Namespaces[id]; !ok {
		return notFound(KindNamespace, id)
	}
	for _, e := range c.working.Entities {
		if e.NamespaceID == id {
			return referenced(KindNamespace, id, KindEntity)
		}
	}
	delete(c.working.Namespaces, id)
	c.record(OpDelete, KindNamespace, int64(id), 0)
	return nil
}

// AddEntity stores e under a new id.
func (c *Catalog) AddEntity(e LogicalEntity) (LogicalEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	if _, err := v.Namespace(e.NamespaceID); err != nil {
		return LogicalEntity{}, err
	}
	if _, err := v.EntityByName(e.NamespaceID, e.Name); err == nil {
		return LogicalEntity{}, &AlreadyExistsError{Kind: KindEntity, Name: e.Name}
	}
	for _, u := range e.Underlying {
		if _, err := v.Entity(u); err != nil {
			return LogicalEntity{}, err
		}
	}
	e.ID = model.EntityID(c.working.nextID())
	e.Underlying = slices.Clone(e.Underlying)
	c.working.Entities[e.ID] = e
	c.record(OpAdd, KindEntity, int64(e.ID), int64(e.NamespaceID))
	return e, nil
}

// UpdateEntity replaces the stored entity with e. Renames are checked for
// duplicates.
func (c *Catalog) UpdateEntity(e LogicalEntity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	old, err := v.Entity(e.ID)
	if err != nil {
		return err
	}
	if e.NamespaceID != old.NamespaceID {
		return fmt.Errorf("entity %d cannot move between namespaces", e.ID)
	}
	if old.Name != e.Name {
		if other, err := v.EntityByName(e.NamespaceID, e.Name); err == nil && other.ID != e.ID {
			return &AlreadyExistsError{Kind: KindEntity, Name: e.Name}
		}
	}
	e.Underlying = slices.Clone(e.Underlying)
	c.working.Entities[e.ID] = e
	c.record(OpUpdate, KindEntity, int64(e.ID), int64(e.NamespaceID))
	return nil
}

// DeleteEntity removes an entity once nothing refers to it anymore.
func (c *Catalog) DeleteEntity(id model.EntityID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	e, err := v.Entity(id)
	if err != nil {
		return err
	}
	refs := v.References(id)
	for _, k := range refs {
		if k != KindEntity {
			return referenced(KindEntity, id, k)
		}
	}
	if len(v.DependentViews(id)) > 0 {
		return referenced(KindEntity, id, KindEntity)
	}
	delete(c.working.Entities, id)
	c.record(OpDelete, KindEntity, int64(id), int64(e.NamespaceID))
	return nil
}

// AddColumn stores col under a new id. A zero Position appends the column.
func (c *Catalog) AddColumn(col LogicalColumn) (LogicalColumn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	e, err := v.Entity(col.EntityID)
	if err != nil {
		return LogicalColumn{}, err
	}
	if _, err := v.ColumnByName(col.EntityID, col.Name); err == nil {
		return LogicalColumn{}, &AlreadyExistsError{Kind: KindColumn, Name: col.Name}
	}
	if col.Position == 0 {
		for _, other := range v.Columns(col.EntityID) {
			col.Position = max(col.Position, other.Position)
		}
		col.Position++
	}
	col.ID = model.ColumnID(c.working.nextID())
	col.NamespaceID = e.NamespaceID
	c.working.Columns[col.ID] = col
	c.record(OpAdd, KindColumn, int64(col.ID), int64(col.EntityID))
	return col, nil
}

// UpdateColumn replaces the stored column with col.
func (c *Catalog) UpdateColumn(col LogicalColumn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	old, err := v.Column(col.ID)
	if err != nil {
		return err
	}
	if old.EntityID != col.EntityID {
		return fmt.Errorf("column %d cannot move between entities", col.ID)
	}
	if other, err := v.ColumnByName(col.EntityID, col.Name); err == nil && other.ID != col.ID {
		return &AlreadyExistsError{Kind: KindColumn, Name: col.Name}
	}
	col.NamespaceID = old.NamespaceID
	c.working.Columns[col.ID] = col
	c.record(OpUpdate, KindColumn, int64(col.ID), int64(col.EntityID))
	return nil
}

// DeleteColumn removes a column that is no longer placed, keyed or used for
// partitioning.
func (c *Catalog) DeleteColumn(id model.ColumnID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.working.Columns[id]
	if !ok {
		return notFound(KindColumn, id)
	}
	for _, k := range c.working.Keys {
		if k.HasColumn(id) {
			return referenced(KindColumn, id, KindKey)
		}
	}
	for _, cols := range c.working.AllocColumns {
		for _, ac := range cols {
			if ac.ColumnID == id {
				return referenced(KindColumn, id, KindAllocColumn)
			}
		}
	}
	if p, ok := c.working.Properties[col.EntityID]; ok && p.ColumnID == id {
		return referenced(KindColumn, id, KindProperty)
	}
	delete(c.working.Columns, id)
	c.record(OpDelete, KindColumn, int64(id), int64(col.EntityID))
	return nil
}

// AddKey stores k under a new id. An entity has at most one primary key.
func (c *Catalog) AddKey(k LogicalKey) (LogicalKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	e, err := v.Entity(k.EntityID)
	if err != nil {
		return LogicalKey{}, err
	}
	if len(k.ColumnIDs) == 0 {
		return LogicalKey{}, fmt.Errorf("key on entity %d has no columns", k.EntityID)
	}
	for _, id := range k.ColumnIDs {
		col, err := v.Column(id)
		if err != nil {
			return LogicalKey{}, err
		}
		if col.EntityID != k.EntityID {
			return LogicalKey{}, fmt.Errorf("column %d does not belong to entity %d", id, k.EntityID)
		}
	}
	switch k.Kind {
	case model.PrimaryKey:
		if _, err := v.PrimaryKey(k.EntityID); err == nil {
			return LogicalKey{}, &AlreadyExistsError{Kind: KindKey, Name: "primary key of " + e.Name}
		}
	case model.ForeignKey:
		ref, err := v.Key(k.ReferencedKeyID)
		if err != nil {
			return LogicalKey{}, err
		}
		if len(ref.ColumnIDs) != len(k.ColumnIDs) {
			return LogicalKey{}, fmt.Errorf("foreign key has %d columns, referenced key has %d", len(k.ColumnIDs), len(ref.ColumnIDs))
		}
	}
	k.ID = model.KeyID(c.working.nextID())
	k.NamespaceID = e.NamespaceID
	k.ColumnIDs = slices.Clone(k.ColumnIDs)
	c.working.Keys[k.ID] = k
	c.record(OpAdd, KindKey, int64(k.ID), int64(k.EntityID))
	return k, nil
}

// DeleteKey removes a key that no index, constraint or foreign key uses.
func (c *Catalog) DeleteKey(id model.KeyID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, ok := c.working.Keys[id]
	if !ok {
		return notFound(KindKey, id)
	}
	for _, i := range c.working.Indexes {
		if i.KeyID == id {
			return referenced(KindKey, id, KindIndex)
		}
	}
	for _, cn := range c.working.Constraints {
		if cn.KeyID == id {
			return referenced(KindKey, id, KindConstraint)
		}
	}
	for _, other := range c.working.Keys {
		if other.Kind == model.ForeignKey && other.ReferencedKeyID == id {
			return referenced(KindKey, id, KindKey)
		}
	}
	delete(c.working.Keys, id)
	c.record(OpDelete, KindKey, int64(id), int64(k.EntityID))
	return nil
}

// AddIndex stores i under a new id.
func (c *Catalog) AddIndex(i LogicalIndex) (LogicalIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	e, err := v.Entity(i.EntityID)
	if err != nil {
		return LogicalIndex{}, err
	}
	k, err := v.Key(i.KeyID)
	if err != nil {
		return LogicalIndex{}, err
	}
	if k.EntityID != i.EntityID {
		return LogicalIndex{}, fmt.Errorf("key %d does not belong to entity %d", k.ID, i.EntityID)
	}
	if _, err := v.IndexByName(i.EntityID, i.Name); err == nil {
		return LogicalIndex{}, &AlreadyExistsError{Kind: KindIndex, Name: i.Name}
	}
	i.ID = model.IndexID(c.working.nextID())
	i.NamespaceID = e.NamespaceID
	c.working.Indexes[i.ID] = i
	c.record(OpAdd, KindIndex, int64(i.ID), int64(i.EntityID))
	return i, nil
}

// DeleteIndex removes an index.
func (c *Catalog) DeleteIndex(id model.IndexID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.working.Indexes[id]
	if !ok {
		return notFound(KindIndex, id)
	}
	delete(c.working.Indexes, id)
	c.record(OpDelete, KindIndex, int64(id), int64(i.EntityID))
	return nil
}

// AddConstraint stores cn under a new id.
func (c *Catalog) AddConstraint(cn LogicalConstraint) (LogicalConstraint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	k, err := v.Key(cn.KeyID)
	if err != nil {
		return LogicalConstraint{}, err
	}
	if k.EntityID != cn.EntityID {
		return LogicalConstraint{}, fmt.Errorf("key %d does not belong to entity %d", k.ID, cn.EntityID)
	}
	for _, other := range v.Constraints(cn.EntityID) {
		if strings.EqualFold(other.Name, cn.Name) {
			return LogicalConstraint{}, &AlreadyExistsError{Kind: KindConstraint, Name: cn.Name}
		}
	}
	cn.ID = model.ConstraintID(c.working.nextID())
	c.working.Constraints[cn.ID] = cn
	c.record(OpAdd, KindConstraint, int64(cn.ID), int64(cn.EntityID))
	return cn, nil
}

// DeleteConstraint removes a constraint.
func (c *Catalog) DeleteConstraint(id model.ConstraintID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cn, ok := c.working.Constraints[id]
	if !ok {
		return notFound(KindConstraint, id)
	}
	delete(c.working.Constraints, id)
	c.record(OpDelete, KindConstraint, int64(id), int64(cn.EntityID))
	return nil
}

// AddPlacement records that entity has a footprint on adapter.
func (c *Catalog) AddPlacement(entity model.EntityID, adapter model.AdapterID) (AllocationPlacement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	e, err := v.Entity(entity)
	if err != nil {
		return AllocationPlacement{}, err
	}
	if _, err := v.PlacementFor(entity, adapter); err == nil {
		return AllocationPlacement{}, &AlreadyExistsError{
			Kind: KindPlacement,
			Name: fmt.Sprintf("%s on adapter %d", e.Name, adapter),
		}
	}
	p := AllocationPlacement{
		ID:          model.PlacementID(c.working.nextID()),
		EntityID:    entity,
		NamespaceID: e.NamespaceID,
		AdapterID:   adapter,
	}
	c.working.Placements[p.ID] = p
	c.record(OpAdd, KindPlacement, int64(p.ID), int64(entity))
	return p, nil
}

// DeletePlacement removes a placement without columns or allocations.
func (c *Catalog) DeletePlacement(id model.PlacementID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.working.Placements[id]
	if !ok {
		return notFound(KindPlacement, id)
	}
	if len(c.working.AllocColumns[id]) > 0 {
		return referenced(KindPlacement, id, KindAllocColumn)
	}
	for _, a := range c.working.Allocations {
		if a.PlacementID == id {
			return referenced(KindPlacement, id, KindAllocation)
		}
	}
	delete(c.working.Placements, id)
	delete(c.working.AllocColumns, id)
	c.record(OpDelete, KindPlacement, int64(id), int64(p.EntityID))
	return nil
}

// AddAllocColumn places column on placement. A zero position appends it.
func (c *Catalog) AddAllocColumn(placement model.PlacementID, column model.ColumnID, typ model.PlacementType, position int) (AllocationColumn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	p, err := v.Placement(placement)
	if err != nil {
		return AllocationColumn{}, err
	}
	col, err := v.Column(column)
	if err != nil {
		return AllocationColumn{}, err
	}
	if col.EntityID != p.EntityID {
		return AllocationColumn{}, fmt.Errorf("column %d does not belong to entity %d", column, p.EntityID)
	}
	existing := c.working.AllocColumns[placement]
	for _, ac := range existing {
		if ac.ColumnID == column {
			return AllocationColumn{}, &AlreadyExistsError{Kind: KindAllocColumn, Name: col.Name}
		}
	}
	if position == 0 {
		for _, ac := range existing {
			position = max(position, ac.Position)
		}
		position++
	}
	ac := AllocationColumn{
		PlacementID: placement,
		ColumnID:    column,
		EntityID:    p.EntityID,
		NamespaceID: p.NamespaceID,
		AdapterID:   p.AdapterID,
		Type:        typ,
		Position:    position,
	}
	next := make([]AllocationColumn, 0, len(existing)+1)
	next = append(next, existing...)
	c.working.AllocColumns[placement] = append(next, ac)
	c.record(OpAdd, KindAllocColumn, int64(column), int64(placement))
	return ac, nil
}

// UpdateAllocColumn changes the placement type of a placed column.
func (c *Catalog) UpdateAllocColumn(placement model.PlacementID, column model.ColumnID, typ model.PlacementType) (AllocationColumn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.working.AllocColumns[placement]
	idx := slices.IndexFunc(existing, func(ac AllocationColumn) bool { return ac.ColumnID == column })
	if idx < 0 {
		return AllocationColumn{}, notFound(KindAllocColumn, column)
	}
	next := slices.Clone(existing)
	next[idx].Type = typ
	c.working.AllocColumns[placement] = next
	c.record(OpUpdate, KindAllocColumn, int64(column), int64(placement))
	return next[idx], nil
}

// DeleteAllocColumn removes column from placement.
func (c *Catalog) DeleteAllocColumn(placement model.PlacementID, column model.ColumnID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.working.AllocColumns[placement]
	idx := slices.IndexFunc(existing, func(ac AllocationColumn) bool { return ac.ColumnID == column })
	if idx < 0 {
		return notFound(KindAllocColumn, column)
	}
	next := slices.Delete(slices.Clone(existing), idx, idx+1)
	if len(next) == 0 {
		delete(c.working.AllocColumns, placement)
	} else {
		c.working.AllocColumns[placement] = next
	}
	c.record(OpDelete, KindAllocColumn, int64(column), int64(placement))
	return nil
}

// AddGroup stores g under a new id.
func (c *Catalog) AddGroup(g AllocationPartitionGroup) (AllocationPartitionGroup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	e, err := v.Entity(g.EntityID)
	if err != nil {
		return AllocationPartitionGroup{}, err
	}
	for _, other := range v.Groups(g.EntityID) {
		if other.Name == g.Name {
			return AllocationPartitionGroup{}, &AlreadyExistsError{Kind: KindGroup, Name: g.Name}
		}
	}
	g.ID = model.GroupID(c.working.nextID())
	g.NamespaceID = e.NamespaceID
	c.working.Groups[g.ID] = g
	c.record(OpAdd, KindGroup, int64(g.ID), int64(g.EntityID))
	return g, nil
}

// DeleteGroup removes a group without partitions.
func (c *Catalog) DeleteGroup(id model.GroupID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.working.Groups[id]
	if !ok {
		return notFound(KindGroup, id)
	}
	for _, p := range c.working.Partitions {
		if p.GroupID == id {
			return referenced(KindGroup, id, KindPartition)
		}
	}
	delete(c.working.Groups, id)
	c.record(OpDelete, KindGroup, int64(id), int64(g.EntityID))
	return nil
}

// AddPartition stores p under a new id inside its group.
func (c *Catalog) AddPartition(p AllocationPartition) (AllocationPartition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.Working().Group(p.GroupID)
	if err != nil {
		return AllocationPartition{}, err
	}
	p.ID = model.PartitionID(c.working.nextID())
	p.EntityID = g.EntityID
	p.NamespaceID = g.NamespaceID
	p.Qualifiers = slices.Clone(p.Qualifiers)
	c.working.Partitions[p.ID] = p
	c.record(OpAdd, KindPartition, int64(p.ID), int64(p.EntityID))
	return p, nil
}

// DeletePartition removes a partition without allocations.
func (c *Catalog) DeletePartition(id model.PartitionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.working.Partitions[id]
	if !ok {
		return notFound(KindPartition, id)
	}
	for _, a := range c.working.Allocations {
		if a.PartitionID == id {
			return referenced(KindPartition, id, KindAllocation)
		}
	}
	delete(c.working.Partitions, id)
	c.record(OpDelete, KindPartition, int64(id), int64(p.EntityID))
	return nil
}

// SetProperty stores the partition property of p.EntityID, replacing any
// previous one. Every referenced group and partition must exist.
func (c *Catalog) SetProperty(p PartitionProperty) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	if _, err := v.Entity(p.EntityID); err != nil {
		return err
	}
	for _, id := range p.GroupIDs {
		if g, err := v.Group(id); err != nil {
			return err
		} else if g.EntityID != p.EntityID {
			return fmt.Errorf("group %d does not belong to entity %d", id, p.EntityID)
		}
	}
	for _, id := range p.PartitionIDs {
		if part, err := v.Partition(id); err != nil {
			return err
		} else if part.EntityID != p.EntityID {
			return fmt.Errorf("partition %d does not belong to entity %d", id, p.EntityID)
		}
	}
	op := OpAdd
	if _, ok := c.working.Properties[p.EntityID]; ok {
		op = OpUpdate
	}
	p.GroupIDs = slices.Clone(p.GroupIDs)
	p.PartitionIDs = slices.Clone(p.PartitionIDs)
	if p.Temperature != nil {
		t := *p.Temperature
		p.Temperature = &t
	}
	c.working.Properties[p.EntityID] = p
	c.record(op, KindProperty, int64(p.EntityID), 0)
	return nil
}

// DeleteProperty removes the partition property of entity.
func (c *Catalog) DeleteProperty(entity model.EntityID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.working.Properties[entity]; !ok {
		return notFound(KindProperty, entity)
	}
	delete(c.working.Properties, entity)
	c.record(OpDelete, KindProperty, int64(entity), 0)
	return nil
}

// AddAllocation realizes partition on placement.
func (c *Catalog) AddAllocation(placement model.PlacementID, partition model.PartitionID) (AllocationEntity, error) {
	return c.addAllocation(placement, partition, "")
}

// AddExternalAllocation binds partition on placement to the existing table
// name of a data source.
func (c *Catalog) AddExternalAllocation(placement model.PlacementID, partition model.PartitionID, name string) (AllocationEntity, error) {
	if name == "" {
		return AllocationEntity{}, fmt.Errorf("external allocation of placement %d has no table name", placement)
	}
	return c.addAllocation(placement, partition, name)
}

func (c *Catalog) addAllocation(placement model.PlacementID, partition model.PartitionID, external string) (AllocationEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.Working()
	p, err := v.Placement(placement)
	if err != nil {
		return AllocationEntity{}, err
	}
	part, err := v.Partition(partition)
	if err != nil {
		return AllocationEntity{}, err
	}
	if part.EntityID != p.EntityID {
		return AllocationEntity{}, fmt.Errorf("partition %d does not belong to entity %d", partition, p.EntityID)
	}
	if _, err := v.AllocationFor(placement, partition); err == nil {
		return AllocationEntity{}, &AlreadyExistsError{
			Kind: KindAllocation,
			Name: fmt.Sprintf("partition %d on placement %d", partition, placement),
		}
	}
	e, err := v.Entity(p.EntityID)
	if err != nil {
		return AllocationEntity{}, err
	}
	a := AllocationEntity{
		ID:          model.AllocationID(c.working.nextID()),
		PlacementID: placement,
		PartitionID: partition,
		EntityID:    p.EntityID,
		NamespaceID: p.NamespaceID,
		AdapterID:   p.AdapterID,
		Model:       e.Model,
		External:    external,
	}
	c.working.Allocations[a.ID] = a
	c.record(OpAdd, KindAllocation, int64(a.ID), int64(placement))
	return a, nil
}

// DeleteAllocation removes an allocation entity.
func (c *Catalog) DeleteAllocation(id model.AllocationID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.working.Allocations[id]
	if !ok {
		return notFound(KindAllocation, id)
	}
	delete(c.working.Allocations, id)
	c.record(OpDelete, KindAllocation, int64(id), int64(a.PlacementID))
	return nil
}
