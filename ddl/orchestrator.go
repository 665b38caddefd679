package ddl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/cache"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/index"
	"github.com/hupe1980/polyalloc/migrate"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/partition"
	"github.com/hupe1980/polyalloc/route"
)

// Observer receives the outcome of every verb.
type Observer interface {
	RecordDDL(verb string, d time.Duration, err error)
	// RecordConstraintRejection is called when a verb is refused because it
	// would strand data or break a placement rule.
	RecordConstraintRejection(verb string)
}

// Statement identifies one executed verb in logs.
type Statement struct {
	ID      string
	Verb    string
	Target  string
	Started time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRouter sets the placement policy for new entities and columns.
func WithRouter(r route.Router) Option {
	return func(o *Orchestrator) {
		o.router = r
	}
}

// WithMigrator sets the data migrator.
func WithMigrator(m *migrate.Migrator) Option {
	return func(o *Orchestrator) {
		o.migrator = m
	}
}

// WithIndexManager sets the polystore index manager.
func WithIndexManager(m *index.Manager) Option {
	return func(o *Orchestrator) {
		o.indexes = m
	}
}

// WithCaches sets the statement caches reset after every verb.
func WithCaches(c *cache.Statement) Option {
	return func(o *Orchestrator) {
		o.caches = c
	}
}

// WithPartitions sets the partition strategy factory.
func WithPartitions(f *partition.Factory) Option {
	return func(o *Orchestrator) {
		o.partitions = f
	}
}

// WithObserver reports every verb to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithMaterializer sets the evaluator used to refresh materialized views.
func WithMaterializer(m Materializer) Option {
	return func(o *Orchestrator) {
		o.materializer = m
	}
}

// Orchestrator implements the DDL verbs over one catalog. Like the catalog
// it assumes a single writer.
type Orchestrator struct {
	cat          *catalog.Catalog
	adapters     *adapter.Registry
	alloc        *allocation.Manager
	migrator     *migrate.Migrator
	indexes      *index.Manager
	router       route.Router
	partitions   *partition.Factory
	caches       *cache.Statement
	materializer Materializer
	observer     Observer
	logger       *slog.Logger
}

// New returns an orchestrator writing to cat and realizing allocations
// through adapters.
func New(cat *catalog.Catalog, adapters *adapter.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cat:      cat,
		adapters: adapters,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.partitions == nil {
		o.partitions = partition.NewFactory()
	}
	if o.migrator == nil {
		o.migrator = migrate.New(adapters, migrate.WithPartitions(o.partitions), migrate.WithLogger(o.logger))
	}
	if o.indexes == nil {
		o.indexes = index.NewManager(adapters, index.WithLogger(o.logger))
	}
	if o.router == nil {
		o.router = route.NewStatic(adapters)
	}
	if o.caches == nil {
		o.caches = cache.NewStatement(cache.DefaultCapacity)
	}
	o.alloc = allocation.NewManager(cat, adapters,
		allocation.WithMigrator(o.migrator),
		allocation.WithIndexManager(o.indexes),
		allocation.WithLogger(o.logger),
	)
	return o
}

// Catalog returns the catalog the orchestrator writes to.
func (o *Orchestrator) Catalog() *catalog.Catalog { return o.cat }

// Allocations returns the allocation manager.
func (o *Orchestrator) Allocations() *allocation.Manager { return o.alloc }

// Indexes returns the polystore index manager.
func (o *Orchestrator) Indexes() *index.Manager { return o.indexes }

// Caches returns the statement caches.
func (o *Orchestrator) Caches() *cache.Statement { return o.caches }

// run executes one verb. On success the working catalog is published and
// the statement caches are reset; on failure the catalog writes of the verb
// are undone.
func (o *Orchestrator) run(ctx context.Context, verb, target string, fn func() error) error {
	stmt := &Statement{ID: uuid.NewString(), Verb: verb, Target: target, Started: time.Now()}
	log := o.logger.With("statement", stmt.ID, "verb", verb, "target", target)

	sp := o.cat.Savepoint()
	err := fn()
	d := time.Since(stmt.Started)
	if err != nil {
		// Allocations the verb created are dropped again; other physical
		// changes already made on adapters are not undone.
		o.dropCreated(ctx, log, sp)
		o.cat.RollbackTo(sp)
		if isRejection(err) && o.observer != nil {
			o.observer.RecordConstraintRejection(verb)
		}
		log.ErrorContext(ctx, "ddl failed", "error", err, "duration", d)
		o.record(verb, d, err)
		return &VerbError{Verb: verb, Statement: stmt.ID, Target: target, Err: err}
	}

	snap := o.cat.UpdateSnapshot()
	o.caches.Reset()
	log.DebugContext(ctx, "ddl executed", "version", snap.Version(), "duration", d)
	o.record(verb, d, nil)
	return nil
}

// dropCreated removes the physical entities of allocations added after sp
// so that no orphan outlives the catalog rollback.
func (o *Orchestrator) dropCreated(ctx context.Context, log *slog.Logger, sp catalog.Savepoint) {
	created := o.cat.AllocationsSince(sp)
	if len(created) == 0 {
		return
	}
	v := o.cat.Working()
	for _, a := range created {
		if err := o.alloc.DropPhysical(ctx, v, a); err != nil && !errors.Is(err, adapter.ErrNoSuchAllocation) {
			log.WarnContext(ctx, "orphan allocation left on adapter", "alloc", a.ID, "adapter", a.AdapterID, "error", err)
		}
	}
}

func (o *Orchestrator) record(verb string, d time.Duration, err error) {
	if o.observer != nil {
		o.observer.RecordDDL(verb, d, err)
	}
}

func isRejection(err error) bool {
	return errors.Is(err, allocation.ErrConstraintViolation) ||
		errors.Is(err, allocation.ErrLastPlacement) ||
		errors.Is(err, allocation.ErrPrimaryKeyPlacement) ||
		errors.Is(err, allocation.ErrIndexPreventsRemoval) ||
		errors.Is(err, ErrDependentView)
}

// namespace resolves a namespace by name and checks its data model.
func namespace(v *catalog.Snapshot, name string, m model.DataModel) (catalog.Namespace, error) {
	ns, err := v.NamespaceByName(name)
	if err != nil {
		return catalog.Namespace{}, err
	}
	if ns.Model != m {
		return catalog.Namespace{}, fmt.Errorf("%w: namespace %s holds %s entities, not %s", ErrModelMismatch, ns.Name, ns.Model, m)
	}
	return ns, nil
}

// entity resolves an entity by namespace and name.
func entity(v *catalog.Snapshot, ns, name string) (catalog.LogicalEntity, error) {
	n, err := v.NamespaceByName(ns)
	if err != nil {
		return catalog.LogicalEntity{}, err
	}
	return v.EntityByName(n.ID, name)
}

// modifiable resolves a writable entity of data model m.
func modifiable(v *catalog.Snapshot, ns, name string, m model.DataModel) (catalog.LogicalEntity, error) {
	e, err := entity(v, ns, name)
	if err != nil {
		return catalog.LogicalEntity{}, err
	}
	if e.Model != m {
		return catalog.LogicalEntity{}, fmt.Errorf("%w: %s is a %s entity", ErrModelMismatch, e.Name, e.Model)
	}
	if !e.Modifiable {
		return catalog.LogicalEntity{}, fmt.Errorf("%w: %s is a %s", ErrNotModifiable, e.Name, e.Type)
	}
	return e, nil
}

// columnIDs resolves column names of entity.
func columnIDs(v *catalog.Snapshot, entity model.EntityID, names []string) ([]model.ColumnID, error) {
	ids := make([]model.ColumnID, len(names))
	for i, n := range names {
		c, err := v.ColumnByName(entity, n)
		if err != nil {
			return nil, err
		}
		ids[i] = c.ID
	}
	return ids, nil
}

// partitionIDs resolves partition names of entity.
func partitionIDs(v *catalog.Snapshot, entity model.EntityID, names []string) ([]model.PartitionID, error) {
	parts := v.Partitions(entity)
	ids := make([]model.PartitionID, 0, len(names))
	for _, n := range names {
		found := false
		for _, p := range parts {
			if strings.EqualFold(p.Name, n) {
				ids = append(ids, p.ID)
				found = true
				break
			}
		}
		if !found {
			return nil, &catalog.NotFoundError{Kind: catalog.KindPartition, Name: n}
		}
	}
	return ids, nil
}
