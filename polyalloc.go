package polyalloc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/hupe1980/polyalloc/cache"
	"github.com/hupe1980/polyalloc/cache/redis"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/ddl"
	"github.com/hupe1980/polyalloc/migrate"
	"github.com/hupe1980/polyalloc/partition"
	"github.com/hupe1980/polyalloc/resource"
)

// DB ties a catalog to its adapters and runs DDL transactions against it.
//
// A DB has a single writer: Exec calls are serialized. Snapshot may be
// called concurrently with Exec and always returns the last published
// state.
type DB struct {
	mu sync.Mutex

	cat      *catalog.Catalog
	adapters *adapter.Registry
	orch     *ddl.Orchestrator
	caches   *cache.Statement
	bus      *redis.Bus
	unlock   func() error

	metrics MetricsCollector
	logger  *Logger
	closed  bool
}

// Open builds a DB. With WithStore the catalog image CURRENT points to is
// loaded, otherwise the catalog starts empty and lives in memory. Stores that
// implement blobstore.Locker are locked until Close.
func Open(ctx context.Context, opts ...Option) (db *DB, err error) {
	o := applyOptions(opts)

	var unlock func() error
	if l, ok := o.store.(blobstore.Locker); ok {
		if unlock, err = l.Lock(); err != nil {
			return nil, fmt.Errorf("lock store: %w", err)
		}
		defer func() {
			if err != nil {
				_ = unlock()
			}
		}()
	}

	catOpts := []catalog.Option{
		catalog.WithLogger(o.logger.WithComponent("catalog").Logger),
		catalog.WithCodec(o.codec),
		catalog.WithCompression(o.compression),
	}
	var cat *catalog.Catalog
	if o.store != nil {
		cat, err = catalog.Open(ctx, o.store, catOpts...)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
	} else {
		cat = catalog.New(catOpts...)
	}

	db = &DB{
		cat:      cat,
		unlock:   unlock,
		adapters: adapter.NewRegistry(o.adapters...),
		caches:   cache.NewStatement(o.cacheCapacity),
		metrics:  o.metricsCollector,
		logger:   o.logger,
	}
	obs := &observer{metrics: o.metricsCollector, logger: o.logger}

	parts := partition.NewFactory()
	migOpts := []migrate.Option{
		migrate.WithController(resource.NewController(o.resources)),
		migrate.WithPartitions(parts),
		migrate.WithObserver(obs),
		migrate.WithLogger(o.logger.WithComponent("migrate").Logger),
	}
	if o.batchSize > 0 {
		migOpts = append(migOpts, migrate.WithBatchSize(o.batchSize))
	}

	ddlOpts := []ddl.Option{
		ddl.WithLogger(o.logger.WithComponent("ddl").Logger),
		ddl.WithMigrator(migrate.New(db.adapters, migOpts...)),
		ddl.WithPartitions(parts),
		ddl.WithCaches(db.caches),
		ddl.WithObserver(obs),
	}
	if o.router != nil {
		ddlOpts = append(ddlOpts, ddl.WithRouter(o.router))
	}
	if o.materializer != nil {
		ddlOpts = append(ddlOpts, ddl.WithMaterializer(o.materializer))
	}
	db.orch = ddl.New(cat, db.adapters, ddlOpts...)

	if o.cacheClient != nil {
		busOpts := []redis.Option{
			redis.WithLogger(o.logger.WithComponent("cache").Logger),
			redis.WithVersion(func() uint64 { return cat.Snapshot().Version() }),
		}
		if o.cacheChannel != "" {
			busOpts = append(busOpts, redis.WithChannel(o.cacheChannel))
		}
		db.bus = redis.New(o.cacheClient, db.caches, busOpts...)
		if err := db.bus.Start(ctx); err != nil {
			return nil, fmt.Errorf("start cache bus: %w", err)
		}
	}

	o.logger.InfoContext(ctx, "polyalloc opened",
		"adapters", len(db.adapters.IDs()),
		"version", cat.Snapshot().Version(),
		"persistent", o.store != nil,
	)
	return db, nil
}

// Exec runs fn as one transaction. Every verb fn issues is visible in
// Snapshot as soon as it succeeds; the transaction commits when fn returns
// nil. If fn or the commit fails, the catalog rolls back to the last
// committed state.
func (db *DB) Exec(ctx context.Context, fn func(o *ddl.Orchestrator) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	if err := fn(db.orch); err != nil {
		db.cat.Rollback()
		db.caches.Reset()
		return err
	}

	start := time.Now()
	err := db.cat.Commit(ctx)
	version := db.cat.Snapshot().Version()
	db.metrics.RecordCommit(version, time.Since(start), err)
	db.logger.LogCommit(ctx, version, time.Since(start), err)
	if err != nil {
		db.cat.Rollback()
		db.caches.Reset()
		return err
	}
	return nil
}

// Snapshot returns the last published catalog state.
func (db *DB) Snapshot() *catalog.Snapshot { return db.cat.Snapshot() }

// Catalog returns the underlying catalog.
func (db *DB) Catalog() *catalog.Catalog { return db.cat }

// Adapters returns the adapter registry.
func (db *DB) Adapters() *adapter.Registry { return db.adapters }

// Caches returns the plan and routing caches.
func (db *DB) Caches() *cache.Statement { return db.caches }

// Close stops the cache bus and releases the store lock. Exec fails with ErrClosed afterwards.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var errs []error
	if db.bus != nil {
		errs = append(errs, db.bus.Close())
	}
	if db.unlock != nil {
		errs = append(errs, db.unlock())
	}
	return errors.Join(errs...)
}

// observer forwards verb and migration outcomes to metrics and logs.
type observer struct {
	metrics MetricsCollector
	logger  *Logger
}

func (o *observer) RecordDDL(verb string, d time.Duration, err error) {
	o.metrics.RecordDDL(verb, d, err)
}

func (o *observer) RecordConstraintRejection(verb string) {
	o.metrics.RecordConstraintRejection(verb)
	o.logger.LogConstraintViolation(context.Background(), verb)
}

func (o *observer) RecordMigration(rows int64, d time.Duration, err error) {
	o.metrics.RecordMigration(rows, d, err)
	o.logger.LogMigration(context.Background(), rows, d, err)
}
