package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/partition"
	"github.com/hupe1980/polyalloc/resource"
)

// DefaultBatchSize is the number of rows written per adapter call.
const DefaultBatchSize = 500

// ErrNoSource is returned when no other placement holds a needed column of a
// partition.
var ErrNoSource = errors.New("no source allocation")

// Observer receives the outcome of every copy.
type Observer interface {
	RecordMigration(rows int64, d time.Duration, err error)
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithController throttles copies with rc.
func WithController(rc *resource.Controller) Option {
	return func(m *Migrator) {
		m.rc = rc
	}
}

// WithBatchSize sets the number of rows per write.
func WithBatchSize(n int) Option {
	return func(m *Migrator) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithPartitions sets the factory used to route rows.
func WithPartitions(f *partition.Factory) Option {
	return func(m *Migrator) {
		m.partitions = f
	}
}

// WithObserver reports every copy to o.
func WithObserver(o Observer) Option {
	return func(m *Migrator) {
		m.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// Migrator copies rows, documents and graph elements between allocations.
type Migrator struct {
	adapters   *adapter.Registry
	partitions *partition.Factory
	rc         *resource.Controller
	batchSize  int
	observer   Observer
	logger     *slog.Logger
}

// New returns a migrator reading and writing through adapters.
func New(adapters *adapter.Registry, opts ...Option) *Migrator {
	m := &Migrator{
		adapters:   adapters,
		partitions: partition.NewFactory(),
		batchSize:  DefaultBatchSize,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ allocation.Migrator = (*Migrator)(nil)

// CopyData fills targets with columns from the other placements holding the
// same partitions. Documents and graphs are copied whole and ignore columns.
func (m *Migrator) CopyData(ctx context.Context, snap *catalog.Snapshot, targets []catalog.AllocationEntity, columns []model.ColumnID) error {
	for _, t := range targets {
		var err error
		switch t.Model {
		case model.Document:
			err = m.copyFromPeer(ctx, snap, t, m.CopyDocData)
		case model.Graph:
			err = m.copyFromPeer(ctx, snap, t, m.CopyGraphData)
		default:
			err = m.copyRows(ctx, snap, t, columns)
		}
		if err != nil {
			return fmt.Errorf("copy into %s: %w", t.PhysicalName(), err)
		}
	}
	return nil
}

func (m *Migrator) copyFromPeer(ctx context.Context, snap *catalog.Snapshot, target catalog.AllocationEntity,
	copyFn func(context.Context, catalog.AllocationEntity, catalog.AllocationEntity) error) error {
	for _, src := range snap.AllocationsOfPartition(target.PartitionID) {
		if src.PlacementID != target.PlacementID {
			return copyFn(ctx, src, target)
		}
	}
	return nil
}

// source is one allocation read for a copy and the columns taken from it.
type source struct {
	alloc   catalog.AllocationEntity
	table   adapter.Table
	columns []model.ColumnID
}

func (m *Migrator) copyRows(ctx context.Context, snap *catalog.Snapshot, target catalog.AllocationEntity, columns []model.ColumnID) error {
	tt, err := adapter.TableFor(snap, target)
	if err != nil {
		return err
	}
	wanted := make([]model.ColumnID, 0, len(columns)+len(tt.PrimaryKey))
	for _, c := range append(slices.Clone(tt.PrimaryKey), columns...) {
		if _, ok := tt.Column(c); ok && !slices.Contains(wanted, c) {
			wanted = append(wanted, c)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	sources, err := pickSources(snap, target, wanted, tt.PrimaryKey)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}
	// Without a primary key, rows can neither be merged across sources nor
	// aligned with rows the target already holds.
	if len(tt.PrimaryKey) == 0 && (len(sources) > 1 || len(wanted) < len(tt.Columns)) {
		return allocation.ErrMissingKey
	}

	start := time.Now()
	rows, err := m.readMerged(ctx, sources, tt.PrimaryKey)
	if err == nil {
		err = m.write(ctx, tt, rows)
	}
	m.observe(int64(len(rows)), start, err)
	return err
}

// pickSources assigns every wanted column to the first other placement
// holding it, preferring placements that hold more of the wanted columns.
func pickSources(snap *catalog.Snapshot, target catalog.AllocationEntity, wanted, pk []model.ColumnID) ([]source, error) {
	var candidates []source
	for _, a := range snap.AllocationsOfPartition(target.PartitionID) {
		if a.PlacementID == target.PlacementID {
			continue
		}
		t, err := adapter.TableFor(snap, a)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, source{alloc: a, table: t})
	}
	held := func(s source) int {
		n := 0
		for _, c := range wanted {
			if _, ok := s.table.Column(c); ok {
				n++
			}
		}
		return n
	}
	slices.SortStableFunc(candidates, func(a, b source) int { return held(b) - held(a) })

	var picked []source
	for _, c := range wanted {
		if slices.Contains(pk, c) {
			continue
		}
		found := false
		for i := range candidates {
			if _, ok := candidates[i].table.Column(c); ok {
				candidates[i].columns = append(candidates[i].columns, c)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: column %d, partition %d", ErrNoSource, c, target.PartitionID)
		}
	}
	for _, s := range candidates {
		if len(s.columns) > 0 || (len(picked) == 0 && len(wanted) == len(pk)) {
			s.columns = append(slices.Clone(pk), s.columns...)
			picked = append(picked, s)
		}
	}
	return picked, nil
}

// readMerged reads every source concurrently and merges rows by key in
// first-seen order.
func (m *Migrator) readMerged(ctx context.Context, sources []source, pk []model.ColumnID) ([]adapter.Row, error) {
	var (
		mu     sync.Mutex
		merged = make(map[string]adapter.Row)
		order  []string
		plain  []adapter.Row
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sources {
		g.Go(func() error {
			if err := m.rc.AcquireRead(gctx); err != nil {
				return err
			}
			defer m.rc.ReleaseRead()

			ds, err := m.reader(s.alloc.AdapterID)
			if err != nil {
				return err
			}
			t := s.table
			t.Columns = project(t.Columns, s.columns)
			return ds.ScanRows(gctx, t, func(r adapter.Row) error {
				mu.Lock()
				defer mu.Unlock()
				if len(pk) == 0 {
					plain = append(plain, r)
					return nil
				}
				key := adapter.RowKey(r, pk)
				if cur, ok := merged[key]; ok {
					for c, v := range r {
						cur[c] = v
					}
					return nil
				}
				merged[key] = r
				order = append(order, key)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(pk) == 0 {
		return plain, nil
	}
	rows := make([]adapter.Row, len(order))
	for i, k := range order {
		rows[i] = merged[k]
	}
	return rows, nil
}

func (m *Migrator) reader(id model.AdapterID) (adapter.RowReader, error) {
	if ds, err := m.adapters.DataStore(id); err == nil {
		return ds, nil
	}
	return m.adapters.DataSource(id)
}

func (m *Migrator) write(ctx context.Context, t adapter.Table, rows []adapter.Row) error {
	ds, err := m.adapters.DataStore(t.Alloc.AdapterID)
	if err != nil {
		return err
	}
	w := resource.NewThrottledWriter(ds, m.rc)
	for batch := range slices.Chunk(rows, m.batchSize) {
		if err := m.rc.AcquireRows(ctx, int64(len(batch))); err != nil {
			return err
		}
		err := w.WriteRows(ctx, t, batch)
		m.rc.ReleaseRows(int64(len(batch)))
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) observe(rows int64, start time.Time, err error) {
	if m.observer != nil {
		m.observer.RecordMigration(rows, time.Since(start), err)
	}
}

func project(columns []adapter.Column, keep []model.ColumnID) []adapter.Column {
	out := make([]adapter.Column, 0, len(keep))
	for _, c := range columns {
		if slices.Contains(keep, c.ID) {
			out = append(out, c)
		}
	}
	return out
}
