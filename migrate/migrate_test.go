package migrate_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/migrate"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/partition"
	"github.com/hupe1980/polyalloc/resource"
	"github.com/hupe1980/polyalloc/testutil"
)

const (
	adapterX model.AdapterID = 1
	adapterY model.AdapterID = 2
	adapterZ model.AdapterID = 3
)

type countingObserver struct {
	rows  int64
	calls int
	errs  int
}

func (o *countingObserver) RecordMigration(rows int64, _ time.Duration, err error) {
	o.calls++
	o.rows += rows
	if err != nil {
		o.errs++
	}
}

func setup(t *testing.T, opts ...migrate.Option) (*testutil.Fixture, *allocation.Manager) {
	t.Helper()
	f := testutil.NewFixture(t, adapterX, adapterY, adapterZ)
	mg := migrate.New(f.Registry, opts...)
	return f, allocation.NewManager(f.Catalog, f.Registry, allocation.WithMigrator(mg))
}

func place(t *testing.T, m *allocation.Manager, entity model.EntityID, a model.AdapterID, columns ...model.ColumnID) catalog.AllocationPlacement {
	t.Helper()
	p, err := m.AddPlacement(context.Background(), allocation.PlacementSpec{
		Entity:  entity,
		Adapter: a,
		Columns: columns,
		Type:    model.Manual,
	})
	require.NoError(t, err)
	return p
}

func seed(t *testing.T, f *testutil.Fixture, p catalog.AllocationPlacement, rows []adapter.Row) catalog.AllocationEntity {
	t.Helper()
	v := f.Catalog.Working()
	allocs := v.AllocationsOfPlacement(p.ID)
	require.Len(t, allocs, 1)
	tb, err := adapter.TableFor(v, allocs[0])
	require.NoError(t, err)
	require.NoError(t, f.Stores[p.AdapterID].WriteRows(context.Background(), tb, rows))
	return allocs[0]
}

func onlyAlloc(t *testing.T, f *testutil.Fixture, p catalog.AllocationPlacement) catalog.AllocationEntity {
	t.Helper()
	allocs := f.Catalog.Working().AllocationsOfPlacement(p.ID)
	require.Len(t, allocs, 1)
	return allocs[0]
}

func TestCopyData_FullPlacement(t *testing.T) {
	obs := &countingObserver{}
	rc := resource.NewController(resource.Config{MaxBufferedRows: 8, MaxParallelReads: 2})
	f, m := setup(t, migrate.WithController(rc), migrate.WithBatchSize(3), migrate.WithObserver(obs))
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("name"), testutil.Varchar("city"))

	px := place(t, m, tb.Entity.ID, adapterX)
	rows := testutil.NewRNG(1).Rows(tb.Columns, 20)
	seed(t, f, px, rows)

	py := place(t, m, tb.Entity.ID, adapterY)
	got := f.Stores[adapterY].Rows(onlyAlloc(t, f, py).ID)
	assert.ElementsMatch(t, rows, got)
	assert.Equal(t, int64(20), obs.rows)
	assert.Zero(t, obs.errs)
	assert.Zero(t, rc.BufferedRows())
}

func TestCopyData_MergesVerticalPartitions(t *testing.T) {
	f, m := setup(t)
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("name"), testutil.Varchar("city"))
	id, name, city := tb.Columns[0].ID, tb.Columns[1].ID, tb.Columns[2].ID

	// The vertical partitions are laid out without copying; neither holds
	// the other's column.
	layout := allocation.NewManager(f.Catalog, f.Registry)
	px := place(t, layout, tb.Entity.ID, adapterX, name)
	py := place(t, layout, tb.Entity.ID, adapterY, city)
	seed(t, f, px, []adapter.Row{
		{id: int64(1), name: "ada"},
		{id: int64(2), name: "bob"},
	})
	seed(t, f, py, []adapter.Row{
		{id: int64(2), city: "oslo"},
		{id: int64(1), city: "rome"},
	})

	pz := place(t, m, tb.Entity.ID, adapterZ)
	got := f.Stores[adapterZ].Rows(onlyAlloc(t, f, pz).ID)
	assert.ElementsMatch(t, []adapter.Row{
		{id: int64(1), name: "ada", city: "rome"},
		{id: int64(2), name: "bob", city: "oslo"},
	}, got)
}

func TestMergeRows(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	f, m := setup(t, migrate.WithObserver(obs))
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("name"), testutil.Varchar("city"))
	id, name, city := tb.Columns[0].ID, tb.Columns[1].ID, tb.Columns[2].ID

	layout := allocation.NewManager(f.Catalog, f.Registry)
	ax := seed(t, f, place(t, layout, tb.Entity.ID, adapterX, name), []adapter.Row{{id: int64(1), name: "ada"}})
	ay := seed(t, f, place(t, layout, tb.Entity.ID, adapterY, city), []adapter.Row{{id: int64(1), city: "rome"}})
	az := onlyAlloc(t, f, place(t, m, tb.Entity.ID, adapterZ))

	snap := f.Catalog.Working()
	tz, err := adapter.TableFor(snap, az)
	require.NoError(t, err)
	require.NoError(t, f.Stores[adapterZ].Truncate(ctx, tz))
	obs.rows = 0

	mg := migrate.New(f.Registry, migrate.WithObserver(obs))
	require.NoError(t, mg.MergeRows(ctx, snap, []catalog.AllocationEntity{ax, ay}, az))
	assert.Equal(t, []adapter.Row{{id: int64(1), name: "ada", city: "rome"}}, f.Stores[adapterZ].Rows(az.ID))
	assert.Equal(t, int64(1), obs.rows)

	t.Run("keyless partial sources", func(t *testing.T) {
		f, m := setup(t)
		tb := f.Table(t, "nokey", testutil.Int("id"), testutil.Varchar("name"))
		pk, err := f.Catalog.Working().PrimaryKey(tb.Entity.ID)
		require.NoError(t, err)
		require.NoError(t, f.Catalog.DeleteKey(pk.ID))

		place(t, m, tb.Entity.ID, adapterX)
		ay := onlyAlloc(t, f, place(t, m, tb.Entity.ID, adapterY, tb.Columns[1].ID))
		az := onlyAlloc(t, f, place(t, m, tb.Entity.ID, adapterZ))
		err = migrate.New(f.Registry).MergeRows(ctx, f.Catalog.Working(), []catalog.AllocationEntity{ay}, az)
		assert.ErrorIs(t, err, allocation.ErrMissingKey)
	})
}

func TestCopyData_ColumnPlacement(t *testing.T) {
	f, m := setup(t)
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("name"))
	id, name := tb.Columns[0].ID, tb.Columns[1].ID

	px := place(t, m, tb.Entity.ID, adapterX)
	py := place(t, m, tb.Entity.ID, adapterY, id)
	seed(t, f, px, []adapter.Row{{id: int64(7), name: "eve"}})

	require.NoError(t, m.AddColumnPlacement(context.Background(), tb.Entity.ID, name, adapterY, model.Manual))
	got := f.Stores[adapterY].Rows(onlyAlloc(t, f, py).ID)
	assert.Equal(t, []adapter.Row{{id: int64(7), name: "eve"}}, got)
}

func TestCopyData_NoSource(t *testing.T) {
	f := testutil.NewFixture(t, adapterX, adapterY)
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("name"))
	m := allocation.NewManager(f.Catalog, f.Registry)
	place(t, m, tb.Entity.ID, adapterY, tb.Columns[0].ID)

	// X is placed without copying, then asked to receive a column that no
	// other placement holds.
	px := place(t, m, tb.Entity.ID, adapterX)
	mg := migrate.New(f.Registry)
	err := mg.CopyData(context.Background(), f.Catalog.Working(), []catalog.AllocationEntity{onlyAlloc(t, f, px)}, []model.ColumnID{tb.Columns[1].ID})
	require.ErrorIs(t, err, migrate.ErrNoSource)
}

func TestCopyData_WriteFailure(t *testing.T) {
	obs := &countingObserver{}
	f, m := setup(t, migrate.WithObserver(obs))
	tb := f.Table(t, "t", testutil.Int("id"))
	px := place(t, m, tb.Entity.ID, adapterX)
	seed(t, f, px, []adapter.Row{{tb.Columns[0].ID: int64(1)}})

	boom := errors.New("boom")
	f.Stores[adapterY].FailOn("write", boom)
	_, err := m.AddPlacement(context.Background(), allocation.PlacementSpec{Entity: tb.Entity.ID, Adapter: adapterY})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, obs.errs)
}

func TestCopyDocData(t *testing.T) {
	f, m := setup(t)
	coll := f.Collection(t, "c")
	px := place(t, m, coll.Entity.ID, adapterX)
	src := onlyAlloc(t, f, px)

	docs := testutil.NewRNG(2).Documents(5)
	require.NoError(t, f.Stores[adapterX].InsertDocuments(context.Background(), src, docs))

	py := place(t, m, coll.Entity.ID, adapterY)
	assert.ElementsMatch(t, docs, f.Stores[adapterY].Documents(onlyAlloc(t, f, py).ID))
}

func TestCopyGraphData(t *testing.T) {
	f, m := setup(t)
	g := f.Graph(t, "g")
	px := place(t, m, g.Entity.ID, adapterX)
	src := onlyAlloc(t, f, px)

	nodes := []adapter.Node{
		{ID: "a", Labels: []string{"Person"}, Props: map[string]any{"name": "ada"}},
		{ID: "b", Labels: []string{"Person"}, Props: map[string]any{"name": "bob"}},
	}
	edges := []adapter.Edge{{ID: "e1", Label: "KNOWS", Source: "a", Target: "b"}}
	require.NoError(t, f.Stores[adapterX].InsertGraph(context.Background(), src, nodes, edges))

	py := place(t, m, g.Entity.ID, adapterY)
	n, e := f.Stores[adapterY].Graph(onlyAlloc(t, f, py).ID)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, e)
}

func TestCopyAllocationData_Hash(t *testing.T) {
	f, m := setup(t)
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("name"))
	px := place(t, m, tb.Entity.ID, adapterX)
	old := seed(t, f, px, testutil.NewRNG(3).Rows(tb.Columns, 40))

	var (
		groups []model.GroupID
		parts  []model.PartitionID
	)
	for i := range 4 {
		g, err := f.Catalog.AddGroup(catalog.AllocationPartitionGroup{EntityID: tb.Entity.ID, Name: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
		p, err := f.Catalog.AddPartition(catalog.AllocationPartition{GroupID: g.ID, Name: g.Name})
		require.NoError(t, err)
		groups = append(groups, g.ID)
		parts = append(parts, p.ID)
	}
	prop := catalog.PartitionProperty{
		EntityID:     tb.Entity.ID,
		Type:         model.PartitionHash,
		ColumnID:     tb.Columns[0].ID,
		GroupIDs:     groups,
		PartitionIDs: parts,
	}
	require.NoError(t, f.Catalog.SetProperty(prop))

	ctx := context.Background()
	targets, err := m.Allocate(ctx, []catalog.AllocationPlacement{px}, parts)
	require.NoError(t, err)
	require.Len(t, targets, 4)

	v := f.Catalog.Working()
	mg := migrate.New(f.Registry, migrate.WithPartitions(partition.NewFactory()))
	require.NoError(t, mg.CopyAllocationData(ctx, v, []catalog.AllocationEntity{old}, targets, prop))

	total := 0
	for _, a := range targets {
		rows := f.Stores[adapterX].Rows(a.ID)
		total += len(rows)
		for _, r := range rows {
			pid, err := partition.Route(v, prop, r[tb.Columns[0].ID])
			require.NoError(t, err)
			assert.Equal(t, a.PartitionID, pid)
		}
	}
	assert.Equal(t, 40, total)
}
