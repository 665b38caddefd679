package ddl_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/ddl"
	"github.com/hupe1980/polyalloc/index"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/partition"
	"github.com/hupe1980/polyalloc/testutil"
)

const (
	adapterX model.AdapterID = 1
	adapterY model.AdapterID = 2
)

type recorder struct {
	verbs      []string
	failures   int
	rejections int
}

func (r *recorder) RecordDDL(verb string, _ time.Duration, err error) {
	r.verbs = append(r.verbs, verb)
	if err != nil {
		r.failures++
	}
}

func (r *recorder) RecordConstraintRejection(string) { r.rejections++ }

func setup(t *testing.T, opts ...ddl.Option) (*testutil.Fixture, *ddl.Orchestrator) {
	t.Helper()
	f := testutil.NewFixture(t, adapterX, adapterY)
	return f, ddl.New(f.Catalog, f.Registry, opts...)
}

func tableSpec(name string, adapters ...model.AdapterID) ddl.TableSpec {
	return ddl.TableSpec{
		Namespace: "public",
		Name:      name,
		Columns: []ddl.ColumnSpec{
			{Name: "c1", Type: model.TypeInteger},
			{Name: "c2", Type: model.TypeVarchar, Nullable: true},
			{Name: "c3", Type: model.TypeVarchar, Nullable: true},
		},
		PrimaryKey: []string{"c1"},
		Adapters:   adapters,
	}
}

func createTable(t *testing.T, o *ddl.Orchestrator, name string, adapters ...model.AdapterID) catalog.LogicalEntity {
	t.Helper()
	e, err := o.CreateTable(context.Background(), tableSpec(name, adapters...))
	require.NoError(t, err)
	return e
}

// insert writes rows to every allocation of the entity.
func insert(t *testing.T, f *testutil.Fixture, e catalog.LogicalEntity, rows []adapter.Row) {
	t.Helper()
	v := f.Catalog.Working()
	for _, a := range v.Allocations(e.ID) {
		tb, err := adapter.TableFor(v, a)
		require.NoError(t, err)
		require.NoError(t, f.Stores[a.AdapterID].WriteRows(context.Background(), tb, rows))
	}
}

// stored returns the rows of the entity held on one adapter.
func stored(f *testutil.Fixture, e catalog.LogicalEntity, id model.AdapterID) []adapter.Row {
	var rows []adapter.Row
	for _, a := range f.Catalog.Snapshot().Allocations(e.ID) {
		if a.AdapterID == id {
			rows = append(rows, f.Stores[id].Rows(a.ID)...)
		}
	}
	return rows
}

func columns(t *testing.T, f *testutil.Fixture, e catalog.LogicalEntity) []catalog.LogicalColumn {
	t.Helper()
	cols := f.Catalog.Working().Columns(e.ID)
	require.NotEmpty(t, cols)
	return cols
}

func adaptersOf(v *catalog.Snapshot, e catalog.LogicalEntity) []model.AdapterID {
	var ids []model.AdapterID
	for _, p := range v.Placements(e.ID) {
		ids = append(ids, p.AdapterID)
	}
	slices.Sort(ids)
	return ids
}

func TestCreateTable(t *testing.T) {
	ctx := context.Background()
	obs := &recorder{}
	f, o := setup(t, ddl.WithObserver(obs))

	e := createTable(t, o, "t", adapterX, adapterY)

	snap := f.Catalog.Snapshot()
	got, err := snap.EntityByName(f.Namespace.ID, "t")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, []model.AdapterID{adapterX, adapterY}, adaptersOf(snap, e))
	assert.Len(t, snap.Partitions(e.ID), 1)
	assert.Len(t, snap.Allocations(e.ID), 2)
	prop, err := snap.Property(e.ID)
	require.NoError(t, err)
	assert.False(t, prop.IsPartitioned())
	pk, err := snap.PrimaryKey(e.ID)
	require.NoError(t, err)
	assert.Len(t, pk.ColumnIDs, 1)
	for _, p := range snap.Placements(e.ID) {
		assert.Len(t, snap.AllocColumns(p.ID), 3)
		assert.Equal(t, model.Manual, snap.AllocColumns(p.ID)[0].Type)
	}
	assert.Equal(t, int64(1), o.Caches().Resets())
	assert.Equal(t, []string{"CREATE TABLE"}, obs.verbs)

	t.Run("router picks adapters", func(t *testing.T) {
		e := createTable(t, o, "routed")
		v := f.Catalog.Snapshot()
		assert.Equal(t, []model.AdapterID{adapterX}, adaptersOf(v, e))
		assert.Equal(t, model.Automatic, v.AllocColumns(v.Placements(e.ID)[0].ID)[0].Type)
	})

	t.Run("duplicate name", func(t *testing.T) {
		before := f.Catalog.Snapshot()
		_, err := o.CreateTable(ctx, tableSpec("t"))
		assert.ErrorIs(t, err, catalog.ErrAlreadyExists)
		assert.Same(t, before, f.Catalog.Snapshot())
	})

	t.Run("duplicate column", func(t *testing.T) {
		spec := tableSpec("dup")
		spec.Columns = append(spec.Columns, ddl.ColumnSpec{Name: "C2", Type: model.TypeInteger})
		_, err := o.CreateTable(ctx, spec)
		assert.ErrorIs(t, err, catalog.ErrAlreadyExists)
	})

	t.Run("wrong namespace model", func(t *testing.T) {
		spec := tableSpec("x")
		spec.Namespace = "docs"
		_, err := o.CreateTable(ctx, spec)
		assert.ErrorIs(t, err, ddl.ErrModelMismatch)
	})

	t.Run("unknown primary key column", func(t *testing.T) {
		spec := tableSpec("nopk")
		spec.PrimaryKey = []string{"missing"}
		_, err := o.CreateTable(ctx, spec)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	var verr *ddl.VerbError
	_, err = o.CreateTable(ctx, tableSpec("t"))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "CREATE TABLE", verr.Verb)
	assert.NotEmpty(t, verr.Statement)
}

func TestCreateTable_DeferredPrimaryKey(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)

	spec := tableSpec("t", adapterX)
	spec.PrimaryKey = nil
	_, err := o.CreateTable(ctx, spec)
	require.NoError(t, err)

	err = f.Catalog.Commit(ctx)
	require.ErrorIs(t, err, catalog.ErrCommitConstraint)
	assert.Contains(t, err.Error(), "has no primary key")

	require.NoError(t, o.AddPrimaryKey(ctx, "public", "t", []string{"c1"}))
	require.NoError(t, f.Catalog.Commit(ctx))

	err = o.AddPrimaryKey(ctx, "public", "t", []string{"c2"})
	assert.ErrorIs(t, err, catalog.ErrAlreadyExists)
}

func TestAddPrimaryKey_NotOnEveryPlacement(t *testing.T) {
	ctx := context.Background()
	_, o := setup(t)

	spec := tableSpec("t", adapterX)
	spec.PrimaryKey = nil
	_, err := o.CreateTable(ctx, spec)
	require.NoError(t, err)
	require.NoError(t, o.AddPlacement(ctx, ddl.PlacementRequest{
		Namespace: "public", Entity: "t", Adapter: adapterY, Columns: []string{"c1", "c2"},
	}))

	err = o.AddPrimaryKey(ctx, "public", "t", []string{"c3"})
	assert.ErrorIs(t, err, ddl.ErrKeyNotPlaced)
	require.NoError(t, o.AddPrimaryKey(ctx, "public", "t", []string{"c1"}))
}

// A placement can only be dropped while another placement covers every
// column.
func TestDropPlacement_Coverage(t *testing.T) {
	ctx := context.Background()
	obs := &recorder{}
	f, o := setup(t, ddl.WithObserver(obs))

	e := createTable(t, o, "t", adapterX)
	require.NoError(t, o.AddPlacement(ctx, ddl.PlacementRequest{
		Namespace: "public", Entity: "t", Adapter: adapterY, Columns: []string{"c1", "c2"},
	}))

	before := f.Catalog.Snapshot()
	resets := o.Caches().Resets()
	err := o.DropPlacement(ctx, "public", "t", adapterX)
	require.ErrorIs(t, err, allocation.ErrConstraintViolation)
	assert.Same(t, before, f.Catalog.Snapshot())
	assert.Equal(t, resets, o.Caches().Resets())
	assert.Equal(t, []model.AdapterID{adapterX, adapterY}, adaptersOf(f.Catalog.Snapshot(), e))
	assert.Equal(t, 1, obs.rejections)

	require.NoError(t, o.AddColumnPlacement(ctx, "public", "t", "c3", adapterY))
	xAllocs := f.Catalog.Snapshot().AllocationsOnAdapter(adapterX)
	require.NotEmpty(t, xAllocs)

	require.NoError(t, o.DropPlacement(ctx, "public", "t", adapterX))
	snap := f.Catalog.Snapshot()
	assert.Equal(t, []model.AdapterID{adapterY}, adaptersOf(snap, e))
	assert.Empty(t, snap.AllocationsOnAdapter(adapterX))
	for _, a := range xAllocs {
		assert.False(t, f.Stores[adapterX].Has(a.ID))
	}
}

func TestAddPlacement_CopiesData(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)

	e := createTable(t, o, "t", adapterX)
	rows := testutil.NewRNG(1).Rows(columns(t, f, e), 50)
	insert(t, f, e, rows)

	require.NoError(t, o.AddPlacement(ctx, ddl.PlacementRequest{Namespace: "public", Entity: "t", Adapter: adapterY}))
	assert.ElementsMatch(t, rows, stored(f, e, adapterY))

	gaps, err := allocation.CheckCoverage(f.Catalog.Snapshot(), e.ID)
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestAddPlacement_FailedCopyLeavesNoOrphan(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)

	e := createTable(t, o, "t", adapterX)
	insert(t, f, e, testutil.NewRNG(6).Rows(columns(t, f, e), 10))

	boom := errors.New("boom")
	f.Stores[adapterY].FailOn("write", boom)
	err := o.AddPlacement(ctx, ddl.PlacementRequest{Namespace: "public", Entity: "t", Adapter: adapterY})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.Stores[adapterY].Allocations(), "failed copy must not leave a physical table")
	require.Len(t, f.Catalog.Snapshot().Allocations(e.ID), 1)
	before := f.Catalog.Snapshot().Allocations(e.ID)[0].ID

	f.Stores[adapterY].FailOn("write", nil)
	require.NoError(t, o.AddPlacement(ctx, ddl.PlacementRequest{Namespace: "public", Entity: "t", Adapter: adapterY}))

	held := f.Stores[adapterY].Allocations()
	require.Len(t, held, 1)
	assert.Greater(t, held[0], before)
	assert.Len(t, stored(f, e, adapterY), 10)
}

func TestAddColumn(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX, adapterY)

	before := f.Catalog.Snapshot()
	journal := len(f.Catalog.Journal())
	_, err := o.AddColumn(ctx, "public", "t", ddl.ColumnSpec{Name: "c4", Type: model.TypeInteger})
	require.ErrorIs(t, err, ddl.ErrNotNullWithoutDefault)
	assert.Same(t, before, f.Catalog.Snapshot())
	assert.Len(t, f.Catalog.Journal(), journal)
	assert.Len(t, f.Catalog.Working().Columns(e.ID), 3)

	col, err := o.AddColumn(ctx, "public", "t", ddl.ColumnSpec{
		Name:    "c4",
		Type:    model.TypeInteger,
		Default: &catalog.DefaultValue{Type: model.TypeInteger, Value: "0"},
	})
	require.NoError(t, err)
	snap := f.Catalog.Snapshot()
	assert.Len(t, snap.Columns(e.ID), 4)
	placed := snap.ColumnPlacements(col.ID)
	require.Len(t, placed, 2)
	for _, ac := range placed {
		assert.Equal(t, model.Automatic, ac.Type)
	}

	_, err = o.AddColumn(ctx, "public", "t", ddl.ColumnSpec{Name: "C4", Type: model.TypeInteger, Nullable: true})
	assert.ErrorIs(t, err, catalog.ErrAlreadyExists)
}

func TestAddColumn_DefaultFillsExistingRows(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX)
	cols := columns(t, f, e)
	insert(t, f, e, []adapter.Row{{cols[0].ID: int64(1), cols[1].ID: "a"}})

	col, err := o.AddColumn(ctx, "public", "t", ddl.ColumnSpec{
		Name:    "c4",
		Type:    model.TypeInteger,
		Default: &catalog.DefaultValue{Type: model.TypeInteger, Value: "7"},
	})
	require.NoError(t, err)

	rows := stored(f, e, adapterX)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0][col.ID])

	_, err = o.AddColumn(ctx, "public", "t", ddl.ColumnSpec{
		Name:    "c5",
		Type:    model.TypeInteger,
		Default: &catalog.DefaultValue{Type: model.TypeInteger, Value: "seven"},
	})
	assert.ErrorIs(t, err, ddl.ErrInvalidDefinition)
}

func TestDropColumn(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX)

	err := o.DropColumn(ctx, "public", "t", "c1")
	assert.ErrorIs(t, err, catalog.ErrStillReferenced)

	require.NoError(t, o.DropColumn(ctx, "public", "t", "c3"))
	snap := f.Catalog.Snapshot()
	assert.Len(t, snap.Columns(e.ID), 2)
	a := snap.Allocations(e.ID)[0]
	assert.Len(t, f.Stores[adapterX].Columns(a.ID), 2)
}

func TestDropTable_Cascade(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)

	e := createTable(t, o, "t", adapterX, adapterY)
	insert(t, f, e, testutil.NewRNG(2).Rows(columns(t, f, e), 20))
	require.NoError(t, o.AddUniqueConstraint(ctx, "public", "t", "u_c2", []string{"c2"}))
	_, err := o.AddIndex(ctx, ddl.IndexSpec{Namespace: "public", Table: "t", Name: "i_c3", Columns: []string{"c3"}, Location: adapterX})
	require.NoError(t, err)
	_, err = o.AddIndex(ctx, ddl.IndexSpec{Namespace: "public", Table: "t", Name: "p_c2", Columns: []string{"c2"}})
	require.NoError(t, err)
	allocs := f.Catalog.Working().Allocations(e.ID)

	start := len(f.Catalog.Journal())
	require.NoError(t, o.DropTable(ctx, "public", "t"))

	order := map[catalog.Kind]int{
		catalog.KindAllocation:  0,
		catalog.KindAllocColumn: 1,
		catalog.KindPlacement:   2,
		catalog.KindPartition:   3,
		catalog.KindGroup:       4,
		catalog.KindProperty:    5,
		catalog.KindIndex:       6,
		catalog.KindConstraint:  7,
		catalog.KindKey:         8,
		catalog.KindColumn:      9,
		catalog.KindEntity:      10,
	}
	deletions := catalog.Deletions(f.Catalog.Journal()[start:])
	require.NotEmpty(t, deletions)
	seen := make(map[catalog.Kind]bool)
	last := -1
	for _, d := range deletions {
		rank, ok := order[d.Kind]
		require.True(t, ok, d.String())
		assert.GreaterOrEqual(t, rank, last, d.String())
		last = rank
		seen[d.Kind] = true
	}
	assert.Len(t, seen, len(order))

	snap := f.Catalog.Snapshot()
	_, err = snap.EntityByName(f.Namespace.ID, "t")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Empty(t, snap.References(e.ID))
	assert.Empty(t, snap.Allocations(e.ID))
	assert.Empty(t, snap.Placements(e.ID))
	assert.Empty(t, snap.Partitions(e.ID))
	assert.Empty(t, snap.Groups(e.ID))
	assert.Empty(t, snap.Keys(e.ID))
	assert.Empty(t, snap.Indexes(e.ID))
	assert.Empty(t, snap.Constraints(e.ID))
	assert.Empty(t, snap.Columns(e.ID))
	assert.Empty(t, o.Indexes().Indexes())
	for _, a := range allocs {
		assert.False(t, f.Stores[a.AdapterID].Has(a.ID))
	}
}

func TestDropTable_References(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	parent := createTable(t, o, "parent", adapterX)
	createTable(t, o, "child", adapterX)

	fk := ddl.ForeignKeySpec{
		Namespace: "public", Table: "child", Name: "fk_parent",
		Columns: []string{"c2"}, RefTable: "parent", RefColumns: []string{"c2"},
	}
	err := o.AddForeignKey(ctx, fk)
	assert.ErrorIs(t, err, ddl.ErrInvalidDefinition)
	err = o.AddForeignKey(ctx, ddl.ForeignKeySpec{
		Namespace: "public", Table: "child", Name: "fk_other",
		Columns: []string{"c2"}, RefTable: "parent", RefColumns: []string{"c1"},
	})
	assert.ErrorIs(t, err, ddl.ErrInvalidDefinition)
	require.NoError(t, o.AddUniqueConstraint(ctx, "public", "parent", "u_c2", []string{"c2"}))
	require.NoError(t, o.AddForeignKey(ctx, fk))

	_, err = o.CreateView(ctx, ddl.ViewSpec{Namespace: "public", Name: "v", Query: "SELECT * FROM parent", Underlying: []string{"parent"}})
	require.NoError(t, err)

	err = o.DropTable(ctx, "public", "parent")
	assert.ErrorIs(t, err, ddl.ErrDependentView)
	require.NoError(t, o.DropView(ctx, "public", "v"))

	err = o.DropTable(ctx, "public", "parent")
	assert.ErrorIs(t, err, ddl.ErrForeignKeyReference)

	require.NoError(t, o.DropTable(ctx, "public", "child"))
	require.NoError(t, o.DropTable(ctx, "public", "parent"))
	_, err = f.Catalog.Snapshot().Entity(parent.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDropNamespace(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)

	ns, err := o.CreateNamespace(ctx, "shop", model.Relational, false)
	require.NoError(t, err)
	for _, name := range []string{"orders", "items"} {
		spec := tableSpec(name, adapterX)
		spec.Namespace = "shop"
		_, err := o.CreateTable(ctx, spec)
		require.NoError(t, err)
	}
	require.NoError(t, o.AddForeignKey(ctx, ddl.ForeignKeySpec{
		Namespace: "shop", Table: "items", Name: "fk_order",
		Columns: []string{"c1"}, RefTable: "orders", RefColumns: []string{"c1"},
	}))
	_, err = o.CreateView(ctx, ddl.ViewSpec{Namespace: "shop", Name: "all_orders", Underlying: []string{"orders"}})
	require.NoError(t, err)
	_, err = o.CreateView(ctx, ddl.ViewSpec{Namespace: "public", Name: "outside", Underlying: []string{"shop.orders"}})
	require.NoError(t, err)

	err = o.DropNamespace(ctx, "shop")
	require.ErrorIs(t, err, ddl.ErrDependentView)

	require.NoError(t, o.DropView(ctx, "public", "outside"))
	require.NoError(t, o.DropNamespace(ctx, "shop"))

	snap := f.Catalog.Snapshot()
	_, err = snap.NamespaceByName("shop")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Empty(t, snap.Entities(ns.ID))
	assert.Empty(t, f.Stores[adapterX].Allocations())
}

func TestCollectionsAndGraphs(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)

	c, err := o.CreateCollection(ctx, "docs", "events")
	require.NoError(t, err)
	g, err := o.CreateGraph(ctx, "graphs", "social", adapterY)
	require.NoError(t, err)

	snap := f.Catalog.Snapshot()
	assert.Equal(t, []model.AdapterID{adapterX}, adaptersOf(snap, c))
	assert.Equal(t, []model.AdapterID{adapterY}, adaptersOf(snap, g))

	docs := testutil.NewRNG(3).Documents(10)
	a := snap.Allocations(c.ID)[0]
	ds, err := f.Registry.DocumentStore(adapterX)
	require.NoError(t, err)
	require.NoError(t, ds.InsertDocuments(ctx, a, docs))

	require.NoError(t, o.AddPlacement(ctx, ddl.PlacementRequest{Namespace: "docs", Entity: "events", Adapter: adapterY}))
	for _, a := range f.Catalog.Snapshot().Allocations(c.ID) {
		assert.Len(t, f.Stores[a.AdapterID].Documents(a.ID), 10)
	}
	err = o.DropPlacement(ctx, "graphs", "social", adapterY)
	assert.ErrorIs(t, err, allocation.ErrConstraintViolation)

	require.NoError(t, o.Truncate(ctx, "docs", "events"))
	for _, a := range f.Catalog.Snapshot().Allocations(c.ID) {
		assert.Empty(t, f.Stores[a.AdapterID].Documents(a.ID))
	}

	err = o.DropTable(ctx, "docs", "events")
	assert.ErrorIs(t, err, ddl.ErrModelMismatch)
	require.NoError(t, o.DropCollection(ctx, "docs", "events"))
	require.NoError(t, o.DropGraph(ctx, "graphs", "social"))
	assert.Empty(t, f.Stores[adapterX].Allocations())
	assert.Empty(t, f.Stores[adapterY].Allocations())
}

func TestPartition_HashRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)

	e := createTable(t, o, "t", adapterX, adapterY)
	rows := testutil.NewRNG(4).Rows(columns(t, f, e), 100)
	insert(t, f, e, rows)
	_, err := o.AddIndex(ctx, ddl.IndexSpec{Namespace: "public", Table: "t", Name: "i_c2", Columns: []string{"c2"}, Location: adapterX})
	require.NoError(t, err)

	require.NoError(t, o.CreateTablePartition(ctx, ddl.PartitionSpec{
		Namespace: "public", Table: "t", Type: model.PartitionHash, Column: "c1", PartitionCount: 4,
	}))

	snap := f.Catalog.Snapshot()
	prop, err := snap.Property(e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PartitionHash, prop.Type)
	assert.Len(t, prop.PartitionIDs, 4)
	assert.Len(t, snap.Partitions(e.ID), 4)
	assert.Len(t, snap.Groups(e.ID), 4)
	assert.Len(t, snap.Allocations(e.ID), 8)
	for _, id := range []model.AdapterID{adapterX, adapterY} {
		assert.ElementsMatch(t, rows, stored(f, e, id))
	}
	for _, a := range snap.AllocationsOnAdapter(adapterX) {
		assert.Len(t, f.Stores[adapterX].Indexes(a.ID), 1)
		for _, r := range f.Stores[adapterX].Rows(a.ID) {
			pid, err := partition.Route(snap, prop, r[prop.ColumnID])
			require.NoError(t, err)
			assert.Equal(t, a.PartitionID, pid)
		}
	}

	err = o.CreateTablePartition(ctx, ddl.PartitionSpec{
		Namespace: "public", Table: "t", Type: model.PartitionHash, Column: "c1", PartitionCount: 2,
	})
	assert.ErrorIs(t, err, ddl.ErrAlreadyPartitioned)

	// Y keeps only half of the partitions; the merge fills in the rest.
	require.NoError(t, o.ModifyPartitionPlacement(ctx, "public", "t", adapterY, []string{"part_0", "part_1"}))

	require.NoError(t, o.DropTablePartition(ctx, "public", "t"))
	snap = f.Catalog.Snapshot()
	prop, err = snap.Property(e.ID)
	require.NoError(t, err)
	assert.False(t, prop.IsPartitioned())
	assert.Len(t, snap.Partitions(e.ID), 1)
	assert.Len(t, snap.Allocations(e.ID), 2)
	for _, id := range []model.AdapterID{adapterX, adapterY} {
		assert.ElementsMatch(t, rows, stored(f, e, id))
	}
	assert.Len(t, f.Stores[adapterX].Allocations(), 1)

	err = o.DropTablePartition(ctx, "public", "t")
	assert.ErrorIs(t, err, ddl.ErrNotPartitioned)
}

func TestPartition_Temperature(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX)

	require.NoError(t, o.CreateTablePartition(ctx, ddl.PartitionSpec{
		Namespace:      "public",
		Table:          "t",
		Type:           model.PartitionTemperature,
		Column:         "c1",
		PartitionCount: 10,
		Temperature: &partition.TemperatureRequest{
			Interval: 2,
			Unit:     model.Days,
			HotIn:    20,
			HotOut:   30,
		},
	}))

	snap := f.Catalog.Snapshot()
	prop, err := snap.Property(e.ID)
	require.NoError(t, err)
	require.NotNil(t, prop.Temperature)
	assert.True(t, prop.ReliesOnPeriodicChecks)
	assert.Equal(t, int64(172800), prop.Temperature.FrequencyInterval)
	assert.Len(t, snap.PartitionsInGroup(prop.Temperature.HotGroupID), 2)
	assert.Len(t, snap.PartitionsInGroup(prop.Temperature.ColdGroupID), 8)
	assert.Len(t, snap.Allocations(e.ID), 10)
}

func TestPartition_InvalidColumn(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	createTable(t, o, "t", adapterX)

	before := f.Catalog.Snapshot()
	err := o.CreateTablePartition(ctx, ddl.PartitionSpec{
		Namespace: "public", Table: "t", Type: model.PartitionRange, Column: "c2",
		GroupNames: []string{"low"}, Qualifiers: [][]string{{"0", "10"}},
	})
	assert.ErrorIs(t, err, partition.ErrUnsupportedColumn)
	assert.Same(t, before, f.Catalog.Snapshot())
}

func TestIndexes(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX)
	cols := columns(t, f, e)
	insert(t, f, e, []adapter.Row{
		{cols[0].ID: int64(1), cols[1].ID: "a", cols[2].ID: "x"},
		{cols[0].ID: int64(2), cols[1].ID: "b", cols[2].ID: "x"},
		{cols[0].ID: int64(3), cols[1].ID: "a", cols[2].ID: "y"},
	})

	li, err := o.AddIndex(ctx, ddl.IndexSpec{Namespace: "public", Table: "t", Name: "by_c2", Columns: []string{"c2"}})
	require.NoError(t, err)
	assert.True(t, li.IsPolystore())
	keys, err := o.Indexes().Lookup(li.ID, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{adapter.ValuesKey(int64(1)), adapter.ValuesKey(int64(3))}, keys)
	assert.Len(t, f.Catalog.Snapshot().Keys(e.ID), 2)

	_, err = o.AddIndex(ctx, ddl.IndexSpec{Namespace: "public", Table: "t", Name: "u_c3", Columns: []string{"c3"}, Unique: true})
	assert.ErrorIs(t, err, index.ErrDuplicateKey)
	assert.Len(t, f.Catalog.Working().Keys(e.ID), 2)

	_, err = o.AddIndex(ctx, ddl.IndexSpec{Namespace: "public", Table: "t", Name: "on_y", Columns: []string{"c2"}, Location: adapterY})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, o.DropIndex(ctx, "public", "t", "by_c2"))
	assert.Empty(t, o.Indexes().Indexes())
	assert.Len(t, f.Catalog.Snapshot().Keys(e.ID), 1)
}

func TestMaterializedView(t *testing.T) {
	ctx := context.Background()
	calls := 0
	mat := ddl.MaterializerFunc(func(_ context.Context, snap *catalog.Snapshot, view catalog.LogicalEntity) ([]adapter.Row, error) {
		calls++
		cols := snap.Columns(view.ID)
		rows := make([]adapter.Row, calls)
		for i := range rows {
			rows[i] = adapter.Row{cols[0].ID: fmt.Sprintf("r%d", i)}
		}
		return rows, nil
	})
	f, o := setup(t, ddl.WithMaterializer(mat))
	createTable(t, o, "t", adapterX)

	spec := ddl.ViewSpec{
		Namespace:  "public",
		Name:       "mv",
		Query:      "SELECT c2 FROM t",
		Underlying: []string{"t"},
		Columns:    []ddl.ColumnSpec{{Name: "c2", Type: model.TypeVarchar, Nullable: true}},
		Adapters:   []model.AdapterID{adapterY},
	}
	mv, err := o.CreateMaterializedView(ctx, spec)
	require.NoError(t, err)
	assert.False(t, mv.Modifiable)
	assert.Len(t, stored(f, mv, adapterY), 1)

	require.NoError(t, o.RefreshMaterializedView(ctx, "public", "mv"))
	assert.Len(t, stored(f, mv, adapterY), 2)

	err = o.Truncate(ctx, "public", "mv")
	assert.ErrorIs(t, err, ddl.ErrNotModifiable)
	err = o.RefreshMaterializedView(ctx, "public", "t")
	assert.ErrorIs(t, err, ddl.ErrInvalidDefinition)
	err = o.DropTable(ctx, "public", "t")
	assert.ErrorIs(t, err, ddl.ErrDependentView)

	require.NoError(t, o.DropMaterializedView(ctx, "public", "mv"))
	assert.Empty(t, f.Stores[adapterY].Allocations())
	require.NoError(t, o.DropTable(ctx, "public", "t"))
}

func TestRenameAndTruncate(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX)
	insert(t, f, e, testutil.NewRNG(5).Rows(columns(t, f, e), 10))

	require.NoError(t, o.RenameTable(ctx, "public", "t", "renamed"))
	got, err := f.Catalog.Snapshot().EntityByName(f.Namespace.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	require.NoError(t, o.Truncate(ctx, "public", "renamed"))
	assert.Empty(t, stored(f, e, adapterX))
}

func TestModifyPlacement(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX, adapterY)

	require.NoError(t, o.ModifyPlacement(ctx, "public", "t", adapterY, []string{"c2"}))
	snap := f.Catalog.Snapshot()
	p, err := snap.PlacementFor(e.ID, adapterY)
	require.NoError(t, err)
	assert.Len(t, snap.AllocColumns(p.ID), 2)

	err = o.ModifyPlacement(ctx, "public", "t", adapterX, []string{"c2"})
	assert.ErrorIs(t, err, allocation.ErrLastPlacement)

	require.NoError(t, o.DropColumnPlacement(ctx, "public", "t", "c2", adapterY))
	err = o.DropColumnPlacement(ctx, "public", "t", "c1", adapterY)
	assert.ErrorIs(t, err, allocation.ErrPrimaryKeyPlacement)
}

func TestRemoveAdapter(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	e := createTable(t, o, "t", adapterX, adapterY)
	createTable(t, o, "only_y", adapterY)

	err := o.RemoveAdapter(ctx, adapterY)
	require.ErrorIs(t, err, allocation.ErrConstraintViolation)
	_, err = f.Registry.Get(adapterY)
	require.NoError(t, err)

	require.NoError(t, o.RemoveAdapter(ctx, adapterX))
	_, err = f.Registry.Get(adapterX)
	assert.Error(t, err)
	assert.Equal(t, []model.AdapterID{adapterY}, adaptersOf(f.Catalog.Snapshot(), e))
	assert.Empty(t, f.Stores[adapterX].Allocations())
}

func TestCacheResetPerVerb(t *testing.T) {
	ctx := context.Background()
	_, o := setup(t)
	reset := 0
	o.Caches().OnReset(func() { reset++ })

	createTable(t, o, "t", adapterX)
	require.NoError(t, o.AddPlacement(ctx, ddl.PlacementRequest{Namespace: "public", Entity: "t", Adapter: adapterY}))
	require.Error(t, o.DropTable(ctx, "public", "missing"))
	require.NoError(t, o.DropTable(ctx, "public", "t"))

	assert.Equal(t, 3, reset)
	assert.Equal(t, int64(3), o.Caches().Resets())
}
