package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/index"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/testutil"
)

type env struct {
	f   *testutil.Fixture
	m   *allocation.Manager
	idx *index.Manager
	tb  testutil.Table
}

// setup places t(id pk, city) on adapter 1 with three rows.
func setup(t *testing.T) env {
	t.Helper()
	f := testutil.NewFixture(t, 1, 2)
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("city"))
	idx := index.NewManager(f.Registry, index.WithParallelism(2))
	m := allocation.NewManager(f.Catalog, f.Registry, allocation.WithIndexManager(idx))

	p, err := m.AddPlacement(context.Background(), allocation.PlacementSpec{Entity: tb.Entity.ID, Adapter: 1})
	require.NoError(t, err)

	v := f.Catalog.Working()
	a := v.AllocationsOfPlacement(p.ID)[0]
	at, err := adapter.TableFor(v, a)
	require.NoError(t, err)
	id, city := tb.Columns[0].ID, tb.Columns[1].ID
	require.NoError(t, f.Stores[1].WriteRows(context.Background(), at, []adapter.Row{
		{id: int64(1), city: "oslo"},
		{id: int64(2), city: "rome"},
		{id: int64(3), city: "oslo"},
	}))
	return env{f: f, m: m, idx: idx, tb: tb}
}

func (e env) polystoreIndex(t *testing.T, unique bool) catalog.LogicalIndex {
	t.Helper()
	k, err := e.f.Catalog.AddKey(catalog.LogicalKey{
		EntityID:  e.tb.Entity.ID,
		Kind:      model.UniqueKey,
		ColumnIDs: []model.ColumnID{e.tb.Columns[1].ID},
	})
	require.NoError(t, err)
	li, err := e.f.Catalog.AddIndex(catalog.LogicalIndex{
		EntityID: e.tb.Entity.ID,
		KeyID:    k.ID,
		Name:     "by_city",
		Unique:   unique,
	})
	require.NoError(t, err)
	return li
}

func TestBuildAndLookup(t *testing.T) {
	e := setup(t)
	li := e.polystoreIndex(t, false)

	require.NoError(t, e.idx.Build(context.Background(), e.f.Catalog.Working(), li))
	assert.Equal(t, 2, e.idx.Len(li.ID))

	keys, err := e.idx.Lookup(li.ID, "oslo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, keys)

	keys, err = e.idx.Lookup(li.ID, "paris")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = e.idx.Lookup(999, "oslo")
	require.ErrorIs(t, err, index.ErrUnknownIndex)
}

func TestBuild_Unique(t *testing.T) {
	e := setup(t)
	li := e.polystoreIndex(t, true)

	err := e.idx.Build(context.Background(), e.f.Catalog.Working(), li)
	require.ErrorIs(t, err, index.ErrDuplicateKey)
	assert.Empty(t, e.idx.Indexes())
}

func TestBuild_AdapterIndexRejected(t *testing.T) {
	e := setup(t)
	li := e.polystoreIndex(t, false)
	li.Location = 1

	require.Error(t, e.idx.Build(context.Background(), e.f.Catalog.Working(), li))
}

func TestReindexDropsDeletedIndexes(t *testing.T) {
	e := setup(t)
	li := e.polystoreIndex(t, false)
	ctx := context.Background()
	require.NoError(t, e.idx.Reindex(ctx, e.f.Catalog.Working(), e.tb.Entity.ID))
	assert.Equal(t, []model.IndexID{li.ID}, e.idx.Indexes())

	require.NoError(t, e.f.Catalog.DeleteIndex(li.ID))
	require.NoError(t, e.idx.Reindex(ctx, e.f.Catalog.Working(), e.tb.Entity.ID))
	assert.Empty(t, e.idx.Indexes())
}

func TestBuild_NoCoveringPlacement(t *testing.T) {
	f := testutil.NewFixture(t, 1)
	tb := f.Table(t, "t", testutil.Int("id"), testutil.Varchar("city"))
	idx := index.NewManager(f.Registry)
	m := allocation.NewManager(f.Catalog, f.Registry, allocation.WithIndexManager(idx))
	_, err := m.AddPlacement(context.Background(), allocation.PlacementSpec{
		Entity:  tb.Entity.ID,
		Adapter: 1,
		Columns: []model.ColumnID{tb.Columns[0].ID},
	})
	require.NoError(t, err)

	e := env{f: f, m: m, idx: idx, tb: tb}
	li := e.polystoreIndex(t, false)
	err = idx.Build(context.Background(), f.Catalog.Working(), li)
	require.ErrorIs(t, err, index.ErrNoCoveringPlacement)
}
