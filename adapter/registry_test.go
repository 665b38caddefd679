package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/adapter/memory"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

func TestRegistry(t *testing.T) {
	rel := memory.New(1, "rel", memory.WithModels(model.Relational))
	docs := memory.New(2, "docs", memory.WithModels(model.Document))
	r := adapter.NewRegistry(rel, docs)

	assert.Equal(t, []model.AdapterID{1, 2}, r.IDs())
	assert.Equal(t, []model.AdapterID{1}, r.Supporting(model.Relational))
	assert.Equal(t, []model.AdapterID{2}, r.Supporting(model.Document))
	assert.Empty(t, r.Supporting(model.Graph))

	ds, err := r.DataStore(1)
	require.NoError(t, err)
	assert.Equal(t, "rel", ds.Name())

	_, err = r.DataStore(2)
	require.ErrorIs(t, err, adapter.ErrUnsupportedModel)

	_, err = r.Get(9)
	require.ErrorIs(t, err, adapter.ErrUnknownAdapter)

	_, err = r.DataSource(1)
	require.Error(t, err)

	r.Remove(2)
	assert.Equal(t, []model.AdapterID{1}, r.IDs())
}

func TestTableFor(t *testing.T) {
	c := catalog.New()
	ns, err := c.AddNamespace(catalog.Namespace{Name: "public"})
	require.NoError(t, err)
	e, err := c.AddEntity(catalog.LogicalEntity{NamespaceID: ns.ID, Name: "t", Modifiable: true})
	require.NoError(t, err)
	c1, err := c.AddColumn(catalog.LogicalColumn{EntityID: e.ID, Name: "c1", Type: model.TypeInteger})
	require.NoError(t, err)
	c2, err := c.AddColumn(catalog.LogicalColumn{EntityID: e.ID, Name: "c2", Type: model.TypeVarchar, Nullable: true})
	require.NoError(t, err)
	_, err = c.AddKey(catalog.LogicalKey{EntityID: e.ID, Kind: model.PrimaryKey, ColumnIDs: []model.ColumnID{c1.ID}})
	require.NoError(t, err)

	p, err := c.AddPlacement(e.ID, 1)
	require.NoError(t, err)
	_, err = c.AddAllocColumn(p.ID, c2.ID, model.Manual, 0)
	require.NoError(t, err)

	g, err := c.AddGroup(catalog.AllocationPartitionGroup{EntityID: e.ID, Name: "full"})
	require.NoError(t, err)
	part, err := c.AddPartition(catalog.AllocationPartition{GroupID: g.ID, Name: "full"})
	require.NoError(t, err)
	alloc, err := c.AddAllocation(p.ID, part.ID)
	require.NoError(t, err)

	// Without the key column the table has no usable primary key.
	tb, err := adapter.TableFor(c.Working(), alloc)
	require.NoError(t, err)
	assert.Equal(t, []model.ColumnID{c2.ID}, tb.ColumnIDs())
	assert.Empty(t, tb.PrimaryKey)

	_, err = c.AddAllocColumn(p.ID, c1.ID, model.Automatic, 0)
	require.NoError(t, err)
	tb, err = adapter.TableFor(c.Working(), alloc)
	require.NoError(t, err)
	assert.Equal(t, []model.ColumnID{c2.ID, c1.ID}, tb.ColumnIDs())
	assert.Equal(t, []model.ColumnID{c1.ID}, tb.PrimaryKey)
	assert.Equal(t, alloc.PhysicalName(), tb.Name())

	key, ok := tb.Key(adapter.Row{c1.ID: 42, c2.ID: "x"})
	assert.True(t, ok)
	assert.Equal(t, "42", key)
}
