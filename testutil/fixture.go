package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/adapter/memory"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Fixture is a catalog with one namespace per data model and a registry of
// in-memory stores.
type Fixture struct {
	Catalog  *catalog.Catalog
	Registry *adapter.Registry
	Stores   map[model.AdapterID]*memory.Store

	Namespace catalog.Namespace
	Docs      catalog.Namespace
	Graphs    catalog.Namespace
}

// NewFixture returns a fixture with a memory store per adapter id.
func NewFixture(t testing.TB, adapters ...model.AdapterID) *Fixture {
	t.Helper()
	return NewFixtureOn(t, catalog.New(), adapters...)
}

// NewFixtureOn is NewFixture over an existing, empty catalog.
func NewFixtureOn(t testing.TB, cat *catalog.Catalog, adapters ...model.AdapterID) *Fixture {
	t.Helper()

	f := &Fixture{
		Catalog:  cat,
		Registry: adapter.NewRegistry(),
		Stores:   make(map[model.AdapterID]*memory.Store),
	}
	for _, id := range adapters {
		s := memory.New(id, "mem")
		f.Stores[id] = s
		f.Registry.Register(s)
	}

	var err error
	f.Namespace, err = f.Catalog.AddNamespace(catalog.Namespace{Name: "public", Model: model.Relational})
	require.NoError(t, err)
	f.Docs, err = f.Catalog.AddNamespace(catalog.Namespace{Name: "docs", Model: model.Document})
	require.NoError(t, err)
	f.Graphs, err = f.Catalog.AddNamespace(catalog.Namespace{Name: "graphs", Model: model.Graph})
	require.NoError(t, err)
	return f
}

// Col describes a column passed to Fixture.Table.
type Col struct {
	Name     string
	Type     model.PolyType
	Nullable bool
}

// Int is a non-null integer column.
func Int(name string) Col { return Col{Name: name, Type: model.TypeInteger} }

// Varchar is a nullable varchar column.
func Varchar(name string) Col { return Col{Name: name, Type: model.TypeVarchar, Nullable: true} }

// Table is an entity created by the fixture.
type Table struct {
	Entity    catalog.LogicalEntity
	Columns   []catalog.LogicalColumn
	Partition catalog.AllocationPartition
}

// ColumnIDs returns the ids of the table's columns.
func (tb Table) ColumnIDs() []model.ColumnID {
	ids := make([]model.ColumnID, len(tb.Columns))
	for i, c := range tb.Columns {
		ids[i] = c.ID
	}
	return ids
}

// Table creates an unplaced relational table whose first column is the
// primary key, with a single unpartitioned partition.
func (f *Fixture) Table(t testing.TB, name string, cols ...Col) Table {
	t.Helper()

	tb := Table{Entity: f.entity(t, f.Namespace, name)}
	for _, c := range cols {
		lc, err := f.Catalog.AddColumn(catalog.LogicalColumn{
			EntityID: tb.Entity.ID,
			Name:     c.Name,
			Type:     c.Type,
			Nullable: c.Nullable,
		})
		require.NoError(t, err)
		tb.Columns = append(tb.Columns, lc)
	}
	if len(tb.Columns) > 0 {
		_, err := f.Catalog.AddKey(catalog.LogicalKey{
			EntityID:  tb.Entity.ID,
			Kind:      model.PrimaryKey,
			ColumnIDs: []model.ColumnID{tb.Columns[0].ID},
		})
		require.NoError(t, err)
	}
	tb.Partition = f.unpartitioned(t, tb.Entity.ID)
	return tb
}

// Collection creates an unplaced document collection.
func (f *Fixture) Collection(t testing.TB, name string) Table {
	t.Helper()
	tb := Table{Entity: f.entity(t, f.Docs, name)}
	tb.Partition = f.unpartitioned(t, tb.Entity.ID)
	return tb
}

// Graph creates an unplaced graph.
func (f *Fixture) Graph(t testing.TB, name string) Table {
	t.Helper()
	tb := Table{Entity: f.entity(t, f.Graphs, name)}
	tb.Partition = f.unpartitioned(t, tb.Entity.ID)
	return tb
}

func (f *Fixture) entity(t testing.TB, ns catalog.Namespace, name string) catalog.LogicalEntity {
	t.Helper()
	e, err := f.Catalog.AddEntity(catalog.LogicalEntity{
		NamespaceID: ns.ID,
		Name:        name,
		Model:       ns.Model,
		Type:        model.Entity,
		Modifiable:  true,
	})
	require.NoError(t, err)
	return e
}

func (f *Fixture) unpartitioned(t testing.TB, entity model.EntityID) catalog.AllocationPartition {
	t.Helper()
	g, err := f.Catalog.AddGroup(catalog.AllocationPartitionGroup{EntityID: entity, Name: "full"})
	require.NoError(t, err)
	p, err := f.Catalog.AddPartition(catalog.AllocationPartition{GroupID: g.ID, Name: "full"})
	require.NoError(t, err)
	require.NoError(t, f.Catalog.SetProperty(catalog.PartitionProperty{
		EntityID:     entity,
		Type:         model.PartitionNone,
		GroupIDs:     []model.GroupID{g.ID},
		PartitionIDs: []model.PartitionID{p.ID},
	}))
	return p
}
