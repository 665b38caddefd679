package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

func testTable() adapter.Table {
	return adapter.Table{
		Alloc: catalog.AllocationEntity{ID: 7, Model: model.Relational},
		Columns: []adapter.Column{
			{ID: 1, Type: model.TypeInteger, Position: 1},
			{ID: 2, Type: model.TypeVarchar, Position: 2, Nullable: true},
		},
		PrimaryKey: []model.ColumnID{1},
	}
}

func TestStore_WriteRowsUpsertsByKey(t *testing.T) {
	ctx := context.Background()
	s := New(1, "mem")
	tb := testTable()
	require.NoError(t, s.CreateTable(ctx, tb))

	require.NoError(t, s.WriteRows(ctx, tb, []adapter.Row{
		{1: 1, 2: "a"},
		{1: 2, 2: "b"},
	}))
	require.NoError(t, s.WriteRows(ctx, tb, []adapter.Row{{1: 1, 2: "z"}}))

	rows := s.Rows(7)
	require.Len(t, rows, 2)
	assert.Equal(t, "z", rows[0][2])

	var seen int
	require.NoError(t, s.ScanRows(ctx, tb, func(adapter.Row) error {
		seen++
		return nil
	}))
	assert.Equal(t, 2, seen)
}

func TestStore_ScanProjectsColumns(t *testing.T) {
	ctx := context.Background()
	s := New(1, "mem")
	tb := testTable()
	require.NoError(t, s.CreateTable(ctx, tb))
	require.NoError(t, s.WriteRows(ctx, tb, []adapter.Row{{1: 1, 2: "a", 3: "ignored"}}))

	narrow := tb
	narrow.Columns = tb.Columns[:1]
	require.NoError(t, s.ScanRows(ctx, narrow, func(r adapter.Row) error {
		assert.Equal(t, adapter.Row{1: 1}, r)
		return nil
	}))
}

func TestStore_DropColumnAndIndexes(t *testing.T) {
	ctx := context.Background()
	s := New(1, "mem")
	tb := testTable()
	require.NoError(t, s.CreateTable(ctx, tb))
	require.NoError(t, s.WriteRows(ctx, tb, []adapter.Row{{1: 1, 2: "a"}}))

	idx := adapter.Index{ID: 3, Columns: []model.ColumnID{2}, Alloc: 7}
	require.NoError(t, s.AddIndex(ctx, tb, idx))
	assert.Equal(t, []string{"idx_3_7"}, s.Indexes(7))

	require.NoError(t, s.DropColumn(ctx, tb, tb.Columns[1]))
	assert.Equal(t, []model.ColumnID{1}, s.Columns(7))
	assert.Equal(t, adapter.Row{1: 1}, s.Rows(7)[0])

	require.NoError(t, s.DropIndex(ctx, tb, idx))
	assert.Empty(t, s.Indexes(7))

	require.NoError(t, s.DropTable(ctx, tb))
	assert.False(t, s.Has(7))
}

func TestStore_MissingTable(t *testing.T) {
	s := New(4, "mem")
	err := s.Truncate(context.Background(), testTable())
	require.ErrorIs(t, err, adapter.ErrNoSuchAllocation)

	var aerr *adapter.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, model.AdapterID(4), aerr.Adapter)
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	s := New(1, "mem")
	boom := errors.New("boom")
	s.FailOn("create table", boom)
	require.ErrorIs(t, s.CreateTable(ctx, testTable()), boom)

	s.FailOn("create table", nil)
	require.NoError(t, s.CreateTable(ctx, testTable()))
}

func TestStore_DocumentsAndGraphs(t *testing.T) {
	ctx := context.Background()
	s := New(1, "mem")
	coll := catalog.AllocationEntity{ID: 10, Model: model.Document}
	require.NoError(t, s.CreateCollection(ctx, coll))
	require.NoError(t, s.InsertDocuments(ctx, coll, []adapter.Document{{"_id": "a"}, {"_id": "b"}}))
	assert.Len(t, s.Documents(10), 2)

	g := catalog.AllocationEntity{ID: 11, Model: model.Graph}
	require.NoError(t, s.CreateGraph(ctx, g))
	require.NoError(t, s.InsertGraph(ctx, g,
		[]adapter.Node{{ID: "n1"}, {ID: "n2"}},
		[]adapter.Edge{{ID: "e1", Label: "KNOWS", Source: "n1", Target: "n2"}},
	))
	n, e := s.Graph(11)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, e)

	var order []string
	require.NoError(t, s.ScanGraph(ctx, g,
		func(n adapter.Node) error { order = append(order, n.ID); return nil },
		func(e adapter.Edge) error { order = append(order, e.ID); return nil },
	))
	assert.Equal(t, []string{"n1", "n2", "e1"}, order)

	assert.Equal(t, []model.AllocationID{10, 11}, s.Allocations())
}

func TestStore_Models(t *testing.T) {
	s := New(1, "rel", WithModels(model.Relational))
	assert.True(t, s.Supports(model.Relational))
	assert.False(t, s.Supports(model.Graph))
}

func TestStore_AddColumnFillsDefault(t *testing.T) {
	ctx := context.Background()
	s := New(1, "mem")
	tb := testTable()
	require.NoError(t, s.CreateTable(ctx, tb))
	require.NoError(t, s.WriteRows(ctx, tb, []adapter.Row{{1: 1, 2: "a"}}))

	c := adapter.Column{ID: 3, Type: model.TypeInteger, Position: 3, Default: &catalog.DefaultValue{Type: model.TypeInteger, Value: "7"}}
	require.NoError(t, s.AddColumn(ctx, tb, c))
	assert.Equal(t, int64(7), s.Rows(7)[0][3])

	require.NoError(t, s.AddColumn(ctx, tb, adapter.Column{ID: 4, Type: model.TypeVarchar, Nullable: true}))
	assert.NotContains(t, s.Rows(7)[0], model.ColumnID(4))

	bad := adapter.Column{ID: 5, Type: model.TypeInteger, Default: &catalog.DefaultValue{Value: "x"}}
	assert.Error(t, s.AddColumn(ctx, tb, bad))
}

func TestStore_CreateTableRefusesExisting(t *testing.T) {
	ctx := context.Background()
	s := New(1, "mem")
	require.NoError(t, s.CreateTable(ctx, testTable()))
	require.NoError(t, s.WriteRows(ctx, testTable(), []adapter.Row{{1: 1}}))

	err := s.CreateTable(ctx, testTable())
	require.ErrorIs(t, err, adapter.ErrPhysicalExists)
	assert.Len(t, s.Rows(7), 1)
}
