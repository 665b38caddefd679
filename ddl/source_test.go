package ddl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/ddl"
	"github.com/hupe1980/polyalloc/model"
)

const adapterSource model.AdapterID = 9

// staticSource is a read-only source over in-memory tables keyed by column
// name.
type staticSource struct {
	tables map[string][]adapter.ExportedColumn
	rows   map[string][]map[string]any
}

func (s *staticSource) ID() model.AdapterID { return adapterSource }
func (s *staticSource) Name() string        { return "static" }

func (s *staticSource) Supports(m model.DataModel) bool { return m == model.Relational }

func (s *staticSource) ExportedColumns(context.Context) (map[string][]adapter.ExportedColumn, error) {
	return s.tables, nil
}

func (s *staticSource) ScanRows(_ context.Context, t adapter.Table, fn func(adapter.Row) error) error {
	for _, r := range s.rows[t.Name()] {
		row := make(adapter.Row, len(t.Columns))
		for _, c := range t.Columns {
			row[c.ID] = r[c.Name()]
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func newStaticSource() *staticSource {
	return &staticSource{
		tables: map[string][]adapter.ExportedColumn{
			"customers": {
				{Name: "name", Type: model.TypeVarchar, Nullable: true, Position: 2},
				{Name: "id", Type: model.TypeInteger, Position: 1, PrimaryKey: true},
			},
			"orders": {
				{Name: "order_id", Type: model.TypeBigInt, Position: 1, PrimaryKey: true},
				{Name: "total", Type: model.TypeDouble, Nullable: true, Position: 2},
			},
		},
		rows: map[string][]map[string]any{
			"customers": {
				{"id": int64(1), "name": "ada"},
				{"id": int64(2), "name": "bob"},
			},
		},
	}
}

func TestAddSource(t *testing.T) {
	ctx := context.Background()
	f, o := setup(t)
	f.Registry.Register(newStaticSource())

	added, err := o.AddSource(ctx, "public", adapterSource)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "customers", added[0].Name)
	assert.Equal(t, "orders", added[1].Name)

	snap := f.Catalog.Snapshot()
	e := added[0]
	assert.Equal(t, model.Source, e.Type)
	assert.False(t, e.Modifiable)

	cols := snap.Columns(e.ID)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.False(t, cols[0].Nullable)
	pk, err := snap.PrimaryKey(e.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.ColumnID{cols[0].ID}, pk.ColumnIDs)

	p, err := snap.PlacementFor(e.ID, adapterSource)
	require.NoError(t, err)
	for _, ac := range snap.AllocColumns(p.ID) {
		assert.Equal(t, model.Static, ac.Type)
	}
	allocs := snap.Allocations(e.ID)
	require.Len(t, allocs, 1)
	assert.Equal(t, "customers", allocs[0].PhysicalName())

	t.Run("copies into a data store", func(t *testing.T) {
		require.NoError(t, o.AddPlacement(ctx, ddl.PlacementRequest{Namespace: "public", Entity: "customers", Adapter: adapterX}))
		assert.ElementsMatch(t, []adapter.Row{
			{cols[0].ID: int64(1), cols[1].ID: "ada"},
			{cols[0].ID: int64(2), cols[1].ID: "bob"},
		}, stored(f, e, adapterX))
	})

	t.Run("is read-only", func(t *testing.T) {
		_, err := o.AddColumn(ctx, "public", "customers", ddl.ColumnSpec{Name: "city", Type: model.TypeVarchar, Nullable: true})
		assert.ErrorIs(t, err, ddl.ErrNotModifiable)
	})

	t.Run("twice", func(t *testing.T) {
		again, err := o.AddSource(ctx, "public", adapterSource)
		require.NoError(t, err)
		require.Len(t, again, 2)
		assert.Equal(t, "customers0", again[0].Name)
		allocs := f.Catalog.Snapshot().Allocations(again[0].ID)
		require.Len(t, allocs, 1)
		assert.Equal(t, "customers", allocs[0].PhysicalName())
	})

	t.Run("drop leaves the source alone", func(t *testing.T) {
		require.NoError(t, o.DropTable(ctx, "public", "customers"))
		_, err := f.Catalog.Snapshot().EntityByName(f.Namespace.ID, "customers")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
		assert.Empty(t, stored(f, e, adapterX))
		assert.Empty(t, f.Stores[adapterX].Allocations())
	})
}

func TestAddSource_Rejects(t *testing.T) {
	ctx := context.Background()

	t.Run("not a data source", func(t *testing.T) {
		_, o := setup(t)
		_, err := o.AddSource(ctx, "public", adapterX)
		assert.Error(t, err)
	})

	t.Run("table without primary key", func(t *testing.T) {
		f, o := setup(t)
		src := newStaticSource()
		src.tables["log"] = []adapter.ExportedColumn{{Name: "line", Type: model.TypeText, Nullable: true}}
		f.Registry.Register(src)

		_, err := o.AddSource(ctx, "public", adapterSource)
		require.ErrorIs(t, err, ddl.ErrInvalidDefinition)
		assert.Empty(t, f.Catalog.Snapshot().Entities(f.Namespace.ID))
	})

	t.Run("empty table name", func(t *testing.T) {
		f, o := setup(t)
		src := newStaticSource()
		src.tables[" "] = []adapter.ExportedColumn{{Name: "id", Type: model.TypeInteger, PrimaryKey: true}}
		f.Registry.Register(src)

		_, err := o.AddSource(ctx, "public", adapterSource)
		require.ErrorIs(t, err, ddl.ErrInvalidDefinition)
		_, err = f.Catalog.Snapshot().EntityByName(f.Namespace.ID, "customers")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})
}
