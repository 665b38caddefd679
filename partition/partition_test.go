package partition

import (
	"testing"
	"time"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var intColumn = catalog.LogicalColumn{ID: 7, Name: "id", Type: model.TypeInteger}

func TestHotColdSplit(t *testing.T) {
	tests := []struct {
		total, in int
		hot, cold int
	}{
		{10, 20, 2, 8},
		{10, 5, 1, 9},
		{3, 10, 1, 2},
		{4, 50, 2, 2},
		{10, 99, 9, 1},
	}
	for _, tt := range tests {
		hot, cold := HotColdSplit(tt.total, tt.in)
		assert.Equal(t, tt.hot, hot, "hot for %d/%d", tt.total, tt.in)
		assert.Equal(t, tt.cold, cold, "cold for %d/%d", tt.total, tt.in)
	}
}

func TestPlan_Temperature(t *testing.T) {
	layout, err := Plan(Request{
		Type:           model.PartitionTemperature,
		Column:         intColumn,
		PartitionCount: 10,
		Temperature: &TemperatureRequest{
			Interval: 2,
			Unit:     model.Days,
			HotIn:    20,
			HotOut:   30,
		},
	})
	require.NoError(t, err)
	require.Len(t, layout.Groups, 2)
	assert.Equal(t, HotGroupName, layout.Groups[0].Name)
	assert.Equal(t, 2, layout.Groups[0].Partitions)
	assert.Equal(t, ColdGroupName, layout.Groups[1].Name)
	assert.Equal(t, 8, layout.Groups[1].Partitions)
	assert.Equal(t, 10, layout.TotalPartitions())

	require.NotNil(t, layout.Temperature)
	assert.Equal(t, int64(172800), layout.Temperature.FrequencyInterval)
	assert.Equal(t, model.PartitionHash, layout.Temperature.Internal)
	assert.Equal(t, model.CostAll, layout.Temperature.Cost)

	prop := layout.Property(1, intColumn.ID, []model.GroupID{10, 11}, []model.PartitionID{20, 21})
	require.NotNil(t, prop.Temperature)
	assert.Equal(t, model.GroupID(10), prop.Temperature.HotGroupID)
	assert.Equal(t, model.GroupID(11), prop.Temperature.ColdGroupID)
	assert.True(t, prop.ReliesOnPeriodicChecks)
}

func TestPlan_TemperatureValidation(t *testing.T) {
	base := TemperatureRequest{Interval: 10, Unit: model.Minutes, HotIn: 20, HotOut: 40}
	tests := []struct {
		name   string
		mutate func(*TemperatureRequest, *Request)
	}{
		{"in zero", func(tr *TemperatureRequest, _ *Request) { tr.HotIn = 0 }},
		{"in above 100", func(tr *TemperatureRequest, _ *Request) { tr.HotIn = 101 }},
		{"out below in", func(tr *TemperatureRequest, _ *Request) { tr.HotOut = 10 }},
		{"out above 100", func(tr *TemperatureRequest, _ *Request) { tr.HotOut = 120 }},
		{"no interval", func(tr *TemperatureRequest, _ *Request) { tr.Interval = 0 }},
		{"one partition", func(_ *TemperatureRequest, r *Request) { r.PartitionCount = 1 }},
		{"empty cold tier", func(tr *TemperatureRequest, _ *Request) { tr.HotIn, tr.HotOut = 100, 100 }},
		{"internal range", func(tr *TemperatureRequest, _ *Request) { tr.Internal = model.PartitionRange }},
		{"three tiers", func(_ *TemperatureRequest, r *Request) { r.Setup.Names = []string{"a", "b", "c"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := base
			req := Request{Type: model.PartitionTemperature, Column: intColumn, PartitionCount: 10}
			tt.mutate(&tr, &req)
			req.Temperature = &tr
			_, err := Plan(req)
			assert.ErrorIs(t, err, ErrInvalidSetup)
		})
	}
}

func TestPlan_Hash(t *testing.T) {
	layout, err := Plan(Request{Type: model.PartitionHash, Column: intColumn, Setup: Setup{GroupCount: 4}})
	require.NoError(t, err)
	require.Len(t, layout.Groups, 4)
	for i, g := range layout.Groups {
		assert.Equal(t, "part_"+string(rune('0'+i)), g.Name)
		assert.Equal(t, 1, g.Partitions)
		assert.False(t, g.Unbound)
	}

	layout, err = Plan(Request{Type: model.PartitionHash, Column: intColumn, Setup: Setup{Names: []string{" North ", "south"}}})
	require.NoError(t, err)
	assert.Equal(t, "north", layout.Groups[0].Name)
	assert.Equal(t, "south", layout.Groups[1].Name)

	_, err = Plan(Request{Type: model.PartitionHash, Column: intColumn, Setup: Setup{Names: []string{"a", "A"}}})
	assert.ErrorIs(t, err, ErrInvalidSetup)

	_, err = Plan(Request{Type: model.PartitionHash, Column: intColumn, Setup: Setup{GroupCount: 1}})
	assert.ErrorIs(t, err, ErrInvalidSetup)

	_, err = Plan(Request{Type: model.PartitionHash, Column: intColumn, Setup: Setup{GroupCount: 2, Qualifiers: [][]string{{"1"}, {"2"}}}})
	assert.ErrorIs(t, err, ErrInvalidSetup)

	_, err = Plan(Request{Type: model.PartitionHash, Column: catalog.LogicalColumn{Name: "b", Type: model.TypeBlob}, Setup: Setup{GroupCount: 2}})
	assert.ErrorIs(t, err, ErrUnsupportedColumn)
}

func TestPlan_RangeAndList(t *testing.T) {
	layout, err := Plan(Request{
		Type:   model.PartitionRange,
		Column: intColumn,
		Setup:  Setup{Names: []string{"low", "high"}, Qualifiers: [][]string{{"0", "99"}, {"100", "199"}}},
	})
	require.NoError(t, err)
	require.Len(t, layout.Groups, 3)
	assert.True(t, layout.Groups[2].Unbound)
	assert.Equal(t, UnboundGroupName, layout.Groups[2].Name)

	_, err = Plan(Request{
		Type:   model.PartitionRange,
		Column: intColumn,
		Setup:  Setup{Qualifiers: [][]string{{"0", "100"}, {"100", "199"}}},
	})
	assert.ErrorIs(t, err, ErrInvalidSetup, "overlap")

	_, err = Plan(Request{
		Type:   model.PartitionRange,
		Column: intColumn,
		Setup:  Setup{Qualifiers: [][]string{{"10", "1"}}},
	})
	assert.ErrorIs(t, err, ErrInvalidSetup, "inverted")

	_, err = Plan(Request{Type: model.PartitionRange, Column: catalog.LogicalColumn{Type: model.TypeVarchar}, Setup: Setup{Qualifiers: [][]string{{"a", "b"}}}})
	assert.ErrorIs(t, err, ErrUnsupportedColumn)

	layout, err = Plan(Request{
		Type:   model.PartitionList,
		Column: catalog.LogicalColumn{Name: "country", Type: model.TypeVarchar},
		Setup:  Setup{Qualifiers: [][]string{{"de", "ch"}, {"us"}}},
	})
	require.NoError(t, err)
	require.Len(t, layout.Groups, 3)
	assert.Equal(t, []string{"de", "ch"}, layout.Groups[0].Qualifiers)

	_, err = Plan(Request{
		Type:   model.PartitionList,
		Column: catalog.LogicalColumn{Name: "country", Type: model.TypeVarchar},
		Setup:  Setup{Qualifiers: [][]string{{"de"}, {"de"}}},
	})
	assert.ErrorIs(t, err, ErrInvalidSetup)

	_, err = Plan(Request{Type: model.PartitionList, Column: catalog.LogicalColumn{Type: model.TypeDouble}, Setup: Setup{Qualifiers: [][]string{{"1"}}}})
	assert.ErrorIs(t, err, ErrUnsupportedColumn)
}

// materialize creates the groups and partitions of layout in a fresh catalog.
func materialize(t *testing.T, layout *Layout) (*catalog.Snapshot, catalog.PartitionProperty) {
	t.Helper()

	c := catalog.New()
	ns, err := c.AddNamespace(catalog.Namespace{Name: "public"})
	require.NoError(t, err)
	e, err := c.AddEntity(catalog.LogicalEntity{NamespaceID: ns.ID, Name: "t"})
	require.NoError(t, err)

	var groups []model.GroupID
	var parts []model.PartitionID
	for _, gs := range layout.Groups {
		g, err := c.AddGroup(catalog.AllocationPartitionGroup{EntityID: e.ID, Name: gs.Name, Unbound: gs.Unbound})
		require.NoError(t, err)
		groups = append(groups, g.ID)
		for i := range gs.Partitions {
			p, err := c.AddPartition(catalog.AllocationPartition{GroupID: g.ID, Name: gs.PartitionName(i), Qualifiers: gs.Qualifiers, Unbound: gs.Unbound})
			require.NoError(t, err)
			parts = append(parts, p.ID)
		}
	}
	prop := layout.Property(e.ID, 0, groups, parts)
	require.NoError(t, c.SetProperty(prop))
	return c.UpdateSnapshot(), prop
}

func TestRoute_Hash(t *testing.T) {
	layout, err := Plan(Request{Type: model.PartitionHash, Column: intColumn, Setup: Setup{GroupCount: 4}})
	require.NoError(t, err)
	snap, prop := materialize(t, layout)

	seen := map[model.PartitionID]int{}
	for i := range 1000 {
		id, err := Route(snap, prop, i)
		require.NoError(t, err)
		assert.True(t, prop.HasPartition(id))
		seen[id]++

		again, err := Route(snap, prop, i)
		require.NoError(t, err)
		assert.Equal(t, id, again, "routing is deterministic")
	}
	assert.Len(t, seen, 4)
}

func TestRoute_RangeAndList(t *testing.T) {
	layout, err := Plan(Request{
		Type:   model.PartitionRange,
		Column: intColumn,
		Setup:  Setup{Names: []string{"low", "high"}, Qualifiers: [][]string{{"0", "99"}, {"100", "199"}}},
	})
	require.NoError(t, err)
	snap, prop := materialize(t, layout)

	name := func(v any) string {
		id, err := Route(snap, prop, v)
		require.NoError(t, err)
		p, err := snap.Partition(id)
		require.NoError(t, err)
		return p.Name
	}
	assert.Equal(t, "low", name(5))
	assert.Equal(t, "high", name(int64(150)))
	assert.Equal(t, "high", name("100"))
	assert.Equal(t, UnboundGroupName, name(500))
	assert.Equal(t, UnboundGroupName, name("not a number"))

	layout, err = Plan(Request{
		Type:   model.PartitionList,
		Column: catalog.LogicalColumn{Name: "country", Type: model.TypeVarchar},
		Setup:  Setup{Names: []string{"eu", "us"}, Qualifiers: [][]string{{"de", "ch"}, {"us"}}},
	})
	require.NoError(t, err)
	snap, prop = materialize(t, layout)
	assert.Equal(t, "eu", name("ch"))
	assert.Equal(t, "us", name("us"))
	assert.Equal(t, UnboundGroupName, name("fr"))
}

func TestRoute_RangeExactBounds(t *testing.T) {
	route := func(t *testing.T, col catalog.LogicalColumn, q [][]string, v any) string {
		t.Helper()
		layout, err := Plan(Request{
			Type:   model.PartitionRange,
			Column: col,
			Setup:  Setup{Names: []string{"a", "b"}, Qualifiers: q},
		})
		require.NoError(t, err)
		snap, prop := materialize(t, layout)
		id, err := Route(snap, prop, v)
		require.NoError(t, err)
		p, err := snap.Partition(id)
		require.NoError(t, err)
		return p.Name
	}

	t.Run("time of day", func(t *testing.T) {
		col := catalog.LogicalColumn{Name: "opens", Type: model.TypeTime}
		q := [][]string{{"00:00:00", "11:59:59"}, {"12:00:00", "23:59:59"}}
		assert.Equal(t, "a", route(t, col, q, "08:30:00"))
		assert.Equal(t, "b", route(t, col, q, "12:00:00"))
		assert.Equal(t, "b", route(t, col, q, time.Date(0, 1, 1, 18, 0, 0, 0, time.UTC)))
	})

	t.Run("bigint beyond float precision", func(t *testing.T) {
		col := catalog.LogicalColumn{Name: "id", Type: model.TypeBigInt}
		q := [][]string{{"0", "9007199254740992"}, {"9007199254740993", "9007199254740999"}}
		assert.Equal(t, "a", route(t, col, q, int64(9007199254740992)))
		assert.Equal(t, "b", route(t, col, q, int64(9007199254740993)))
	})

	_, err := Plan(Request{
		Type:   model.PartitionRange,
		Column: catalog.LogicalColumn{Name: "id", Type: model.TypeBigInt},
		Setup:  Setup{Names: []string{"a", "b"}, Qualifiers: [][]string{{"0", "9007199254740993"}, {"9007199254740993", "9007199254740999"}}},
	})
	assert.Error(t, err, "ranges sharing a bound above 2^53 overlap")
}

func TestRoute_TemperatureUsesColdTier(t *testing.T) {
	layout, err := Plan(Request{
		Type:           model.PartitionTemperature,
		Column:         intColumn,
		PartitionCount: 10,
		Temperature:    &TemperatureRequest{Interval: 60, Unit: model.Seconds, HotIn: 20, HotOut: 20},
	})
	require.NoError(t, err)
	snap, prop := materialize(t, layout)

	for i := range 100 {
		id, err := Route(snap, prop, i)
		require.NoError(t, err)
		p, err := snap.Partition(id)
		require.NoError(t, err)
		assert.Equal(t, prop.Temperature.ColdGroupID, p.GroupID)
	}
}

func TestFrequencyPlan(t *testing.T) {
	prop := catalog.PartitionProperty{
		EntityID:     1,
		Type:         model.PartitionTemperature,
		PartitionIDs: []model.PartitionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		Temperature:  &catalog.TemperatureProperty{HotAccessPercentageIn: 20, HotAccessPercentageOut: 40},
	}
	accesses := map[model.PartitionID]int64{5: 100, 7: 90, 1: 80, 2: 70, 3: 1}

	// 1 ranks within the top 40% and may stay; 9 must leave.
	r, err := FrequencyPlan(prop, []model.PartitionID{1, 9}, accesses)
	require.NoError(t, err)
	assert.Equal(t, []model.PartitionID{5, 7}, r.Promote)
	assert.Equal(t, []model.PartitionID{9}, r.Demote)

	r, err = FrequencyPlan(prop, []model.PartitionID{5, 7}, accesses)
	require.NoError(t, err)
	assert.True(t, r.Empty())

	_, err = FrequencyPlan(catalog.PartitionProperty{}, nil, nil)
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	for _, typ := range []model.PartitionType{
		model.PartitionNone, model.PartitionHash, model.PartitionRange, model.PartitionList, model.PartitionTemperature,
	} {
		m, err := f.Manager(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, m.Type())
	}
	_, err := f.Manager(model.PartitionType(42))
	assert.ErrorIs(t, err, ErrUnknownType)

	m, _ := f.Manager(model.PartitionTemperature)
	assert.Equal(t, 10, m.NumberOfPartitionsPerGroup(10))
	assert.False(t, m.RequiresUnboundPartitionGroup())
	m, _ = f.Manager(model.PartitionList)
	assert.True(t, m.RequiresUnboundPartitionGroup())
}
