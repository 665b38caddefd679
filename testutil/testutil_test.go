package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/model"
)

func TestFixture_Table(t *testing.T) {
	f := NewFixture(t, 1, 2)
	tb := f.Table(t, "t", Int("c1"), Varchar("c2"))

	v := f.Catalog.Working()
	pk, err := v.PrimaryKey(tb.Entity.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.ColumnID{tb.Columns[0].ID}, pk.ColumnIDs)

	prop, err := v.Property(tb.Entity.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.PartitionID{tb.Partition.ID}, prop.PartitionIDs)
	assert.Equal(t, []model.AdapterID{1, 2}, f.Registry.IDs())
}

func TestRNG_Rows(t *testing.T) {
	f := NewFixture(t)
	tb := f.Table(t, "t", Int("c1"), Int("c2"), Varchar("c3"))

	rows := NewRNG(4711).Rows(tb.Columns, 5)
	require.Len(t, rows, 5)
	assert.Equal(t, int64(3), rows[2][tb.Columns[0].ID])
	assert.IsType(t, int64(0), rows[0][tb.Columns[1].ID])
	assert.IsType(t, "", rows[0][tb.Columns[2].ID])

	again := NewRNG(4711).Rows(tb.Columns, 5)
	assert.Equal(t, rows, again)
}

func TestRNG_AccessCountsSkew(t *testing.T) {
	parts := []model.PartitionID{10, 11, 12, 13}
	counts := NewRNG(1).AccessCounts(parts, 2000, 1.5)

	var total int64
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, int64(2000), total)
	assert.Greater(t, counts[10], counts[13])
}
