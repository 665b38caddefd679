package partition

import (
	"fmt"
	"slices"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Redistribution lists the partitions that change tier.
type Redistribution struct {
	// Promote moves partitions from COLD to HOT.
	Promote []model.PartitionID
	// Demote moves partitions from HOT to COLD.
	Demote []model.PartitionID
}

// Empty reports whether nothing has to move.
func (r Redistribution) Empty() bool {
	return len(r.Promote) == 0 && len(r.Demote) == 0
}

// FrequencyPlan ranks the partitions of a temperature partitioned entity by
// access count. The top hot-in percentage must be HOT; a HOT partition may
// stay as long as it ranks within the hot-out percentage. hot lists the
// partitions currently in the HOT tier. Missing counts are zero and ties keep
// the property order.
func FrequencyPlan(prop catalog.PartitionProperty, hot []model.PartitionID, accesses map[model.PartitionID]int64) (Redistribution, error) {
	if prop.Temperature == nil {
		return Redistribution{}, fmt.Errorf("entity %d is not temperature partitioned", prop.EntityID)
	}
	n := len(prop.PartitionIDs)
	inCount := max(1, n*prop.Temperature.HotAccessPercentageIn/100)
	outCount := max(inCount, n*prop.Temperature.HotAccessPercentageOut/100)

	ranked := slices.Clone(prop.PartitionIDs)
	slices.SortStableFunc(ranked, func(a, b model.PartitionID) int {
		ca, cb := accesses[a], accesses[b]
		switch {
		case ca > cb:
			return -1
		case ca < cb:
			return 1
		}
		return 0
	})

	mustBeHot := ranked[:min(inCount, n)]
	mayBeHot := ranked[:min(outCount, n)]

	var r Redistribution
	for _, id := range mustBeHot {
		if !slices.Contains(hot, id) {
			r.Promote = append(r.Promote, id)
		}
	}
	for _, id := range hot {
		if !slices.Contains(mayBeHot, id) {
			r.Demote = append(r.Demote, id)
		}
	}
	return r, nil
}
