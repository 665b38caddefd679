package partition

import (
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// None keeps all data in a single partition.
type None struct{}

func (None) Type() model.PartitionType { return model.PartitionNone }

func (None) SupportsColumnOfType(model.PolyType) bool { return true }

func (None) NumberOfPartitionsPerGroup(int) int { return 1 }

func (None) RequiresUnboundPartitionGroup() bool { return false }

func (None) ValidateAdjustPartitionGroupSetup(s Setup, _ catalog.LogicalColumn) (Setup, error) {
	if s.GroupCount > 1 || len(s.Names) > 1 || len(s.Qualifiers) > 0 {
		return Setup{}, setupErr(model.PartitionNone, "an unpartitioned entity has exactly one group")
	}
	return Setup{GroupCount: 1, Names: []string{DefaultGroupName}}, nil
}

func (None) TargetPartition(snap *catalog.Snapshot, prop catalog.PartitionProperty, _ any) (model.PartitionID, error) {
	parts, err := orderedPartitions(snap, prop)
	if err != nil {
		return 0, err
	}
	return parts[0].ID, nil
}
