package partition

import (
	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Hash spreads rows over its partitions by the xxhash of the partition
// column value.
type Hash struct{}

func (Hash) Type() model.PartitionType { return model.PartitionHash }

func (Hash) SupportsColumnOfType(t model.PolyType) bool { return !t.IsBlob() }

func (Hash) NumberOfPartitionsPerGroup(int) int { return 1 }

func (Hash) RequiresUnboundPartitionGroup() bool { return false }

func (h Hash) ValidateAdjustPartitionGroupSetup(s Setup, column catalog.LogicalColumn) (Setup, error) {
	if !h.SupportsColumnOfType(column.Type) {
		return Setup{}, &ColumnError{Type: h.Type(), Column: column.Name, Col: column.Type}
	}
	if len(s.Qualifiers) > 0 {
		return Setup{}, setupErr(h.Type(), "values cannot be assigned to hash partitions")
	}
	s, err := normalizeNames(h.Type(), s)
	if err != nil {
		return Setup{}, err
	}
	if s.GroupCount < 2 {
		return Setup{}, setupErr(h.Type(), "at least 2 partitions are required, got %d", s.GroupCount)
	}
	return s, nil
}

func (h Hash) TargetPartition(snap *catalog.Snapshot, prop catalog.PartitionProperty, value any) (model.PartitionID, error) {
	parts, err := orderedPartitions(snap, prop)
	if err != nil {
		return 0, err
	}
	return hashInto(parts, value), nil
}

// hashInto picks one of parts by the xxhash of value. Unbound partitions
// never receive hashed rows unless they are the only candidates.
func hashInto(parts []catalog.AllocationPartition, value any) model.PartitionID {
	bound := make([]catalog.AllocationPartition, 0, len(parts))
	for _, p := range parts {
		if !p.Unbound {
			bound = append(bound, p)
		}
	}
	if len(bound) == 0 {
		bound = parts
	}
	sum := xxhash.Sum64String(valueKey(value))
	return bound[sum%uint64(len(bound))].ID
}
