package partition

import (
	"fmt"
	"strings"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Temperature splits an entity into a HOT and a COLD tier. Both tiers hold
// several partitions that are filled by the Internal strategy.
type Temperature struct {
	Internal Manager
}

func (t Temperature) internal() Manager {
	if t.Internal == nil {
		return Hash{}
	}
	return t.Internal
}

func (Temperature) Type() model.PartitionType { return model.PartitionTemperature }

func (t Temperature) SupportsColumnOfType(pt model.PolyType) bool {
	return t.internal().SupportsColumnOfType(pt)
}

// NumberOfPartitionsPerGroup returns total: the tiers are sized by
// HotColdSplit, not evenly.
func (Temperature) NumberOfPartitionsPerGroup(total int) int { return total }

func (Temperature) RequiresUnboundPartitionGroup() bool { return false }

func (t Temperature) ValidateAdjustPartitionGroupSetup(s Setup, column catalog.LogicalColumn) (Setup, error) {
	if !t.SupportsColumnOfType(column.Type) {
		return Setup{}, &ColumnError{Type: t.Type(), Column: column.Name, Col: column.Type}
	}
	if len(s.Qualifiers) > 0 {
		return Setup{}, setupErr(t.Type(), "values cannot be assigned to temperature tiers")
	}
	if s.GroupCount != 0 && s.GroupCount != 2 {
		return Setup{}, setupErr(t.Type(), "exactly two tiers are required, got %d", s.GroupCount)
	}
	switch len(s.Names) {
	case 0:
		return Setup{GroupCount: 2, Names: []string{HotGroupName, ColdGroupName}}, nil
	case 2:
		hot := strings.ToLower(strings.TrimSpace(s.Names[0]))
		cold := strings.ToLower(strings.TrimSpace(s.Names[1]))
		if hot == "" || cold == "" || hot == cold {
			return Setup{}, setupErr(t.Type(), "tier names must be distinct and not empty")
		}
		return Setup{GroupCount: 2, Names: []string{hot, cold}}, nil
	default:
		return Setup{}, setupErr(t.Type(), "exactly two tier names are required, got %d", len(s.Names))
	}
}

// TargetPartition places new rows in the COLD tier. Promotion to HOT is done
// by the periodic redistribution.
func (t Temperature) TargetPartition(snap *catalog.Snapshot, prop catalog.PartitionProperty, value any) (model.PartitionID, error) {
	if prop.Temperature == nil {
		return 0, fmt.Errorf("entity %d has no temperature configuration", prop.EntityID)
	}
	parts, err := orderedPartitions(snap, prop)
	if err != nil {
		return 0, err
	}
	cold := make([]catalog.AllocationPartition, 0, len(parts))
	for _, p := range parts {
		if p.GroupID == prop.Temperature.ColdGroupID {
			cold = append(cold, p)
		}
	}
	if len(cold) == 0 {
		cold = parts
	}
	return hashInto(cold, value), nil
}

// HotColdSplit sizes the tiers for total partitions and a hot-in percentage.
func HotColdSplit(total, hotPercentageIn int) (hot, cold int) {
	hot = max(1, total*hotPercentageIn/100)
	return hot, total - hot
}

// TemperatureRequest holds the tier parameters of a TEMPERATURE request.
type TemperatureRequest struct {
	// Internal partitions the data inside a tier. Defaults to HASH.
	Internal model.PartitionType
	Interval int64
	Unit     model.TimeUnit
	HotIn    int
	HotOut   int
	Cost     model.PartitionCostIndication
}

func (r TemperatureRequest) validate(total int) (hot, cold int, err error) {
	typ := model.PartitionTemperature
	if r.HotIn < 1 || r.HotIn > 100 {
		return 0, 0, setupErr(typ, "hot access percentage in must be between 1 and 100, got %d", r.HotIn)
	}
	if r.HotOut < r.HotIn || r.HotOut > 100 {
		return 0, 0, setupErr(typ, "hot access percentage out must be between %d and 100, got %d", r.HotIn, r.HotOut)
	}
	if r.Interval <= 0 {
		return 0, 0, setupErr(typ, "frequency interval must be positive, got %d", r.Interval)
	}
	if total < 2 {
		return 0, 0, setupErr(typ, "at least 2 partitions are required, got %d", total)
	}
	hot, cold = HotColdSplit(total, r.HotIn)
	if cold < 1 {
		return 0, 0, setupErr(typ, "%d%% of %d partitions leaves no partition for the cold tier", r.HotIn, total)
	}
	return hot, cold, nil
}
