package partition

import (
	"math/big"
	"slices"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Range assigns each group a closed interval [lower, upper]. Values outside
// every interval go to the unbound group.
type Range struct{}

func (Range) Type() model.PartitionType { return model.PartitionRange }

func (Range) SupportsColumnOfType(t model.PolyType) bool {
	return t.IsNumeric() || t.IsTemporal()
}

func (Range) NumberOfPartitionsPerGroup(int) int { return 1 }

func (Range) RequiresUnboundPartitionGroup() bool { return true }

func (r Range) ValidateAdjustPartitionGroupSetup(s Setup, column catalog.LogicalColumn) (Setup, error) {
	if !r.SupportsColumnOfType(column.Type) {
		return Setup{}, &ColumnError{Type: r.Type(), Column: column.Name, Col: column.Type}
	}
	s, err := normalizeNames(r.Type(), s)
	if err != nil {
		return Setup{}, err
	}
	if s.GroupCount < 1 {
		return Setup{}, setupErr(r.Type(), "at least one range is required")
	}
	if len(s.Qualifiers) != s.GroupCount {
		return Setup{}, setupErr(r.Type(), "%d ranges given for %d groups", len(s.Qualifiers), s.GroupCount)
	}

	type bounds struct {
		lo, hi *big.Rat
		name   string
	}
	all := make([]bounds, 0, len(s.Qualifiers))
	for i, q := range s.Qualifiers {
		if len(q) != 2 {
			return Setup{}, setupErr(r.Type(), "group %q needs exactly a lower and an upper bound", s.Names[i])
		}
		lo, err := orderValue(q[0])
		if err != nil {
			return Setup{}, setupErr(r.Type(), "group %q: %v", s.Names[i], err)
		}
		hi, err := orderValue(q[1])
		if err != nil {
			return Setup{}, setupErr(r.Type(), "group %q: %v", s.Names[i], err)
		}
		if lo.Cmp(hi) >= 0 {
			return Setup{}, setupErr(r.Type(), "group %q: lower bound %s is not below upper bound %s", s.Names[i], q[0], q[1])
		}
		all = append(all, bounds{lo: lo, hi: hi, name: s.Names[i]})
	}
	slices.SortFunc(all, func(a, b bounds) int { return a.lo.Cmp(b.lo) })
	for i := 1; i < len(all); i++ {
		if all[i].lo.Cmp(all[i-1].hi) <= 0 {
			return Setup{}, setupErr(r.Type(), "ranges of %q and %q overlap", all[i-1].name, all[i].name)
		}
	}
	return s, nil
}

func (r Range) TargetPartition(snap *catalog.Snapshot, prop catalog.PartitionProperty, value any) (model.PartitionID, error) {
	parts, err := orderedPartitions(snap, prop)
	if err != nil {
		return 0, err
	}
	unbound, hasUnbound := unboundPartition(parts)
	v, err := orderValue(value)
	if err != nil {
		if hasUnbound {
			return unbound, nil
		}
		return 0, err
	}
	for _, p := range parts {
		if p.Unbound || len(p.Qualifiers) != 2 {
			continue
		}
		lo, err1 := orderValue(p.Qualifiers[0])
		hi, err2 := orderValue(p.Qualifiers[1])
		if err1 == nil && err2 == nil && v.Cmp(lo) >= 0 && v.Cmp(hi) <= 0 {
			return p.ID, nil
		}
	}
	if hasUnbound {
		return unbound, nil
	}
	return parts[0].ID, nil
}
