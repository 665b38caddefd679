package partition

import (
	"slices"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// List assigns each group an explicit set of values. Other values go to the
// unbound group.
type List struct{}

func (List) Type() model.PartitionType { return model.PartitionList }

func (List) SupportsColumnOfType(t model.PolyType) bool {
	return !t.IsFloating() && !t.IsBlob()
}

func (List) NumberOfPartitionsPerGroup(int) int { return 1 }

func (List) RequiresUnboundPartitionGroup() bool { return true }

func (l List) ValidateAdjustPartitionGroupSetup(s Setup, column catalog.LogicalColumn) (Setup, error) {
	if !l.SupportsColumnOfType(column.Type) {
		return Setup{}, &ColumnError{Type: l.Type(), Column: column.Name, Col: column.Type}
	}
	s, err := normalizeNames(l.Type(), s)
	if err != nil {
		return Setup{}, err
	}
	if s.GroupCount < 1 {
		return Setup{}, setupErr(l.Type(), "at least one value list is required")
	}
	if len(s.Qualifiers) != s.GroupCount {
		return Setup{}, setupErr(l.Type(), "%d value lists given for %d groups", len(s.Qualifiers), s.GroupCount)
	}
	owner := map[string]string{}
	for i, q := range s.Qualifiers {
		if len(q) == 0 {
			return Setup{}, setupErr(l.Type(), "group %q has no values", s.Names[i])
		}
		for _, v := range q {
			if other, dup := owner[v]; dup {
				return Setup{}, setupErr(l.Type(), "value %q is assigned to %q and %q", v, other, s.Names[i])
			}
			owner[v] = s.Names[i]
		}
	}
	return s, nil
}

func (l List) TargetPartition(snap *catalog.Snapshot, prop catalog.PartitionProperty, value any) (model.PartitionID, error) {
	parts, err := orderedPartitions(snap, prop)
	if err != nil {
		return 0, err
	}
	key := valueKey(value)
	for _, p := range parts {
		if !p.Unbound && slices.Contains(p.Qualifiers, key) {
			return p.ID, nil
		}
	}
	if id, ok := unboundPartition(parts); ok {
		return id, nil
	}
	return parts[0].ID, nil
}
