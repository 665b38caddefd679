package partition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

const (
	// DefaultGroupName names the single group of an unpartitioned entity.
	DefaultGroupName = "full"
	// UnboundGroupName names the catch-all group of RANGE and LIST.
	UnboundGroupName = "unbound"
	// HotGroupName and ColdGroupName name the TEMPERATURE tiers.
	HotGroupName  = "hot"
	ColdGroupName = "cold"
)

// Setup is a user supplied group definition. The unbound group is never part
// of a Setup; Plan appends it when the strategy requires one.
type Setup struct {
	GroupCount int
	Names      []string
	Qualifiers [][]string
}

// Manager is the strategy for one partition type.
type Manager interface {
	Type() model.PartitionType

	// SupportsColumnOfType reports whether t can be used as partition column.
	SupportsColumnOfType(t model.PolyType) bool

	// NumberOfPartitionsPerGroup returns how many partitions each group gets
	// when total partitions are requested.
	NumberOfPartitionsPerGroup(total int) int

	// RequiresUnboundPartitionGroup reports whether a catch-all group is
	// appended after the named groups.
	RequiresUnboundPartitionGroup() bool

	// ValidateAdjustPartitionGroupSetup normalizes names and qualifiers and
	// returns the effective setup.
	ValidateAdjustPartitionGroupSetup(s Setup, column catalog.LogicalColumn) (Setup, error)

	// TargetPartition routes value to one of the entity's partitions.
	TargetPartition(snap *catalog.Snapshot, prop catalog.PartitionProperty, value any) (model.PartitionID, error)
}

// Factory resolves a partition type to its Manager.
type Factory struct {
	mu       sync.RWMutex
	managers map[model.PartitionType]Manager
}

// NewFactory returns a factory with every built-in strategy registered.
// TEMPERATURE uses HASH as internal function.
func NewFactory() *Factory {
	f := &Factory{managers: map[model.PartitionType]Manager{}}
	hash := Hash{}
	f.Register(None{})
	f.Register(hash)
	f.Register(Range{})
	f.Register(List{})
	f.Register(Temperature{Internal: hash})
	return f
}

// Register adds or replaces the manager of m.Type().
func (f *Factory) Register(m Manager) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.managers[m.Type()] = m
}

// Manager returns the strategy for t.
func (f *Factory) Manager(t model.PartitionType) (Manager, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	m, ok := f.managers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return m, nil
}

var defaultFactory = NewFactory()

// Get resolves t with the default factory.
func Get(t model.PartitionType) (Manager, error) {
	return defaultFactory.Manager(t)
}

// normalizeNames trims, lowercases and deduplicates group names and
// reconciles them with the requested group count. Missing names default to
// part_<i>.
func normalizeNames(t model.PartitionType, s Setup) (Setup, error) {
	names := make([]string, 0, len(s.Names))
	seen := make(map[string]struct{}, len(s.Names))
	for _, n := range s.Names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			return Setup{}, setupErr(t, "empty group name")
		}
		if n == UnboundGroupName {
			return Setup{}, setupErr(t, "group name %q is reserved", n)
		}
		if _, dup := seen[n]; dup {
			return Setup{}, setupErr(t, "group names are not unique: %q", n)
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}

	count := s.GroupCount
	switch {
	case count == 0 && len(names) > 0:
		count = len(names)
	case count == 0 && len(s.Qualifiers) > 0:
		count = len(s.Qualifiers)
	case len(names) > 0 && count != len(names):
		return Setup{}, setupErr(t, "%d group names given for %d groups", len(names), count)
	}
	if count < 0 {
		return Setup{}, setupErr(t, "negative group count %d", count)
	}
	if len(names) == 0 {
		for i := range count {
			names = append(names, fmt.Sprintf("part_%d", i))
		}
	}
	return Setup{GroupCount: count, Names: names, Qualifiers: trimQualifiers(s.Qualifiers)}, nil
}

func trimQualifiers(in [][]string) [][]string {
	if len(in) == 0 {
		return nil
	}
	out := make([][]string, len(in))
	for i, q := range in {
		out[i] = make([]string, len(q))
		for j, v := range q {
			out[i][j] = strings.TrimSpace(v)
		}
	}
	return out
}

// orderedPartitions resolves prop.PartitionIDs in order.
func orderedPartitions(snap *catalog.Snapshot, prop catalog.PartitionProperty) ([]catalog.AllocationPartition, error) {
	parts := make([]catalog.AllocationPartition, 0, len(prop.PartitionIDs))
	for _, id := range prop.PartitionIDs {
		p, err := snap.Partition(id)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("entity %d has no partitions", prop.EntityID)
	}
	return parts, nil
}

func unboundPartition(parts []catalog.AllocationPartition) (model.PartitionID, bool) {
	for _, p := range parts {
		if p.Unbound {
			return p.ID, true
		}
	}
	return 0, false
}
