package catalog

import (
	"cmp"
	"maps"
	"slices"

	"github.com/hupe1980/polyalloc/model"
)

// state is the full set of catalog records. Values are never mutated in
// place: every write stores a new value, so a shallow copy of the maps is an
// independent view.
type state struct {
	Seq          int64                                      `json:"seq"`
	Namespaces   map[model.NamespaceID]Namespace            `json:"namespaces"`
	Entities     map[model.EntityID]LogicalEntity           `json:"entities"`
	Columns      map[model.ColumnID]LogicalColumn           `json:"columns"`
	Keys         map[model.KeyID]LogicalKey                 `json:"keys"`
	Indexes      map[model.IndexID]LogicalIndex             `json:"indexes"`
	Constraints  map[model.ConstraintID]LogicalConstraint   `json:"constraints"`
	Placements   map[model.PlacementID]AllocationPlacement  `json:"placements"`
	AllocColumns map[model.PlacementID][]AllocationColumn   `json:"alloc_columns"`
	Groups       map[model.GroupID]AllocationPartitionGroup `json:"groups"`
	Partitions   map[model.PartitionID]AllocationPartition  `json:"partitions"`
	Properties   map[model.EntityID]PartitionProperty       `json:"properties"`
	Allocations  map[model.AllocationID]AllocationEntity    `json:"allocations"`
}

func newState() *state {
	s := &state{}
	s.init()
	return s
}

// init allocates nil maps, e.g. after decoding an image that omitted them.
func (s *state) init() {
	if s.Namespaces == nil {
		s.Namespaces = map[model.NamespaceID]Namespace{}
	}
	if s.Entities == nil {
		s.Entities = map[model.EntityID]LogicalEntity{}
	}
	if s.Columns == nil {
		s.Columns = map[model.ColumnID]LogicalColumn{}
	}
	if s.Keys == nil {
		s.Keys = map[model.KeyID]LogicalKey{}
	}
	if s.Indexes == nil {
		s.Indexes = map[model.IndexID]LogicalIndex{}
	}
	if s.Constraints == nil {
		s.Constraints = map[model.ConstraintID]LogicalConstraint{}
	}
	if s.Placements == nil {
		s.Placements = map[model.PlacementID]AllocationPlacement{}
	}
	if s.AllocColumns == nil {
		s.AllocColumns = map[model.PlacementID][]AllocationColumn{}
	}
	if s.Groups == nil {
		s.Groups = map[model.GroupID]AllocationPartitionGroup{}
	}
	if s.Partitions == nil {
		s.Partitions = map[model.PartitionID]AllocationPartition{}
	}
	if s.Properties == nil {
		s.Properties = map[model.EntityID]PartitionProperty{}
	}
	if s.Allocations == nil {
		s.Allocations = map[model.AllocationID]AllocationEntity{}
	}
}

func (s *state) clone() *state {
	return &state{
		Seq:          s.Seq,
		Namespaces:   maps.Clone(s.Namespaces),
		Entities:     maps.Clone(s.Entities),
		Columns:      maps.Clone(s.Columns),
		Keys:         maps.Clone(s.Keys),
		Indexes:      maps.Clone(s.Indexes),
		Constraints:  maps.Clone(s.Constraints),
		Placements:   maps.Clone(s.Placements),
		AllocColumns: maps.Clone(s.AllocColumns),
		Groups:       maps.Clone(s.Groups),
		Partitions:   maps.Clone(s.Partitions),
		Properties:   maps.Clone(s.Properties),
		Allocations:  maps.Clone(s.Allocations),
	}
}

func (s *state) nextID() int64 {
	s.Seq++
	return s.Seq
}

// sortedValues returns the values of m accepted by keep, ordered by key.
func sortedValues[K cmp.Ordered, V any](m map[K]V, keep func(V) bool) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		if v := m[k]; keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}
