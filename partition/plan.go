package partition

import (
	"fmt"
	"slices"

	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// Request describes a requested partitioning of an entity.
type Request struct {
	Type   model.PartitionType
	Column catalog.LogicalColumn
	Setup  Setup
	// PartitionCount is the total number of partitions. Only TEMPERATURE
	// uses it; the other strategies derive it from the groups.
	PartitionCount int
	Temperature    *TemperatureRequest
}

// GroupSpec is one group to create.
type GroupSpec struct {
	Name       string
	Qualifiers []string
	Unbound    bool
	Partitions int
}

// PartitionName names the i-th partition of the group.
func (g GroupSpec) PartitionName(i int) string {
	if g.Partitions == 1 {
		return g.Name
	}
	return fmt.Sprintf("%s_%d", g.Name, i)
}

// Layout is the planned shape of a partitioned entity.
type Layout struct {
	Type   model.PartitionType
	Groups []GroupSpec
	// Temperature carries the tier parameters without group ids.
	Temperature *catalog.TemperatureProperty
}

// TotalPartitions is the sum of the group sizes.
func (l *Layout) TotalPartitions() int {
	n := 0
	for _, g := range l.Groups {
		n += g.Partitions
	}
	return n
}

// Property builds the partition property once the groups and partitions of
// the layout exist. groups must be in layout order.
func (l *Layout) Property(entity model.EntityID, column model.ColumnID, groups []model.GroupID, partitions []model.PartitionID) catalog.PartitionProperty {
	p := catalog.PartitionProperty{
		EntityID:     entity,
		Type:         l.Type,
		ColumnID:     column,
		GroupIDs:     slices.Clone(groups),
		PartitionIDs: slices.Clone(partitions),
	}
	if l.Type == model.PartitionNone {
		p.ColumnID = 0
	}
	for _, g := range l.Groups {
		p.Unbound = p.Unbound || g.Unbound
	}
	if l.Temperature != nil && len(groups) == 2 {
		t := *l.Temperature
		t.HotGroupID = groups[0]
		t.ColdGroupID = groups[1]
		p.Temperature = &t
		p.ReliesOnPeriodicChecks = true
	}
	return p
}

// DefaultLayout is the layout of a freshly created entity: one group with
// one partition.
func DefaultLayout() *Layout {
	return &Layout{
		Type:   model.PartitionNone,
		Groups: []GroupSpec{{Name: DefaultGroupName, Partitions: 1}},
	}
}

// Plan validates req with the default factory.
func Plan(req Request) (*Layout, error) {
	return defaultFactory.Plan(req)
}

// Plan validates req and computes the groups to create.
func (f *Factory) Plan(req Request) (*Layout, error) {
	m, err := f.Manager(req.Type)
	if err != nil {
		return nil, err
	}
	if req.Type == model.PartitionNone {
		return DefaultLayout(), nil
	}
	if !m.SupportsColumnOfType(req.Column.Type) {
		return nil, &ColumnError{Type: req.Type, Column: req.Column.Name, Col: req.Column.Type}
	}

	if req.Type == model.PartitionTemperature {
		return f.planTemperature(req)
	}

	setup, err := m.ValidateAdjustPartitionGroupSetup(req.Setup, req.Column)
	if err != nil {
		return nil, err
	}
	per := m.NumberOfPartitionsPerGroup(req.PartitionCount)
	layout := &Layout{Type: req.Type}
	for i, name := range setup.Names {
		g := GroupSpec{Name: name, Partitions: per}
		if i < len(setup.Qualifiers) {
			g.Qualifiers = setup.Qualifiers[i]
		}
		layout.Groups = append(layout.Groups, g)
	}
	if m.RequiresUnboundPartitionGroup() {
		layout.Groups = append(layout.Groups, GroupSpec{Name: UnboundGroupName, Unbound: true, Partitions: per})
	}
	return layout, nil
}

func (f *Factory) planTemperature(req Request) (*Layout, error) {
	var tr TemperatureRequest
	if req.Temperature != nil {
		tr = *req.Temperature
	}
	if tr.Internal == model.PartitionNone {
		tr.Internal = model.PartitionHash
	}
	if tr.Internal != model.PartitionHash {
		return nil, setupErr(model.PartitionTemperature, "internal partition function %s is not supported", tr.Internal)
	}
	internal, err := f.Manager(tr.Internal)
	if err != nil {
		return nil, err
	}
	m := Temperature{Internal: internal}
	setup, err := m.ValidateAdjustPartitionGroupSetup(req.Setup, req.Column)
	if err != nil {
		return nil, err
	}
	hot, cold, err := tr.validate(req.PartitionCount)
	if err != nil {
		return nil, err
	}
	return &Layout{
		Type: model.PartitionTemperature,
		Groups: []GroupSpec{
			{Name: setup.Names[0], Partitions: hot},
			{Name: setup.Names[1], Partitions: cold},
		},
		Temperature: &catalog.TemperatureProperty{
			Internal:               tr.Internal,
			FrequencyInterval:      tr.Unit.Seconds(tr.Interval),
			HotAccessPercentageIn:  tr.HotIn,
			HotAccessPercentageOut: tr.HotOut,
			Cost:                   tr.Cost,
		},
	}, nil
}

// Route resolves the manager of prop and routes value.
func (f *Factory) Route(snap *catalog.Snapshot, prop catalog.PartitionProperty, value any) (model.PartitionID, error) {
	m, err := f.Manager(prop.Type)
	if err != nil {
		return 0, err
	}
	return m.TargetPartition(snap, prop, value)
}

// Route routes value with the default factory.
func Route(snap *catalog.Snapshot, prop catalog.PartitionProperty, value any) (model.PartitionID, error) {
	return defaultFactory.Route(snap, prop, value)
}
