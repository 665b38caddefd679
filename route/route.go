// Package route selects the adapters that receive new placements.
package route

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// ErrNoStore is returned when no registered adapter can hold an entity.
var ErrNoStore = errors.New("no data store available")

// Router is the placement policy for new entities and columns.
type Router interface {
	// DataStoresForNewEntity returns the adapters that receive a new entity
	// of data model m.
	DataStoresForNewEntity(m model.DataModel) ([]model.AdapterID, error)
	// DataStoresForNewRelField returns the adapters that receive a new
	// column of an existing table.
	DataStoresForNewRelField(snap *catalog.Snapshot, column catalog.LogicalColumn) ([]model.AdapterID, error)
}

// Static places new entities on a fixed set of adapters, falling back to
// the first adapter able to store the data model. New columns go to every
// placement of their table.
type Static struct {
	adapters *adapter.Registry

	mu        sync.RWMutex
	preferred map[model.DataModel][]model.AdapterID
}

var _ Router = (*Static)(nil)

// NewStatic returns a router over adapters.
func NewStatic(adapters *adapter.Registry) *Static {
	return &Static{
		adapters:  adapters,
		preferred: make(map[model.DataModel][]model.AdapterID),
	}
}

// Prefer sets the adapters used for new entities of data model m.
func (r *Static) Prefer(m model.DataModel, ids ...model.AdapterID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred[m] = slices.Clone(ids)
}

func (r *Static) DataStoresForNewEntity(m model.DataModel) ([]model.AdapterID, error) {
	supporting := r.adapters.Supporting(m)

	r.mu.RLock()
	preferred := r.preferred[m]
	r.mu.RUnlock()

	var out []model.AdapterID
	for _, id := range preferred {
		if slices.Contains(supporting, id) {
			out = append(out, id)
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	if len(supporting) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoStore, m)
	}
	return supporting[:1], nil
}

func (r *Static) DataStoresForNewRelField(snap *catalog.Snapshot, column catalog.LogicalColumn) ([]model.AdapterID, error) {
	ps := snap.Placements(column.EntityID)
	if len(ps) == 0 {
		return nil, fmt.Errorf("%w: entity %d has no placement", ErrNoStore, column.EntityID)
	}
	ids := make([]model.AdapterID, len(ps))
	for i, p := range ps {
		ids[i] = p.AdapterID
	}
	slices.Sort(ids)
	return ids, nil
}
