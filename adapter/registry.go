package adapter

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/polyalloc/model"
)

// Registry resolves adapter ids to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.AdapterID]Adapter
}

// NewRegistry returns a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.AdapterID]Adapter)}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ID()] = a
}

// Remove unregisters an adapter.
func (r *Registry) Remove(id model.AdapterID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, id)
}

// Get returns the adapter with the given id.
func (r *Registry) Get(id model.AdapterID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAdapter, id)
	}
	return a, nil
}

// IDs returns the registered adapter ids in ascending order.
func (r *Registry) IDs() []model.AdapterID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]model.AdapterID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Supporting returns the ids of the adapters with a writable capability for
// m, in ascending order.
func (r *Registry) Supporting(m model.DataModel) []model.AdapterID {
	var ids []model.AdapterID
	for _, id := range r.IDs() {
		var err error
		switch m {
		case model.Document:
			_, err = r.DocumentStore(id)
		case model.Graph:
			_, err = r.GraphStore(id)
		default:
			_, err = r.DataStore(id)
		}
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// DataStore returns the relational capability of an adapter.
func (r *Registry) DataStore(id model.AdapterID) (DataStore, error) {
	return capability[DataStore](r, id, model.Relational)
}

// DocumentStore returns the document capability of an adapter.
func (r *Registry) DocumentStore(id model.AdapterID) (DocumentStore, error) {
	return capability[DocumentStore](r, id, model.Document)
}

// GraphStore returns the graph capability of an adapter.
func (r *Registry) GraphStore(id model.AdapterID) (GraphStore, error) {
	return capability[GraphStore](r, id, model.Graph)
}

// DataSource returns the read-only source capability of an adapter.
func (r *Registry) DataSource(id model.AdapterID) (DataSource, error) {
	a, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	ds, ok := a.(DataSource)
	if !ok {
		return nil, fmt.Errorf("adapter %d (%s) is not a data source", id, a.Name())
	}
	return ds, nil
}

func capability[T Adapter](r *Registry, id model.AdapterID, m model.DataModel) (T, error) {
	var zero T
	a, err := r.Get(id)
	if err != nil {
		return zero, err
	}
	c, ok := a.(T)
	if !ok || !a.Supports(m) {
		return zero, fmt.Errorf("%w: adapter %d (%s) cannot store %s", ErrUnsupportedModel, id, a.Name(), m)
	}
	return c, nil
}
