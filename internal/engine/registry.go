package engine

import (
	"sort"
)

// Registry maps engine ids to their adapters. It is filled at startup and
// read-only afterwards.
type Registry struct {
	adapters map[ID]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[ID]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds a, replacing any adapter with the same id.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.ID()] = a
}

func (r *Registry) Get(id ID) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// Has reports whether id names a registered embedded engine.
func (r *Registry) Has(id ID) bool {
	_, ok := r.adapters[id]
	return ok
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
