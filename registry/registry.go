package registry

import (
	"fmt"
	"sort"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/samber/lo"
)

// Registry owns the fixed set of configured modules for the process lifetime.
type Registry struct {
	modules map[interfaces.ModuleID]interfaces.Module
	ids     []interfaces.ModuleID
}

// New creates a registry over modules. Module ids must be unique and non-empty.
func New(modules []interfaces.Module) (*Registry, error) {
	r := &Registry{modules: make(map[interfaces.ModuleID]interfaces.Module, len(modules))}
	for _, m := range modules {
		id := m.ID()
		if id == "" {
			return nil, fmt.Errorf("module with empty id")
		}
		if _, dup := r.modules[id]; dup {
			return nil, fmt.Errorf("duplicate module id %q", id)
		}
		r.modules[id] = m
	}

	r.ids = lo.Keys(r.modules)
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

// Get returns the module with id or ErrUnknownModule.
func (r *Registry) Get(id interfaces.ModuleID) (interfaces.Module, error) {
	m, found := r.modules[id]
	if !found {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnknownModule, id)
	}
	return m, nil
}

// Len returns the number of configured modules.
func (r *Registry) Len() int {
	return len(r.ids)
}

// IDs returns all module ids, sorted.
func (r *Registry) IDs() []interfaces.ModuleID {
	return append([]interfaces.ModuleID(nil), r.ids...)
}

// List returns all modules sorted by id.
func (r *Registry) List() []interfaces.Module {
	return lo.Map(r.ids, func(id interfaces.ModuleID, _ int) interfaces.Module {
		return r.modules[id]
	})
}

// Descriptors returns the descriptors of all modules sorted by id.
func (r *Registry) Descriptors() []interfaces.Descriptor {
	return lo.Map(r.List(), func(m interfaces.Module, _ int) interfaces.Descriptor {
		return m.Describe()
	})
}

// Resolve looks up every id, failing on the first unknown one.
func (r *Registry) Resolve(ids []interfaces.ModuleID) ([]interfaces.Module, error) {
	out := make([]interfaces.Module, 0, len(ids))
	for _, id := range ids {
		m, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
