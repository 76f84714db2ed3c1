package registry

import (
	"slices"
)

// Module is the interface that all operation modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the operations available to a single application instance.
type Registry struct {
	Operations map[string]*Operation
}

// New creates and initializes a new Registry instance.
func New(modules ...Module) *Registry {
	r := &Registry{Operations: make(map[string]*Operation)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (*Operation, bool) {
	op, ok := r.Operations[name]
	return op, ok
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Operations))
	for name := range r.Operations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
