package layout

import (
	"log/slog"

	"metagen/internal/meta"
)

type state int

const (
	pending state = iota
	resolving
	resolved
)

type entry struct {
	spec  *meta.StructLayout
	st    *Struct
	state state
}

// Registry maps struct names to their authored layout and, once resolved,
// their final layout. It has a single writer: the pass that registers and
// resolves structs.
type Registry struct {
	entries map[string]*entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds an authored struct. A struct registered under an existing
// name replaces the earlier one, resolved or not, and Register reports true.
func (r *Registry) Register(spec *meta.StructLayout) bool {
	if e, ok := r.entries[spec.Name]; ok {
		e.spec, e.st, e.state = spec, nil, pending
		return true
	}
	r.entries[spec.Name] = &entry{spec: spec}
	r.order = append(r.order, spec.Name)
	return false
}

// Get returns the resolved struct, if resolution has completed.
func (r *Registry) Get(name string) (*Struct, bool) {
	e, ok := r.entries[name]
	if !ok || e.state != resolved {
		return nil, false
	}
	return e.st, true
}

// Layout returns the authored layout registered under name.
func (r *Registry) Layout(name string) (*meta.StructLayout, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.spec, true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns registered names in first-registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered structs.
func (r *Registry) Len() int { return len(r.entries) }

// ResolveSize resolves name and returns its final size.
func (r *Registry) ResolveSize(name string) (int, error) {
	return NewResolver(r, slog.Default()).ResolveSize(name)
}
