package remedy

import "sort"

// Registry maps finding kinds to the appliers that remediate them. Each
// domain module builds its table once at construction and never mutates it
// afterwards; an unknown kind is a per-item warning for the engine, not a
// batch failure.
type Registry struct {
	appliers map[Kind]Applier
}

// NewRegistry creates an empty applier registry.
func NewRegistry() *Registry {
	return &Registry{appliers: make(map[Kind]Applier)}
}

// Register adds an applier for a kind, replacing any previous entry.
func (r *Registry) Register(kind Kind, a Applier) {
	r.appliers[kind] = a
}

// RegisterFunc adds a function applier for a kind.
func (r *Registry) RegisterFunc(kind Kind, fn ApplyFunc) {
	r.Register(kind, fn)
}

// Resolve returns the applier for a kind, if one is registered.
func (r *Registry) Resolve(kind Kind) (Applier, bool) {
	a, ok := r.appliers[kind]
	return a, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.appliers))
	for k := range r.appliers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
