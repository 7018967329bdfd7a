package rbac

import "sync"

// Registry is the process-wide capability catalog.  It is built once in main
// from BaseModules and the static list of optional modules, then passed by
// reference to whatever needs it.
//
// Register appends unconditionally: registering the same module twice yields
// two entries.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

// NewRegistry returns a registry seeded with base.
func NewRegistry(base ...Module) *Registry {
	r := &Registry{}
	for _, m := range base {
		r.Register(m)
	}
	return r
}

// Register appends a module's capabilities to the catalog.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = append(r.modules, cloneModule(m))
}

// ListAll returns a snapshot of the catalog in registration order.  The
// caller may modify the result freely.
func (r *Registry) ListAll() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, len(r.modules))
	for i, m := range r.modules {
		out[i] = cloneModule(m)
	}
	return out
}

// Has reports whether any registered module declares capability id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modules {
		for _, c := range m.Capabilities {
			if c.ID == id {
				return true
			}
		}
	}
	return false
}

func cloneModule(m Module) Module {
	caps := make([]Capability, len(m.Capabilities))
	copy(caps, m.Capabilities)
	m.Capabilities = caps
	return m
}
