package agent

import "fmt"

// Registry indexes decision-type factories by declared name.
//
// Invariant: each type name is registered at most once.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register stores a factory under name.
//
// Precondition: factory must not be nil.
// Postcondition: returns error on name collision.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("agent.Registry: type name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("agent.Registry: factory for %q must not be nil", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("agent.Registry: type %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory for name, or false if not registered.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Types returns the number of registered decision types.
func (r *Registry) Types() int {
	return len(r.factories)
}
