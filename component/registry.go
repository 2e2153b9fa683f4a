package component

import (
	"fmt"
	"maps"
	"sync"

	"github.com/SolaceDev/solace-ai-connector/errors"
)

// Factory creates one component worker instance. The base carries the
// resolved configuration and runtime services; the returned Invoker is the
// component implementation, typically embedding the base.
type Factory func(base *Base) (Invoker, error)

// Registration holds the factory and static metadata for a component
// module. The registration name is the component_module key used in
// configuration.
type Registration struct {
	Name    string
	Info    Info
	Factory Factory
}

// Registry maps component_module names to registrations. It replaces the
// original's dynamic module import with typed dispatch.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]*Registration
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]*Registration{}}
}

// Register adds a component module registration. Registering a duplicate
// name is a configuration error.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Name == "" || reg.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "registration validation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[reg.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("component module '%s' is already registered", reg.Name),
			"Registry", "Register", "duplicate module check")
	}
	r.factories[reg.Name] = reg
	return nil
}

// Get returns the registration for a component_module name.
func (r *Registry) Get(name string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, exists := r.factories[name]
	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownComponent, name),
			"Registry", "Get", "module lookup")
	}
	return reg, nil
}

// List returns a copy of all registrations by module name.
func (r *Registry) List() map[string]*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]*Registration, len(r.factories))
	maps.Copy(result, r.factories)
	return result
}
