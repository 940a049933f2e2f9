// Package registry is the service container of the plugin.
//
// Services are addressed by typed keys. Instances built outside the
// container are added with Register; services the container owns are
// declared with Provide and constructed on first Get, after their own
// dependencies. Construction is lazy and happens once per key; a key that
// is requested again while it is being built is reported as a dependency
// cycle instead of recursing.
//
// Example usage:
//
//	reg := registry.New()
//	registry.Register(reg, ConfigKey, cfg)
//	registry.Provide(reg, LimboKey, func(r *registry.Registry) (*limbo.Cache, error) {
//	    return limbo.NewCache(), nil
//	})
//
//	cache, err := registry.Get(reg, LimboKey)
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrNotRegistered is returned by Get for a key with neither an instance
	// nor a factory.
	ErrNotRegistered = errors.New("service not registered")

	// ErrAlreadyRegistered is returned when a key is registered twice.
	ErrAlreadyRegistered = errors.New("service already registered")

	// ErrDependencyCycle is returned when constructing a service requires
	// the service itself.
	ErrDependencyCycle = errors.New("dependency cycle")
)

// Key identifies a service of type T.
type Key[T any] struct {
	name string
}

// NewKey creates a key. Names must be unique within a registry.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key name.
func (k Key[T]) Name() string { return k.name }

// Factory builds the service of a key, resolving its dependencies from r.
type Factory[T any] func(r *Registry) (T, error)

type factory func(r *Registry) (any, error)

// Registry holds service instances and the factories of services not yet
// built.
//
// Construction is expected to be driven by a single goroutine (the enable
// sequence). Lookups of already built services are safe from any goroutine.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]any
	factories map[string]factory

	// building is the chain of keys currently under construction.
	building []string

	// order records keys in the order their instances became available.
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		instances: make(map[string]any),
		factories: make(map[string]factory),
	}
}

// Register adds an instance built outside the registry.
func Register[T any](r *Registry, k Key[T], v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkFreeLocked(k.name); err != nil {
		return err
	}
	r.instances[k.name] = v
	r.order = append(r.order, k.name)
	return nil
}

// Provide declares how to build the service of k.
func Provide[T any](r *Registry, k Key[T], f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("cannot provide %s: nil factory", k.name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkFreeLocked(k.name); err != nil {
		return err
	}
	r.factories[k.name] = func(r *Registry) (any, error) { return f(r) }
	return nil
}

func (r *Registry) checkFreeLocked(name string) error {
	if name == "" {
		return fmt.Errorf("cannot register service with empty key")
	}
	if _, ok := r.instances[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	return nil
}

// Get returns the service of k, building it and its dependencies on first use.
func Get[T any](r *Registry, k Key[T]) (T, error) {
	var zero T

	v, err := r.get(k.name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %s has type %T", k.name, v)
	}
	return t, nil
}

// GetIfAvailable returns the service of k only if it was already built.
// It never constructs anything.
func GetIfAvailable[T any](r *Registry, k Key[T]) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}

	r.mu.RLock()
	v, ok := r.instances[k.name]
	r.mu.RUnlock()
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func (r *Registry) get(name string) (any, error) {
	r.mu.Lock()
	if v, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return v, nil
	}
	for i, b := range r.building {
		if b == name {
			chain := append(append([]string(nil), r.building[i:]...), name)
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(chain, " -> "))
		}
	}
	f, ok := r.factories[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	r.building = append(r.building, name)
	r.mu.Unlock()

	v, err := f(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.building = r.building[:len(r.building)-1]
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s: %w", name, err)
	}
	r.instances[name] = v
	delete(r.factories, name)
	r.order = append(r.order, name)
	return v, nil
}

// Has reports whether name has an instance or a factory.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, built := r.instances[name]
	_, declared := r.factories[name]
	return built || declared
}

// Order returns the keys of built services in the order they became available.
func (r *Registry) Order() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Pending returns the keys declared with Provide and not yet built.
func (r *Registry) Pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
