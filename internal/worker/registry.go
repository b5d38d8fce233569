// Package worker holds the registry of worker types available to pipelines.
package worker

import (
	"fmt"
	"sort"
	"sync"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/worker"
)

// StaticRegistry is a worker.Registry backed by a map filled at startup.
// It is safe for concurrent use.
type StaticRegistry struct {
	factories map[string]worker.Factory
	mu        sync.RWMutex
}

var _ worker.Registry = (*StaticRegistry)(nil)

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{factories: make(map[string]worker.Factory)}
}

// Register associates a worker type name with its factory.
func (r *StaticRegistry) Register(name string, factory worker.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return jherrors.NewConfigError("worker registration error: name cannot be empty", nil)
	}
	if factory == nil {
		return jherrors.NewConfigError(fmt.Sprintf("worker registration error for '%s': factory cannot be nil", name), nil)
	}
	if _, exists := r.factories[name]; exists {
		return jherrors.NewConfigError(fmt.Sprintf("worker registration error: duplicate worker name '%s'", name), nil)
	}
	r.factories[name] = factory
	return nil
}

// Get returns the factory registered under name.
func (r *StaticRegistry) Get(name string) (worker.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, jherrors.NewWorkerNotFoundError(name)
	}
	return factory, nil
}

// List returns the registered worker names, sorted.
func (r *StaticRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var globalRegistry = NewStaticRegistry()

// Register adds a factory to the default registry. Built-in workers call it
// from init(); a registration error is a programming mistake and panics.
func Register(name string, factory worker.Factory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(fmt.Errorf("failed to register worker '%s' globally: %w", name, err))
	}
}

// Default returns the registry populated by Register.
func Default() worker.Registry {
	return globalRegistry
}
