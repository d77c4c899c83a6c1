package queue

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps configured handler paths to factories. It is populated at
// process start and read when workers start.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds path to f. Registering a path twice is an error.
func (r *Registry) Register(path string, f Factory) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrUnknownHandlerPath)
	}
	if f == nil {
		return ErrFactoryNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[path]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerPathRegistered, path)
	}
	r.factories[path] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(path string, f Factory) {
	if err := r.Register(path, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory bound to path.
func (r *Registry) Lookup(path string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandlerPath, path)
	}
	return f, nil
}

// Paths returns the registered paths in lexical order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.factories))
	for p := range r.factories {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}
