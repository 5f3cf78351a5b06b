package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Generator from Settings.
type Factory func(ctx context.Context, s Settings) (Generator, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under name. Registering the same name
// twice replaces the earlier factory.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether a backend is registered under name.
func Known(name string) bool {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// New builds the backend registered under name.
func New(ctx context.Context, name string, s Settings) (Generator, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown upstream backend %q", name)
	}
	g, err := f(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", name, err)
	}
	return g, nil
}
