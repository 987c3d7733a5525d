package inspect

import (
	"context"
	"sort"
	"sync"

	"github.com/vango-dev/ripple/internal/errors"
	"github.com/vango-dev/ripple/pkg/reactive"
)

// Value is the JSON form of one registered readable.
type Value struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type entry struct {
	get    func() any
	values func(ctx context.Context) <-chan any
}

// Registry holds the readables exposed by the inspector.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register exposes r under name. Names are unique within a registry.
func Register[T any](reg *Registry, name string, r reactive.Readable[T]) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.entries[name]; ok {
		return errors.New(errors.CodeInspectExists).WithDetail("%q is already registered", name)
	}
	erased := reactive.Map(r, func(v T) any { return v })
	reg.entries[name] = entry{
		get: erased.Get,
		values: func(ctx context.Context) <-chan any {
			return reactive.Values(ctx, erased)
		},
	}
	return nil
}

// Unregister removes name. It reports whether name was registered.
func (reg *Registry) Unregister(name string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.entries[name]
	delete(reg.entries, name)
	return ok
}

// Names returns the registered names in sorted order.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.entries))
	for name := range reg.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current value of every registered readable.
func (reg *Registry) Snapshot() []Value {
	names := reg.Names()
	out := make([]Value, 0, len(names))
	for _, name := range names {
		if e, ok := reg.lookup(name); ok {
			out = append(out, Value{Name: name, Value: e.get()})
		}
	}
	return out
}

func (reg *Registry) lookup(name string) (entry, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	e, ok := reg.entries[name]
	return e, ok
}

func notFound(name string) *errors.Error {
	return errors.New(errors.CodeInspectNotFound).
		WithDetail("no readable named %q", name).
		WithSuggestion("GET /readables lists the registered names")
}
