// Package tool implements the two-tier Tool Registry: built-in tools shadow
// external tools of the same name, each kept in its own store so duplicate
// registration within a tier is rejected while a built-in can still
// override an external tool sharing its name.
package tool

import (
	"fmt"
	"sync"

	"github.com/wn-agent/wn/chatmodel"
)

// Registry is a two-tier keyed store of ToolDefinitions.
type Registry struct {
	mu       sync.RWMutex
	builtin  map[string]chatmodel.ToolDefinition
	external map[string]chatmodel.ToolDefinition
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		builtin:  make(map[string]chatmodel.ToolDefinition),
		external: make(map[string]chatmodel.ToolDefinition),
	}
}

// Register adds a built-in tool. Duplicate names within the built-in store
// are rejected.
func (r *Registry) Register(def chatmodel.ToolDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builtin[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.builtin[def.Name] = def
	return nil
}

// RegisterExternal adds an externally-discovered tool. Duplicate names
// within the external store are rejected.
func (r *Registry) RegisterExternal(def chatmodel.ToolDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.external[def.Name]; exists {
		return fmt.Errorf("external tool already registered: %s", def.Name)
	}
	r.external[def.Name] = def
	return nil
}

// Get consults the built-in store first, then external; built-in shadows
// external of the same name.
func (r *Registry) Get(name string) (chatmodel.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.builtin[name]; ok {
		return def, true
	}
	def, ok := r.external[name]
	return def, ok
}

// List returns the union of both stores, with built-in entries overriding
// external entries of the same name. Iteration order is not guaranteed.
func (r *Registry) List() []chatmodel.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	merged := make(map[string]chatmodel.ToolDefinition, len(r.builtin)+len(r.external))
	for name, def := range r.external {
		merged[name] = def
	}
	for name, def := range r.builtin {
		merged[name] = def
	}
	out := make([]chatmodel.ToolDefinition, 0, len(merged))
	for _, def := range merged {
		out = append(out, def)
	}
	return out
}
