package provider

import "fmt"

// Registry resolves an Adapter by provider kind at request time.
// The three concrete wire protocols are registered once at startup; no
// reflection, just a lookup map.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a Registry with all built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range []Adapter{
		NewAnthropicAdapter(),
		NewOpenAIAdapter(),
		NewGeminiAdapter(),
	} {
		r.adapters[a.Kind()] = a
	}
	return r
}

// Register adds (or replaces) an adapter under its kind.
// Useful for tests that need a scripted adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Kind()] = a
}

// Resolve returns the adapter for kind.
// Returns an error naming the available kinds if none is registered.
func (r *Registry) Resolve(kind string) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("provider registry: kind %q not registered (available: %v)", kind, r.kinds())
	}
	return a, nil
}

// kinds returns the registered provider kinds (for error messages).
func (r *Registry) kinds() []string {
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	return out
}
