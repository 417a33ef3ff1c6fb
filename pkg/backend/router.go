package backend

import (
	"context"
	"strings"
	"sync"
)

// RouterConfig drives model-to-backend routing.
type RouterConfig struct {
	// Patterns maps a backend name to the model prefixes and exact names
	// it serves, e.g. {"anthropic": ["claude-", "sonnet"]}.
	Patterns map[string][]string

	// Aliases maps short names onto full model ids.
	Aliases map[string]string

	// Default is the backend used when nothing matches.
	Default string
}

// DefaultRouterConfig covers the built-in backends with their usual model
// name shapes.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Patterns: map[string][]string{
			"anthropic": {"claude-", "sonnet", "opus", "haiku"},
			"codex":     {"gpt-", "o1-", "o3-", "codex-"},
		},
		Aliases: map[string]string{
			"sonnet": "claude-sonnet-4-5-20250929",
			"opus":   "claude-opus-4-5",
			"haiku":  "claude-haiku-4-5",
		},
		Default: "codex",
	}
}

// Router picks a Backend by model name.
type Router struct {
	mu       sync.RWMutex
	backends map[string]Backend
	config   RouterConfig
}

// NewRouter creates a router with the given configuration and no backends.
func NewRouter(config RouterConfig) *Router {
	return &Router{backends: make(map[string]Backend), config: config}
}

// Register adds a backend under name.
func (r *Router) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
}

// ExpandAlias resolves a model alias, returning the input unchanged when no
// alias exists.
func (r *Router) ExpandAlias(model string) string {
	if full, ok := r.config.Aliases[strings.ToLower(model)]; ok {
		return full
	}
	return model
}

// BackendFor picks the backend whose patterns claim the model (exact or
// prefix match), falling back to the configured default. Nil when nothing
// matches.
func (r *Router) BackendFor(model string) Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(model)
	for backendName, patterns := range r.config.Patterns {
		b, ok := r.backends[backendName]
		if !ok {
			continue
		}
		for _, pattern := range patterns {
			pattern = strings.ToLower(pattern)
			if lower == pattern || strings.HasPrefix(lower, pattern) {
				return b
			}
		}
	}

	return r.backends[r.config.Default]
}

// Get returns a backend by name, or nil.
func (r *Router) Get(name string) Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[name]
}

// List returns the registered backend names.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// ListAllModels queries every backend for its models, keyed by backend
// name; backends that error or return nothing are omitted.
func (r *Router) ListAllModels(ctx context.Context) map[string][]ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]ModelInfo)
	for name, b := range r.backends {
		if models, err := b.ListModels(ctx); err == nil && len(models) > 0 {
			out[name] = models
		}
	}
	return out
}

// AllModels flattens ListAllModels into one list.
func (r *Router) AllModels(ctx context.Context) []ModelInfo {
	var all []ModelInfo
	for _, models := range r.ListAllModels(ctx) {
		all = append(all, models...)
	}
	return all
}
