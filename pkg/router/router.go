// Package router maps model names onto registered harnesses. Matching and
// alias expansion are delegated to the harnesses themselves; user-level
// aliases and prefix patterns (from settings) override both.
package router

import (
	"context"
	"strings"
	"sync"

	"godex/pkg/harness"
	"godex/pkg/settings"
)

// Config holds the user-level routing overrides.
type Config struct {
	// UserAliases resolve before any harness alias table.
	UserAliases map[string]string

	// UserPatterns map a harness name to model-name prefixes that route to
	// it ahead of harness self-matching.
	UserPatterns map[string][]string
}

// entry pairs a registered harness with its instance name. Order is
// registration order; it decides match priority and the fallback.
type entry struct {
	name    string
	harness harness.Harness
}

// Router selects a harness for a model name.
type Router struct {
	mu      sync.RWMutex
	entries []entry
	config  Config
}

// New creates a router with the given overrides.
func New(cfg Config) *Router {
	return &Router{config: cfg}
}

// NewFromSettings creates a router whose alias overrides come from the
// typed settings (models.aliases). Patterns stay harness-driven.
func NewFromSettings(models settings.ModelsConfig) *Router {
	return New(Config{UserAliases: models.Aliases})
}

// Register adds a harness under the given instance name.
func (r *Router) Register(name string, h harness.Harness) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{name: name, harness: h})
}

// ExpandAlias resolves a model alias: user aliases win, then each harness
// is asked in registration order. Unknown aliases pass through unchanged.
func (r *Router) ExpandAlias(model string) string {
	if full, ok := r.config.UserAliases[strings.ToLower(model)]; ok {
		return full
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if expanded := e.harness.ExpandAlias(model); expanded != model {
			return expanded
		}
	}
	return model
}

// HarnessFor picks the harness for a model: user patterns first, then each
// harness's own MatchesModel, then the first registered harness as the
// fallback. Returns nil only when nothing is registered.
func (r *Router) HarnessFor(model string) harness.Harness {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(model)
	for harnessName, patterns := range r.config.UserPatterns {
		for _, pattern := range patterns {
			pattern = strings.ToLower(pattern)
			if lower != pattern && !strings.HasPrefix(lower, pattern) {
				continue
			}
			if h := r.lookupLocked(harnessName); h != nil {
				return h
			}
		}
	}

	for _, e := range r.entries {
		if e.harness.MatchesModel(model) {
			return e.harness
		}
	}

	if len(r.entries) > 0 {
		return r.entries[0].harness
	}
	return nil
}

// Get returns the harness registered under name, or nil.
func (r *Router) Get(name string) harness.Harness {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(name)
}

func (r *Router) lookupLocked(name string) harness.Harness {
	for _, e := range r.entries {
		if e.name == name {
			return e.harness
		}
	}
	return nil
}

// List returns the registered harness names in registration order.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// ListAllModels queries every harness for its models, keyed by harness
// name. Harnesses that error or return nothing are omitted.
func (r *Router) ListAllModels(ctx context.Context) map[string][]harness.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]harness.ModelInfo)
	for _, e := range r.entries {
		if models, err := e.harness.ListModels(ctx); err == nil && len(models) > 0 {
			out[e.name] = models
		}
	}
	return out
}

// AllModels flattens ListAllModels into one list.
func (r *Router) AllModels(ctx context.Context) []harness.ModelInfo {
	var all []harness.ModelInfo
	for _, models := range r.ListAllModels(ctx) {
		all = append(all, models...)
	}
	return all
}
