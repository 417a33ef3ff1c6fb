package backend

import (
	"fmt"
	"sort"
	"sync"

	"godex/pkg/settings"
)

// TypeFactory constructs a Backend for one provider instance. name is the
// instance name from the config; inst carries the type tag and connection
// details.
type TypeFactory func(name string, inst settings.ProviderInstance) (Backend, error)

var (
	typeMu        sync.RWMutex
	typeFactories = map[string]TypeFactory{}
)

// RegisterType adds a factory for a provider type tag. Concrete backend
// packages register themselves in init; importing a backend package for side
// effects makes its type available here.
func RegisterType(typeName string, f TypeFactory) {
	typeMu.Lock()
	defer typeMu.Unlock()
	typeFactories[typeName] = f
}

// RegisterStubType registers a type tag that is recognized but not yet
// implemented; instantiating it fails with a not-implemented error.
func RegisterStubType(typeName string) {
	RegisterType(typeName, func(name string, inst settings.ProviderInstance) (Backend, error) {
		return nil, fmt.Errorf("provider type %q is not implemented", typeName)
	})
}

// RegisteredTypes returns the known provider type tags, sorted.
func RegisteredTypes() []string {
	typeMu.RLock()
	defer typeMu.RUnlock()
	out := make([]string, 0, len(typeFactories))
	for t := range typeFactories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NewRegistryFromSettings builds a Registry from the typed providers config,
// dispatching each enabled instance through the type table. An instance with
// an unknown type fails with the available types and the config path to fix.
func NewRegistryFromSettings(cfg settings.ProvidersConfig) (*Registry, error) {
	r := &Registry{backends: make(map[string]Backend)}

	names := make([]string, 0, len(cfg.Instances))
	for name := range cfg.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		inst := cfg.Instances[name]
		if !inst.Enabled {
			continue
		}
		typeMu.RLock()
		factory, ok := typeFactories[inst.Type]
		typeMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf(
				"unknown provider type %q for instance %q (available: %v); set providers.instances.%s.type to one of these",
				inst.Type, name, RegisteredTypes(), name)
		}
		b, err := factory(name, inst)
		if err != nil {
			return nil, fmt.Errorf("create backend %s: %w", name, err)
		}
		r.backends[name] = b
	}

	return r, nil
}
