package ollama

import (
	"godex/pkg/backend"
	"godex/pkg/settings"
)

func init() {
	backend.RegisterType("ollama", func(name string, inst settings.ProviderInstance) (backend.Backend, error) {
		return New(Config{Name: name, BaseURL: inst.BaseURL})
	})
}
