package anthropic

import (
	"godex/pkg/backend"
	"godex/pkg/settings"
)

func init() {
	backend.RegisterType("anthropic", func(name string, inst settings.ProviderInstance) (backend.Backend, error) {
		return New(Config{CredentialsPath: inst.CredentialsPath})
	})
}
