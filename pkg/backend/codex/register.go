package codex

import (
	"godex/pkg/auth"
	"godex/pkg/backend"
	"godex/pkg/settings"
)

func init() {
	backend.RegisterType("codex", func(name string, inst settings.ProviderInstance) (backend.Backend, error) {
		path := inst.CredentialsPath
		if path == "" {
			var err error
			path, err = auth.DefaultPath()
			if err != nil {
				return nil, err
			}
		}
		store, err := auth.Load(path)
		if err != nil {
			return nil, err
		}
		return New(nil, store, Config{BaseURL: inst.BaseURL, AllowRefresh: true}), nil
	})
}
