package openapi

import (
	"godex/pkg/backend"
	"godex/pkg/config"
	"godex/pkg/settings"
)

var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

var defaultKeyEnvs = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

func init() {
	// vllm and lmstudio are the same wire protocol at a user-supplied URL.
	for _, t := range []string{"openai", "openrouter", "vllm", "lmstudio"} {
		typeName := t
		backend.RegisterType(typeName, func(name string, inst settings.ProviderInstance) (backend.Backend, error) {
			baseURL := inst.BaseURL
			if baseURL == "" {
				baseURL = defaultBaseURLs[typeName]
			}
			auth := config.BackendAuthConfig{Type: "none"}
			if inst.APIKeyEnv != "" {
				// Explicitly configured key env var must be present.
				auth = config.BackendAuthConfig{Type: "api_key", KeyEnv: inst.APIKeyEnv}
			} else if keyEnv := defaultKeyEnvs[typeName]; keyEnv != "" {
				// Default key env is expanded when the client is built; a missing var
				// expands to an empty key instead of failing startup.
				auth = config.BackendAuthConfig{Type: "api_key", Key: "${" + keyEnv + "}"}
			}
			return New(Config{Name: name, BaseURL: baseURL, Auth: auth})
		})
	}
}
