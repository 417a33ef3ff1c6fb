// Package config holds the connection-level configuration shared by the
// concrete backend clients: how to authenticate against an HTTP API and how
// to describe hard-coded model lists. The layered, typed application
// configuration lives in pkg/settings; this package is deliberately small.
package config

// BackendAuthConfig describes how a backend client authenticates.
type BackendAuthConfig struct {
	Type    string            `yaml:"type"`    // "api_key", "bearer", "header", "none"
	Key     string            `yaml:"key"`     // literal key, ${VAR} patterns are expanded
	KeyEnv  string            `yaml:"key_env"` // env var name for key
	Headers map[string]string `yaml:"headers"` // custom headers (for type: header)
}

// BackendModelDef defines a model for hard-coded model lists, for backends
// without a discovery endpoint.
type BackendModelDef struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}
