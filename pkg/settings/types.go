package settings

import "godex/pkg/reasoning"

// ModelsConfig holds the model registry, aliases and favorites.
type ModelsConfig struct {
	Default   string                   `mapstructure:"default" yaml:"default"`
	Registry  map[string]ModelIdentity `mapstructure:"registry" yaml:"registry"`
	Aliases   map[string]string        `mapstructure:"aliases" yaml:"aliases"`
	Favorites map[string]any           `mapstructure:"favorites" yaml:"favorites"`
	Extra     map[string]any           `mapstructure:",remain" yaml:"-"`
}

// ModelIdentity describes one canonical model and how it binds to each
// provider that can serve it.
type ModelIdentity struct {
	NativeContext int                        `mapstructure:"native_context" yaml:"native_context"`
	Bindings      map[string]ProviderBinding `mapstructure:"bindings" yaml:"bindings"`
	Capabilities  ModelCapabilities          `mapstructure:"capabilities" yaml:"capabilities"`
}

// ModelCapabilities records what a model supports, consumed by pkg/reasoning
// when deciding whether to emit any reasoning parameters at all.
type ModelCapabilities struct {
	Tools     bool   `mapstructure:"tools" yaml:"tools"`
	Reasoning bool   `mapstructure:"reasoning" yaml:"reasoning"`
	Family    string `mapstructure:"family" yaml:"family"`
}

// ProviderBinding maps a canonical model onto one provider's native model ID
// and (optionally) an effective context size that overrides the model's
// native one for that provider.
type ProviderBinding struct {
	ModelID          string `mapstructure:"model_id" yaml:"model_id"`
	EffectiveContext int    `mapstructure:"effective_context" yaml:"effective_context"`
}

// GetBinding returns the binding for provider, or nil if this model is not
// bound to it.
func (m ModelIdentity) GetBinding(provider string) *ProviderBinding {
	b, ok := m.Bindings[provider]
	if !ok {
		return nil
	}
	return &b
}

// EffectiveContext returns the binding's override, falling back to the
// model's native context size.
func (m ModelIdentity) EffectiveContext(provider string) int {
	if b := m.GetBinding(provider); b != nil && b.EffectiveContext > 0 {
		return b.EffectiveContext
	}
	return m.NativeContext
}

// ProvidersConfig holds the default provider name and per-provider instance
// configuration.
type ProvidersConfig struct {
	Default   string                      `mapstructure:"default" yaml:"default"`
	Instances map[string]ProviderInstance `mapstructure:"instances" yaml:"instances"`
}

// ProviderInstance configures one backend connection: its wire type
// (openai, anthropic, ollama, custom), where to reach it, and how to
// authenticate.
type ProviderInstance struct {
	Type            string         `mapstructure:"type" yaml:"type"`
	BaseURL         string         `mapstructure:"base_url" yaml:"base_url"`
	APIKeyEnv       string         `mapstructure:"api_key_env" yaml:"api_key_env"`
	CredentialsPath string         `mapstructure:"credentials_path" yaml:"credentials_path"`
	Enabled         bool           `mapstructure:"enabled" yaml:"enabled"`
	CacheTTLSeconds int            `mapstructure:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	Extra           map[string]any `mapstructure:",remain" yaml:"-"`
}

// BehaviorConfig holds the knobs that shape how a turn is run.
type BehaviorConfig struct {
	MaxTokens               int             `mapstructure:"max_tokens" yaml:"max_tokens"`
	Verbose                 bool            `mapstructure:"verbose" yaml:"verbose"`
	OutputFormat            string          `mapstructure:"output_format" yaml:"output_format"`
	ReasoningLevel          reasoning.Level `mapstructure:"reasoning_level" yaml:"reasoning_level"`
	ReasoningFormat         string          `mapstructure:"reasoning_format" yaml:"reasoning_format"`
	ToolResultMaxChars      int             `mapstructure:"tool_result_max_chars" yaml:"tool_result_max_chars"`
	MaxToolRounds           int             `mapstructure:"max_tool_rounds" yaml:"max_tool_rounds"`
	MaxRecoveriesPerTurn    int             `mapstructure:"max_recoveries_per_turn" yaml:"max_recoveries_per_turn"`
	MaxRecoveriesPerSession int             `mapstructure:"max_recoveries_per_session" yaml:"max_recoveries_per_session"`
	Extra                   map[string]any  `mapstructure:",remain" yaml:"-"`
}

// SandboxConfig controls the OS-level sandbox applied to tool execution.
type SandboxConfig struct {
	Enabled      bool           `mapstructure:"enabled" yaml:"enabled"`
	AllowNetwork bool           `mapstructure:"allow_network" yaml:"allow_network"`
	AllowedPaths []string       `mapstructure:"allowed_paths" yaml:"allowed_paths"`
	Extra        map[string]any `mapstructure:",remain" yaml:"-"`
}

// LoggingConfig controls conversation-transcript logging (distinct from the
// operational zap logger).
type LoggingConfig struct {
	Enabled     bool           `mapstructure:"enabled" yaml:"enabled"`
	Dir         string         `mapstructure:"dir" yaml:"dir"`
	Private     bool           `mapstructure:"private" yaml:"private"`
	RawPayloads bool           `mapstructure:"raw_payloads" yaml:"raw_payloads"`
	Extra       map[string]any `mapstructure:",remain" yaml:"-"`
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	AutoResume    bool   `mapstructure:"auto_resume" yaml:"auto_resume"`
	MaxTranscript int    `mapstructure:"max_transcript" yaml:"max_transcript"`
}

// PluginsConfig controls which hook scripts and context plugins are active.
type PluginsConfig struct {
	HooksDir   string   `mapstructure:"hooks_dir" yaml:"hooks_dir"`
	SkillsDirs []string `mapstructure:"skills_dirs" yaml:"skills_dirs"`
	Enabled    []string `mapstructure:"enabled" yaml:"enabled"`
}

// ToolsConfig controls which tools are disabled. The "__builtin__" key
// mirrors the legacy flat disable-all-builtins flag.
type ToolsConfig struct {
	Disabled map[string]bool `mapstructure:"disabled" yaml:"disabled"`
}

// IsToolDisabled reports whether name is disabled, either directly or via
// the __builtin__ kill switch.
func (t ToolsConfig) IsToolDisabled(name string) bool {
	if t.Disabled["__builtin__"] {
		return true
	}
	return t.Disabled[name]
}
