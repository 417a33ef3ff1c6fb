// Package settings builds a typed Settings view over a layered configuration
// map: constructor args > env vars > .env file > project
// config > user config > bundled defaults, with fail-fast validation and
// legacy-shape detection.
package settings

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/sjson"

	"godex/pkg/dcm"
)

//go:embed defaults.yaml
var builtinDefaultsYAML []byte

// EnvPrefix is the fixed environment variable prefix for this application.
const EnvPrefix = "GODEX"

var knownTopLevelKeys = map[string]bool{
	"version": true, "models": true, "providers": true, "behavior": true,
	"sandbox": true, "logging": true, "session": true, "plugins": true,
	"tools": true,
}

// legacyEnvVars maps pre-migration flat variable names to their nested
// equivalents, for the fail-fast migration error.
var legacyEnvVars = map[string]string{
	EnvPrefix + "_MODEL":       EnvPrefix + "_MODELS__DEFAULT",
	EnvPrefix + "_PROVIDER":    EnvPrefix + "_PROVIDERS__DEFAULT",
	EnvPrefix + "_MAX_TOKENS":  EnvPrefix + "_BEHAVIOR__MAX_TOKENS",
	EnvPrefix + "_VERBOSE":     EnvPrefix + "_BEHAVIOR__VERBOSE",
	EnvPrefix + "_SANDBOX":     EnvPrefix + "_SANDBOX__ENABLED",
	EnvPrefix + "_LOG_DIR":     EnvPrefix + "_LOGGING__DIR",
	EnvPrefix + "_LOG_ENABLED": EnvPrefix + "_LOGGING__ENABLED",
}

// ConfigError signals a fatal, startup-time configuration problem: missing
// built-in defaults, an unreadable or malformed config file, or a provider
// instance without a `type` field. The type value itself is not checked
// here; unknown provider types are rejected when backends are built. Never
// recoverable with a partial Settings fallback.
type ConfigError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config error (%s): %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("config error: %s", e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError signals legacy environment variables detected during
// settings construction. A legacy provider shape is reported as a
// ConfigError.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Settings is the strongly-typed view over the layered configuration map.
type Settings struct {
	dcm *dcm.DCM

	Models    ModelsConfig
	Providers ProvidersConfig
	Behavior  BehaviorConfig
	Sandbox   SandboxConfig
	Logging   LoggingConfig
	Session   SessionConfig
	Plugins   PluginsConfig
	Tools     ToolsConfig

	extras map[string]any
}

// LoadOptions configures Settings construction.
type LoadOptions struct {
	// ProjectRoot, if set, is scanned for "<ProjectRoot>/.godex/config.yaml"
	// and "<ProjectRoot>/.env".
	ProjectRoot string

	// UserConfigDir overrides the user config directory
	// (default: "~/.config/godex", overridable by GODEX_CONFIG_DIR).
	UserConfigDir string

	// Overrides is the highest-priority, in-memory layer (constructor args).
	Overrides map[string]any

	// Environ overrides os.Environ() for testing. Defaults to os.Environ().
	Environ []string

	// SkipMigrationCheck bypasses the legacy-env-var fatal check even if
	// GODEX_SKIP_MIGRATION_CHECK is not set in the environment.
	SkipMigrationCheck bool

	// Track enables provenance tracking on the underlying DCM.
	Track bool
}

// Load builds Settings from built-in defaults, user config, project config,
// environment variables, and constructor overrides, in that ascending order
// of priority. Built-in defaults are required; their absence is a fatal
// ConfigError.
func Load(opts LoadOptions) (*Settings, error) {
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	skip := opts.SkipMigrationCheck || envLookup(environ, EnvPrefix+"_SKIP_MIGRATION_CHECK") != ""
	if !skip {
		if err := checkLegacyEnvVars(environ); err != nil {
			return nil, err
		}
	}

	defaultsLayer, err := loadDefaultsLayer()
	if err != nil {
		return nil, err
	}

	userLayer, err := loadOptionalYAMLLayer("user", userConfigPath(opts.UserConfigDir, environ))
	if err != nil {
		return nil, err
	}

	projectLayer, err := loadOptionalYAMLLayer("project", projectConfigPath(opts.ProjectRoot))
	if err != nil {
		return nil, err
	}

	dotenvLayer, err := loadDotEnvLayer(opts.ProjectRoot, environ)
	if err != nil {
		return nil, err
	}

	envLayer, err := buildEnvLayer(EnvPrefix, environ)
	if err != nil {
		return nil, err
	}

	overridesLayer := dcm.Layer{Name: "overrides", Data: opts.Overrides}
	if overridesLayer.Data == nil {
		overridesLayer.Data = map[string]any{}
	}

	// Highest priority first.
	layers := []dcm.Layer{
		overridesLayer,
		{Name: "env", Data: envLayer},
		{Name: "dotenv", Data: dotenvLayer},
		{Name: "project", Data: projectLayer},
		{Name: "user", Data: userLayer},
		{Name: "defaults", Data: defaultsLayer},
	}

	d := dcm.New(opts.Track, layers...)

	s := &Settings{dcm: d}
	if err := s.decodeAll(); err != nil {
		return nil, err
	}
	s.collectExtras()
	return s, nil
}

// DCM exposes the underlying layered map for advanced callers (e.g. a
// `config show --provenance` consumer).
func (s *Settings) DCM() *dcm.DCM { return s.dcm }

func loadDefaultsLayer() (map[string]any, error) {
	if len(builtinDefaultsYAML) == 0 {
		return nil, &ConfigError{Msg: "built-in default configuration is empty or missing (installation error)"}
	}
	m, err := dcm.LoadYAML(builtinDefaultsYAML)
	if err != nil {
		return nil, &ConfigError{Msg: "failed to parse built-in defaults", Err: err}
	}
	if len(m) == 0 {
		return nil, &ConfigError{Msg: "built-in default configuration is empty (installation error)"}
	}
	return m, nil
}

func loadOptionalYAMLLayer(name, path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, &ConfigError{Path: path, Msg: fmt.Sprintf("cannot read %s config", name), Err: err}
	}
	m, err := dcm.LoadYAML(data)
	if err != nil {
		return nil, &ConfigError{Path: path, Msg: fmt.Sprintf("malformed YAML in %s config", name), Err: err}
	}
	return m, nil
}

func userConfigPath(override string, environ []string) string {
	if override != "" {
		return filepath.Join(override, "config.yaml")
	}
	if dir := envLookup(environ, EnvPrefix+"_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "godex", "config.yaml")
}

func projectConfigPath(root string) string {
	if root == "" {
		return ""
	}
	return filepath.Join(root, ".godex", "config.yaml")
}

func loadDotEnvLayer(projectRoot string, environ []string) (map[string]any, error) {
	path := envLookup(environ, EnvPrefix+"_ENV_FILE")
	if path == "" {
		if projectRoot == "" {
			return map[string]any{}, nil
		}
		path = filepath.Join(projectRoot, ".env")
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, &ConfigError{Path: path, Msg: "cannot read .env file", Err: err}
	}
	pairs := make([]string, 0, len(vars))
	for k, v := range vars {
		pairs = append(pairs, k+"="+v)
	}
	return buildEnvLayer(EnvPrefix, pairs)
}

// buildEnvLayer turns every "<prefix>_A__B__C=value" environment variable
// into a nested map {a: {b: {c: value}}} using sjson to set a dotted path
// against a backing JSON document, then decodes that document back to a map.
func buildEnvLayer(prefix string, environ []string) (map[string]any, error) {
	doc := "{}"
	full := prefix + "_"
	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key, val := kv[:eq], kv[eq+1:]
		if !strings.HasPrefix(key, full) {
			continue
		}
		rest := strings.TrimPrefix(key, full)
		if rest == "" || !strings.Contains(rest, "__") {
			// Bare "<prefix>_FOO" (no nesting) isn't part of the nested env
			// scheme; legacy detection handles the fixed flat names above.
			continue
		}
		parts := strings.Split(rest, "__")
		path := make([]string, len(parts))
		for i, p := range parts {
			path[i] = strings.ToLower(p)
		}
		var err error
		doc, err = sjson.Set(doc, strings.Join(path, "."), coerceEnvValue(val))
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("cannot apply env var %s", key), Err: err}
		}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, &ConfigError{Msg: "cannot decode env-derived config document", Err: err}
	}
	return m, nil
}

// coerceEnvValue converts a raw environment-variable string into a bool,
// int, float, or string, in that preference order.
func coerceEnvValue(v string) any {
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func envLookup(environ []string, name string) string {
	prefix := name + "="
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}

func checkLegacyEnvVars(environ []string) error {
	names := make([]string, 0, len(environ))
	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		names = append(names, kv[:eq])
	}
	sort.Strings(names)

	var found []string
	for _, n := range names {
		if newName, ok := legacyEnvVars[n]; ok {
			found = append(found, fmt.Sprintf("%s -> %s", n, newName))
		}
	}
	if len(found) == 0 {
		return nil
	}
	return &ValidationError{
		Msg: "legacy environment variables detected, migrate to the nested form (set " +
			EnvPrefix + "_SKIP_MIGRATION_CHECK=1 to bypass): " + strings.Join(found, ", "),
	}
}

func (s *Settings) decodeAll() error {
	if err := s.decodeSection("models", &s.Models); err != nil {
		return err
	}
	if err := s.decodeSection("providers", &s.Providers); err != nil {
		return err
	}
	if err := s.decodeSection("behavior", &s.Behavior); err != nil {
		return err
	}
	if err := s.decodeSection("sandbox", &s.Sandbox); err != nil {
		return err
	}
	if err := s.decodeSection("logging", &s.Logging); err != nil {
		return err
	}
	if err := s.decodeSection("session", &s.Session); err != nil {
		return err
	}
	if err := s.decodeSection("plugins", &s.Plugins); err != nil {
		return err
	}
	if err := s.decodeSection("tools", &s.Tools); err != nil {
		return err
	}

	if instances := s.Providers.Instances; instances != nil {
		for name, inst := range instances {
			if inst.Type == "" {
				return &ConfigError{
					Path: "providers.instances." + name,
					Msg:  "legacy provider config shape detected: missing required `type` field; add `type: <openai|anthropic|ollama|...>`",
				}
			}
		}
	}
	return nil
}

func (s *Settings) decodeSection(key string, out any) error {
	raw, ok := s.dcm.Get(key)
	if !ok {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return &ConfigError{Msg: "internal decoder setup failure", Err: err}
	}
	if err := dec.Decode(raw); err != nil {
		return &ConfigError{Path: key, Msg: "does not match expected shape", Err: err}
	}
	return nil
}

// collectExtras records every key not recognized by the typed sections,
// at any nesting level, for typo detection via CollectAllExtraFields.
func (s *Settings) collectExtras() {
	s.extras = map[string]any{}
	for k, v := range s.dcm.ToMap() {
		if !knownTopLevelKeys[k] {
			s.extras[k] = v
		}
	}
	for k := range s.Models.Extra {
		s.extras["models."+k] = s.Models.Extra[k]
	}
	for k := range s.Behavior.Extra {
		s.extras["behavior."+k] = s.Behavior.Extra[k]
	}
	for k := range s.Sandbox.Extra {
		s.extras["sandbox."+k] = s.Sandbox.Extra[k]
	}
	for k := range s.Logging.Extra {
		s.extras["logging."+k] = s.Logging.Extra[k]
	}
	for name, inst := range s.Providers.Instances {
		for k := range inst.Extra {
			s.extras["providers.instances."+name+"."+k] = inst.Extra[k]
		}
	}
}

// CollectAllExtraFields returns dotted paths for every unrecognized key,
// for strict-mode typo audits.
func (s *Settings) CollectAllExtraFields() []string {
	out := make([]string, 0, len(s.extras))
	for k := range s.extras {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ResolveModelAlias looks up name in models.aliases, returning name
// unchanged if there is no alias.
func (s *Settings) ResolveModelAlias(name string) string {
	if resolved, ok := s.Models.Aliases[name]; ok {
		return resolved
	}
	return name
}

// GetNativeModelID returns the provider's native model string for a
// canonical model id, or "" if no such binding exists.
func (s *Settings) GetNativeModelID(canonical, provider string) string {
	identity, ok := s.Models.Registry[canonical]
	if !ok {
		return ""
	}
	if b := identity.GetBinding(provider); b != nil {
		return b.ModelID
	}
	return ""
}

// GetEffectiveContext returns the effective context window for a canonical
// model on a given provider: the per-binding override if set, else the
// model's native context size.
func (s *Settings) GetEffectiveContext(canonical, provider string) int {
	identity, ok := s.Models.Registry[canonical]
	if !ok {
		return 0
	}
	return identity.EffectiveContext(provider)
}

// DefaultModel returns the configured default model id.
func (s *Settings) DefaultModel() string { return s.Models.Default }

// DefaultProvider returns the configured default provider instance name.
func (s *Settings) DefaultProvider() string { return s.Providers.Default }

// Verbose reports whether verbose output is enabled.
func (s *Settings) Verbose() bool { return s.Behavior.Verbose }
