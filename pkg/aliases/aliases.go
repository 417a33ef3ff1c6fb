// Package aliases keeps short model aliases pointed at the newest matching
// model a provider actually serves, by querying backend model listings.
package aliases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"godex/pkg/backend"
	"godex/pkg/settings"
)

// Rule maps an alias to a model family: the resolver queries Backend and
// picks the latest model whose id starts with Prefix (and, when set, ends
// with Suffix), skipping any id in Exclude.
type Rule struct {
	Alias   string   // e.g. "opus"
	Prefix  string   // e.g. "claude-opus-" — latest match wins
	Suffix  string   // optional, e.g. "-codex"
	Backend string   // backend instance to query
	Exclude []string // exact ids to skip
}

// DefaultRules returns the built-in alias resolution rules.
func DefaultRules() []Rule {
	return []Rule{
		// Anthropic
		{Alias: "opus", Prefix: "claude-opus-", Backend: "anthropic"},
		{Alias: "sonnet", Prefix: "claude-sonnet-", Backend: "anthropic"},
		{Alias: "haiku", Prefix: "claude-haiku-", Backend: "anthropic"},

		// Gemini
		{Alias: "gemini", Prefix: "gemini-2.5-pro", Backend: "gemini"},
		{Alias: "flash", Prefix: "gemini-2.5-flash", Backend: "gemini"},
	}
}

// RulesFromSettings derives rules from the typed model registry: every
// canonical model with a family capability and a provider binding yields a
// family-alias rule against that provider. Registry-driven rules come
// first, followed by the built-in defaults for every alias no registry
// family claims, so a configured family wins.
func RulesFromSettings(models settings.ModelsConfig) []Rule {
	var rules []Rule
	for _, identity := range models.Registry {
		family := identity.Capabilities.Family
		if family == "" {
			continue
		}
		for provider, binding := range identity.Bindings {
			prefix := binding.ModelID
			if i := strings.LastIndexByte(prefix, '-'); i > 0 {
				prefix = prefix[:i+1]
			}
			rules = append(rules, Rule{Alias: family, Prefix: prefix, Backend: provider})
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Alias < rules[j].Alias })
	configured := make(map[string]bool, len(rules))
	for _, r := range rules {
		configured[r.Alias] = true
	}
	for _, d := range DefaultRules() {
		if !configured[d.Alias] {
			rules = append(rules, d)
		}
	}
	return rules
}

// Resolution is the outcome of resolving one alias.
type Resolution struct {
	Alias    string
	Previous string // old value (empty if new)
	Resolved string // new value
	Changed  bool
	Error    string // non-empty if resolution failed
}

// listerCache memoizes one ListModels call per backend across a Resolve run.
type listerCache struct {
	backends map[string]backend.Backend
	models   map[string][]backend.ModelInfo
}

func (lc *listerCache) list(ctx context.Context, name string) ([]backend.ModelInfo, error) {
	if models, ok := lc.models[name]; ok {
		return models, nil
	}
	be, ok := lc.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend %q not available", name)
	}
	models, err := be.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	lc.models[name] = models
	return models, nil
}

// Resolve evaluates each rule against the live backend model listings.
// current is the existing alias map (may be nil); rules defaults to
// DefaultRules. A failed rule keeps its previous value and carries the
// error in the Resolution.
func Resolve(ctx context.Context, backends map[string]backend.Backend, current map[string]string, rules []Rule) []Resolution {
	if rules == nil {
		rules = DefaultRules()
	}
	if current == nil {
		current = map[string]string{}
	}
	cache := &listerCache{backends: backends, models: map[string][]backend.ModelInfo{}}

	var results []Resolution
	for _, rule := range rules {
		res := Resolution{Alias: rule.Alias, Previous: current[rule.Alias]}

		models, err := cache.list(ctx, rule.Backend)
		if err != nil {
			res.Error = err.Error()
			res.Resolved = res.Previous
			results = append(results, res)
			continue
		}

		resolved := pickLatest(models, rule.Prefix, rule.Suffix, rule.Exclude)
		if resolved == "" {
			res.Error = fmt.Sprintf("no model matching prefix %q", rule.Prefix)
			res.Resolved = res.Previous
		} else {
			res.Resolved = resolved
			res.Changed = res.Previous != resolved
		}
		results = append(results, res)
	}
	return results
}

// pickLatest returns the lexicographically greatest model id with the given
// prefix (and suffix, when set), skipping excluded ids; version numbers and
// release dates sort later. When no prefix match exists, an exact-id match
// is accepted (for rules whose prefix is a complete id, e.g.
// "gemini-2.5-pro").
func pickLatest(models []backend.ModelInfo, prefix, suffix string, exclude []string) string {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	latest := ""
	for _, m := range models {
		if skip[m.ID] || !strings.HasPrefix(m.ID, prefix) {
			continue
		}
		if suffix != "" && !strings.HasSuffix(m.ID, suffix) {
			continue
		}
		if m.ID > latest {
			latest = m.ID
		}
	}
	if latest != "" {
		return latest
	}
	for _, m := range models {
		if m.ID == prefix && !skip[m.ID] {
			return m.ID
		}
	}
	return ""
}

// ApplyResolutions folds successful resolutions into the alias map and
// returns how many entries changed.
func ApplyResolutions(aliases map[string]string, resolutions []Resolution) int {
	changed := 0
	for _, r := range resolutions {
		if r.Error != "" || r.Resolved == "" {
			continue
		}
		if aliases[r.Alias] != r.Resolved {
			aliases[r.Alias] = r.Resolved
			changed++
		}
	}
	return changed
}
