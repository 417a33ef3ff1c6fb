package claude

import (
	"context"
	"strings"

	"godex/pkg/harness"
)

var defaultClaudeAliases = map[string]string{
	"sonnet":   "claude-sonnet-4-6",
	"sonnet45": "claude-sonnet-4-5",
	"opus":     "claude-opus-4-6",
	"opus45":   "claude-opus-4-5",
	"haiku":    "claude-haiku-4-5",
}

const claudePrefix = "claude-"

// aliasTable merges the built-in aliases with the instance's extras, extras
// winning. Keys compare case-insensitively.
func (h *Harness) aliasTable() map[string]string {
	table := make(map[string]string, len(defaultClaudeAliases)+len(h.extraAliases))
	for k, v := range defaultClaudeAliases {
		table[k] = v
	}
	for k, v := range h.extraAliases {
		table[strings.ToLower(k)] = v
	}
	return table
}

// ExpandAlias resolves a short model alias to its full id, or returns the
// input unchanged.
func (h *Harness) ExpandAlias(alias string) string {
	if full, ok := h.aliasTable()[strings.ToLower(alias)]; ok {
		return full
	}
	return alias
}

// MatchesModel reports whether this harness serves the model: any alias
// key or value, or anything under the claude- prefix.
func (h *Harness) MatchesModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, claudePrefix) {
		return true
	}
	for key, full := range h.aliasTable() {
		if lower == key || lower == strings.ToLower(full) {
			return true
		}
	}
	return false
}

// listModelsWithDiscovery asks the API for the model list; without a client
// there is nothing to report.
func (h *Harness) listModelsWithDiscovery(ctx context.Context) ([]harness.ModelInfo, error) {
	if h.testClient != nil {
		return h.testClient.ListModels(ctx)
	}
	if h.client != nil {
		return h.client.ListModels(ctx)
	}
	return nil, nil
}
