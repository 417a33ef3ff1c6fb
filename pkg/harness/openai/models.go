package openai

import (
	"context"
	"strings"

	"godex/pkg/harness"
)

// ExpandAlias resolves a configured alias to its full model id, or returns
// the input unchanged. Lookup is case-insensitive.
func (h *Harness) ExpandAlias(alias string) string {
	lower := strings.ToLower(alias)
	for key, full := range h.aliases {
		if strings.ToLower(key) == lower {
			return full
		}
	}
	return alias
}

// MatchesModel reports whether this instance claims the model: a configured
// alias (key or value) or prefix. With no configuration it claims nothing
// and relies on the router's fallback.
func (h *Harness) MatchesModel(model string) bool {
	lower := strings.ToLower(model)
	for key, full := range h.aliases {
		if strings.ToLower(key) == lower || strings.ToLower(full) == lower {
			return true
		}
	}
	for _, prefix := range h.prefixes {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// listModelsWithDiscovery queries the endpoint when a client is present; a
// failed or absent discovery yields an empty list rather than an error.
func (h *Harness) listModelsWithDiscovery(ctx context.Context) ([]harness.ModelInfo, error) {
	if h.client != nil {
		if models, err := h.client.ListModels(ctx); err == nil {
			return models, nil
		}
	}
	return []harness.ModelInfo{}, nil
}
