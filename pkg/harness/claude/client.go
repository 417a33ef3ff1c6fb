// Package claude implements the Claude harness for the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	backendAnth "godex/pkg/backend/anthropic"
	"godex/pkg/harness"
)

// ClientWrapper adapts the backend token store for harness use: each call
// builds an SDK client around the current OAuth access token, so refreshed
// tokens are picked up without rebuilding the wrapper.
type ClientWrapper struct {
	tokens *backendAnth.TokenStore
	cfg    ClientConfig
}

// ClientConfig holds the wrapper's request defaults.
type ClientConfig struct {
	// DefaultMaxTokens is used when the request does not specify one.
	DefaultMaxTokens int

	// DefaultThinkingBudget is the default budget_tokens for extended
	// thinking.
	DefaultThinkingBudget int
}

// NewClientWrapper wraps an Anthropic token store.
func NewClientWrapper(tokens *backendAnth.TokenStore, cfg ClientConfig) *ClientWrapper {
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 16384
	}
	if cfg.DefaultThinkingBudget <= 0 {
		cfg.DefaultThinkingBudget = 10000
	}
	return &ClientWrapper{tokens: tokens, cfg: cfg}
}

// sdk returns an SDK client authenticated with the current access token.
func (w *ClientWrapper) sdk() (anthropic.Client, error) {
	token, err := w.tokens.AccessToken()
	if err != nil {
		return anthropic.Client{}, fmt.Errorf("get access token: %w", err)
	}
	return anthropic.NewClient(
		option.WithAuthToken(token),
		option.WithHeader("anthropic-beta", "oauth-2025-04-20"),
	), nil
}

// StreamMessages starts a streaming Messages API call and invokes onEvent
// for each raw Anthropic stream event.
func (w *ClientWrapper) StreamMessages(ctx context.Context, params anthropic.MessageNewParams, onEvent func(anthropic.MessageStreamEventUnion) error) error {
	client, err := w.sdk()
	if err != nil {
		return err
	}

	stream := client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		if err := onEvent(stream.Current()); err != nil {
			return err
		}
	}
	return stream.Err()
}

// ListModels queries the Models API for what this account can use.
func (w *ClientWrapper) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	client, err := w.sdk()
	if err != nil {
		return nil, err
	}

	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	models := make([]harness.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, harness.ModelInfo{ID: m.ID, Name: m.DisplayName, Provider: "claude"})
	}
	return models, nil
}
