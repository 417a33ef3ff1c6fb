// Package openai implements the OpenAI-compatible harness for any Chat
// Completions API provider (OpenAI, Gemini, Groq, local models, etc.).
package openai

import (
	"context"

	"godex/pkg/backend"
	backendOAI "godex/pkg/backend/openapi"
	"godex/pkg/harness"
	"godex/pkg/protocol"
	"godex/pkg/sse"
)

// ClientWrapper wraps the existing backend openapi.Client to adapt it for
// harness use. It delegates all API calls to the underlying client.
type ClientWrapper struct {
	inner *backendOAI.Client
}

// NewClientWrapper creates a wrapper around an existing OpenAI-compatible backend client.
func NewClientWrapper(client *backendOAI.Client) *ClientWrapper {
	return &ClientWrapper{inner: client}
}

// StreamResponses sends a protocol request and streams raw SSE events.
func (w *ClientWrapper) StreamResponses(ctx context.Context, req protocol.ResponsesRequest, onEvent func(sse.Event) error) error {
	return w.inner.StreamResponses(ctx, req, onEvent)
}

// StreamAndCollectRaw sends a request and returns the raw backend result.
func (w *ClientWrapper) StreamAndCollectRaw(ctx context.Context, req protocol.ResponsesRequest) (backend.StreamResult, error) {
	return w.inner.StreamAndCollect(ctx, req)
}

// ListModels returns the backend's models converted to harness form.
func (w *ClientWrapper) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	models, err := w.inner.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return ConvertModels(models), nil
}

// ConvertModels translates backend.ModelInfo to harness.ModelInfo.
func ConvertModels(models []backend.ModelInfo) []harness.ModelInfo {
	out := make([]harness.ModelInfo, len(models))
	for i, m := range models {
		out[i] = harness.ModelInfo{
			ID:       m.ID,
			Name:     m.DisplayName,
			Provider: "openai",
		}
	}
	return out
}
