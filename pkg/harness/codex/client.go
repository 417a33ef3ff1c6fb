package codex

import (
	"context"

	backendCodex "godex/pkg/backend/codex"
	"godex/pkg/harness"
	"godex/pkg/protocol"
	"godex/pkg/sse"
)

// ClientWrapper adapts the backend Codex client for harness use, mirroring
// the claude and openai wrappers. All HTTP work lives in the backend client.
type ClientWrapper struct {
	inner *backendCodex.Client
}

// NewClientWrapper wraps an existing backend Codex client.
func NewClientWrapper(inner *backendCodex.Client) *ClientWrapper {
	return &ClientWrapper{inner: inner}
}

// StreamResponses sends a Responses API request and streams raw SSE events.
func (w *ClientWrapper) StreamResponses(ctx context.Context, req protocol.ResponsesRequest, onEvent func(sse.Event) error) error {
	return w.inner.StreamResponses(ctx, req, onEvent)
}

// ListModels returns the backend's models converted to harness form.
func (w *ClientWrapper) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	models, err := w.inner.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]harness.ModelInfo, len(models))
	for i, m := range models {
		out[i] = harness.ModelInfo{ID: m.ID, Name: m.DisplayName, Provider: "codex"}
	}
	return out, nil
}
