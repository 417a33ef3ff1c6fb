package openai

import "godex/pkg/harness"

// MockOption configures an OpenAI-flavored mock harness.
type MockOption func(*harness.MockConfig)

// NewMock returns a recording mock harness with OpenAI-compatible defaults
// applied, then customized by the given options.
func NewMock(opts ...MockOption) *harness.Mock {
	cfg := harness.MockConfig{
		HarnessName: "openai",
		Record:      true,
		Models: []harness.ModelInfo{
			{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai"},
			{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai"},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return harness.NewMock(cfg)
}

// script appends one scripted turn.
func script(cfg *harness.MockConfig, events ...harness.Event) {
	cfg.Responses = append(cfg.Responses, events)
}

// WithFunctionCallFlow scripts a function call turn and the text turn that
// follows the tool result.
func WithFunctionCallFlow(toolName, toolArgs, responseText string) MockOption {
	return func(cfg *harness.MockConfig) {
		script(cfg, harness.NewToolCallEvent("call_01", toolName, toolArgs))
		script(cfg,
			harness.NewTextEvent(responseText),
			harness.NewUsageEvent(600, 120),
		)
	}
}

// WithTextResponse scripts a plain text turn.
func WithTextResponse(text string) MockOption {
	return func(cfg *harness.MockConfig) {
		script(cfg,
			harness.NewTextEvent(text),
			harness.NewUsageEvent(200, 50),
		)
	}
}

// WithMultipleFunctionCalls scripts several calls in one turn, then the
// text turn that follows the results.
func WithMultipleFunctionCalls(calls []harness.ToolCallEvent, responseText string) MockOption {
	return func(cfg *harness.MockConfig) {
		events := make([]harness.Event, 0, len(calls))
		for _, c := range calls {
			events = append(events, harness.NewToolCallEvent(c.CallID, c.Name, c.Arguments))
		}
		cfg.Responses = append(cfg.Responses, events)
		script(cfg,
			harness.NewTextEvent(responseText),
			harness.NewUsageEvent(800, 200),
		)
	}
}

// WithErrorResponse scripts a turn that ends in a stream error event.
func WithErrorResponse(message string) MockOption {
	return func(cfg *harness.MockConfig) {
		script(cfg, harness.NewErrorEvent(message))
	}
}
