package claude

import "godex/pkg/harness"

// MockOption configures a Claude-flavored mock harness.
type MockOption func(*harness.MockConfig)

// NewMock returns a recording mock harness with Claude defaults applied,
// then customized by the given options.
func NewMock(opts ...MockOption) *harness.Mock {
	cfg := harness.MockConfig{
		HarnessName: "claude",
		Record:      true,
		Models: []harness.ModelInfo{
			{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: "claude"},
			{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Provider: "claude"},
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

// WithThinkingFlow scripts an extended-thinking turn: thinking deltas, then
// the text response, then usage.
func WithThinkingFlow(thinkingText, responseText string) MockOption {
	return func(cfg *harness.MockConfig) {
		script(cfg,
			harness.NewThinkingEvent(thinkingText),
			harness.NewTextEvent(responseText),
			harness.NewUsageEvent(500, 200),
		)
	}
}

// WithToolUseFlow scripts a tool_use turn followed by a text turn, the
// shape a real tool round produces.
func WithToolUseFlow(toolName, toolArgs, responseText string) MockOption {
	return func(cfg *harness.MockConfig) {
		script(cfg, harness.NewToolCallEvent("toolu_01", toolName, toolArgs))
		script(cfg,
			harness.NewTextEvent(responseText),
			harness.NewUsageEvent(800, 150),
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

// WithThinkingAndToolUse scripts thinking followed by a tool call, then a
// text turn for the round after the tool result.
func WithThinkingAndToolUse(thinkingText, toolName, toolArgs, responseText string) MockOption {
	return func(cfg *harness.MockConfig) {
		script(cfg,
			harness.NewThinkingEvent(thinkingText),
			harness.NewToolCallEvent("toolu_01", toolName, toolArgs),
		)
		script(cfg,
			harness.NewTextEvent(responseText),
			harness.NewUsageEvent(1000, 300),
		)
	}
}
