package codex

import "godex/pkg/harness"

// MockOption configures a Codex-flavored mock harness.
type MockOption func(*harness.MockConfig)

// NewMock returns a recording mock harness with Codex defaults applied,
// then customized by the given options.
func NewMock(opts ...MockOption) *harness.Mock {
	cfg := harness.MockConfig{
		HarnessName: "codex",
		Record:      true,
		Models: []harness.ModelInfo{
			{ID: "gpt-5.2-codex", Name: "GPT-5.2 Codex", Provider: "codex"},
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

// WithApplyPatchFlow scripts an apply_patch call (preamble, tool call) and
// the text turn that follows the tool result.
func WithApplyPatchFlow(filename, patchContent string) MockOption {
	return func(cfg *harness.MockConfig) {
		patch := "*** Begin Patch\n*** Update File: " + filename + "\n" + patchContent + "\n*** End Patch"
		script(cfg,
			harness.NewPreambleEvent("Applying patch to "+filename),
			harness.NewToolCallEvent("call_patch_1", "apply_patch", patch),
		)
		script(cfg,
			harness.NewTextEvent("Patch applied successfully to "+filename+"."),
			harness.NewUsageEvent(500, 100),
		)
	}
}

// WithPlanFlow scripts a plan-update turn.
func WithPlanFlow(steps []harness.PlanEvent) MockOption {
	return func(cfg *harness.MockConfig) {
		events := []harness.Event{harness.NewPreambleEvent("Creating plan...")}
		for _, step := range steps {
			events = append(events, harness.NewPlanEvent(step.Title, step.Status))
		}
		cfg.Responses = append(cfg.Responses, events)
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
