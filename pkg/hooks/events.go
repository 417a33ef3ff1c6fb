// Package hooks dispatches lifecycle events to external commands with
// structured JSON I/O.
package hooks

import "time"

// Event identifies a lifecycle point a hook can observe.
type Event string

const (
	// PreToolUse fires before a tool executes. Can modify input, block, or skip.
	PreToolUse Event = "PRE_TOOL_USE"
	// PostToolUse fires after a tool executes. Can modify output, cannot block.
	PostToolUse Event = "POST_TOOL_USE"
	// ContextBuild fires while assembling the system prompt. Can inject, cannot block.
	ContextBuild Event = "CONTEXT_BUILD"
)

// Action is the verdict a hook returns for an event.
type Action string

const (
	ActionContinue Action = "continue"
	ActionBlock    Action = "block"
	ActionSkip     Action = "skip"
)

// ToolMetrics carries timing/size information about a completed tool call,
// made available to POST_TOOL_USE hooks.
type ToolMetrics struct {
	DurationMs int64 `json:"duration_ms,omitempty"`
	OutputSize int   `json:"output_size,omitempty"`
}

// Context is the structured input a hook subprocess receives on stdin.
type Context struct {
	Event       Event          `json:"event"`
	SessionID   string         `json:"session_id"`
	Cwd         string         `json:"cwd"`
	ToolName    string         `json:"tool_name,omitempty"`
	ToolInput   map[string]any `json:"tool_input,omitempty"`
	ToolResult  map[string]any `json:"tool_result,omitempty"`
	ToolMetrics *ToolMetrics   `json:"tool_metrics,omitempty"`

	BaseSystemPrompt string           `json:"base_system_prompt,omitempty"`
	InjectionsSoFar  []map[string]any `json:"injections_so_far,omitempty"`
}

// Result is the structured output a hook subprocess returns on stdout.
type Result struct {
	Action  Action `json:"action,omitempty"`
	Message string `json:"message,omitempty"`

	ModifiedInput  map[string]any `json:"modified_input,omitempty"`
	ModifiedOutput string         `json:"modified_output,omitempty"`

	InjectSystemMessage string `json:"inject_system_message,omitempty"`

	ContextInjection string `json:"context_injection,omitempty"`
	ContextLocation  string `json:"context_location,omitempty"` // "prepend" | "append"
}

// Timeout is the hard per-hook subprocess deadline.
const Timeout = 30 * time.Second
