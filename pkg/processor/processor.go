// Package processor drives the tool-loop state machine: it
// streams one model turn through a harness.Harness, executes any tool calls
// under hook and permission mediation, re-feeds results, and repeats until
// the model yields a tool-free response, the round bound is hit, or the
// caller cancels. It generalizes harness.RunToolLoop (kept for harnesses
// driving their own, simpler loop) with the orthogonal tool-call recovery
// subsystem in recovery.go.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"godex/pkg/harness"
	"godex/pkg/hooks"
)

// ToolCallDisplay is the UI-facing projection of a pending tool call.
type ToolCallDisplay struct {
	ID          string
	Name        string
	Arguments   string // JSON-encoded
	IsRecovered bool
}

// ToolResultDisplay is the UI-facing projection of a completed tool call.
type ToolResultDisplay struct {
	ID         string
	Name       string
	Success    bool
	Output     string
	Error      string
	DurationMs int64
}

// Callbacks is the UI-agnostic observation and control surface for a turn.
// Different front ends (TUI, CLI, JSON renderer) implement this to drive
// the processor without it knowing how output is displayed.
type Callbacks interface {
	OnStreamStart()
	OnStreamEnd()
	OnTextDelta(text string)
	OnThinkingDelta(text string)
	OnToolCall(call ToolCallDisplay)
	OnToolResult(result ToolResultDisplay)
	OnRoundStart(round int)
	OnInfo(message string)
	// RequestPermission asks the user (or a policy) whether call may run.
	RequestPermission(call ToolCallDisplay) bool
	// IsCancelled is polled between events, before each tool execution, and
	// between tool calls.
	IsCancelled() bool
}

// NoopCallbacks is a Callbacks that observes nothing, auto-approves every
// tool, and never cancels. Useful as a base to embed and override.
type NoopCallbacks struct{}

func (NoopCallbacks) OnStreamStart()                         {}
func (NoopCallbacks) OnStreamEnd()                           {}
func (NoopCallbacks) OnTextDelta(string)                     {}
func (NoopCallbacks) OnThinkingDelta(string)                 {}
func (NoopCallbacks) OnToolCall(ToolCallDisplay)             {}
func (NoopCallbacks) OnToolResult(ToolResultDisplay)         {}
func (NoopCallbacks) OnRoundStart(int)                       {}
func (NoopCallbacks) OnInfo(string)                          {}
func (NoopCallbacks) RequestPermission(ToolCallDisplay) bool { return true }
func (NoopCallbacks) IsCancelled() bool                      { return false }

// EventLogger is the subset of the conversation log the processor writes
// to. pkg/convlog implements this; it is optional (nil is a valid Logger).
type EventLogger interface {
	LogToolCall(toolName string, input map[string]any, toolID string)
	LogToolResult(toolName string, success bool, output, errMsg, toolID string, durationMs int64)
	LogToolCallRecovered(toolName string, input map[string]any)
}

// HookDispatcher is the subset of *hooks.Manager the processor needs.
type HookDispatcher interface {
	Dispatch(ctx context.Context, ev hooks.Event, hctx hooks.Context) (hooks.Result, error)
}

// Config holds the per-turn bounds and policies for a Processor.
type Config struct {
	MaxToolRounds      int
	ToolResultMaxChars int
	AutoApproveTools   bool
	DryRun             bool
	Recovery           RecoveryConfig
}

// Result is the outcome of ProcessTurn: the final text, whether the turn was
// cancelled, why it stopped, and the updated message history so the caller
// can persist or display it.
type Result struct {
	ResponseText string
	Thinking     string
	Cancelled    bool
	StopReason   string // "stop" | "max_rounds" | "cancelled"
	Messages     []harness.Message
	Events       []harness.Event
	Usage        *harness.UsageEvent
}

var errCancelled = errors.New("processor: cancelled")

// Processor drives the tool loop for one conversation. It is not safe for
// concurrent turns; use one instance per conversation.
type Processor struct {
	Harness   harness.Harness
	Tools     *Registry
	Hooks     HookDispatcher
	Callbacks Callbacks
	Logger    EventLogger
	Config    Config

	SessionID string
	Cwd       string

	// Model overrides the harness default model for every turn.
	Model string
	// Reasoning, when set, is attached to every turn sent to the harness.
	Reasoning *harness.ReasoningConfig
	// SkillSource, when set, resolves /skill slash commands in the latest
	// user message (see skills.go). Optional.
	SkillSource SkillResolver

	recoverer         *Recoverer
	pendingInjections []string
}

// New builds a Processor with the given harness, tool registry, and config.
// Callbacks default to NoopCallbacks; Hooks and Logger default to nil (both
// optional).
func New(h harness.Harness, tools *Registry, cfg Config) *Processor {
	return &Processor{
		Harness:   h,
		Tools:     tools,
		Callbacks: NoopCallbacks{},
		Config:    cfg,
		recoverer: NewRecoverer(cfg.Recovery),
	}
}

// toolSpecs projects the registry into the harness tool-definition shape.
func (p *Processor) toolSpecs() []harness.ToolSpec {
	if p.Tools == nil {
		return nil
	}
	tools := p.Tools.List()
	if len(tools) == 0 {
		return nil
	}
	specs := make([]harness.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, harness.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		})
	}
	return specs
}

type pendingCall struct {
	id          string
	name        string
	args        map[string]any
	argsJSON    string
	isRecovered bool
}

// ProcessTurn runs the tool loop over the given message
// history and system prompt, returning once the model produces a tool-free
// response, the round bound is reached, or the turn is cancelled.
func (p *Processor) ProcessTurn(ctx context.Context, messages []harness.Message, systemPrompt string) (*Result, error) {
	result := &Result{Messages: p.applySkillTriggers(append([]harness.Message(nil), messages...))}
	maxRounds := p.Config.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}
	turnRecoveries := 0

	for round := 0; ; round++ {
		if p.Callbacks.IsCancelled() {
			result.Cancelled = true
			result.StopReason = "cancelled"
			return result, nil
		}
		p.Callbacks.OnRoundStart(round)

		prompt := systemPrompt
		if len(p.pendingInjections) > 0 {
			prompt = strings.Join(append([]string{prompt}, p.pendingInjections...), "\n\n")
			p.pendingInjections = nil
		}

		turn := &harness.Turn{
			Model:        p.Model,
			Instructions: prompt,
			Messages:     result.Messages,
			Tools:        p.toolSpecs(),
			Reasoning:    p.Reasoning,
		}

		var text, thinking strings.Builder
		var toolCalls []harness.ToolCallEvent
		var usage *harness.UsageEvent

		p.Callbacks.OnStreamStart()
		streamErr := p.Harness.StreamTurn(ctx, turn, func(ev harness.Event) error {
			if p.Callbacks.IsCancelled() {
				return errCancelled
			}
			result.Events = append(result.Events, ev)
			switch ev.Kind {
			case harness.EventText:
				if ev.Text != nil {
					if ev.Text.Complete != "" {
						text.Reset()
						text.WriteString(ev.Text.Complete)
					} else {
						text.WriteString(ev.Text.Delta)
					}
					p.Callbacks.OnTextDelta(ev.Text.Delta)
				}
			case harness.EventThinking:
				if ev.Thinking != nil {
					if ev.Thinking.Complete != "" {
						thinking.Reset()
						thinking.WriteString(ev.Thinking.Complete)
					} else {
						thinking.WriteString(ev.Thinking.Delta)
					}
					p.Callbacks.OnThinkingDelta(ev.Thinking.Delta)
				}
			case harness.EventToolCall:
				if ev.ToolCall != nil {
					toolCalls = append(toolCalls, *ev.ToolCall)
				}
			case harness.EventUsage:
				usage = ev.Usage
			}
			return nil
		})
		p.Callbacks.OnStreamEnd()

		if streamErr != nil {
			if errors.Is(streamErr, errCancelled) {
				// Keep whatever was streamed before the cancel, but do not
				// append a partial assistant message to history.
				result.ResponseText = text.String()
				result.Thinking = thinking.String()
				result.Cancelled = true
				result.StopReason = "cancelled"
				return result, nil
			}
			return result, streamErr
		}
		if usage != nil {
			result.Usage = usage
		}

		if text.Len() > 0 {
			result.ResponseText = text.String()
			result.Messages = append(result.Messages, harness.Message{Role: "assistant", Content: text.String()})
		}
		if thinking.Len() > 0 {
			result.Thinking = thinking.String()
		}

		var recovered *RecoveredCall
		if len(toolCalls) == 0 && thinking.Len() > 0 && p.Config.Recovery.Enabled && p.Tools != nil {
			if rc, ok := p.recoverer.Attempt(thinking.String(), p.Tools, turnRecoveries, round); ok {
				recovered = rc
			}
		}

		if len(toolCalls) == 0 && recovered == nil {
			result.StopReason = "stop"
			return result, nil
		}

		calls := make([]pendingCall, 0, len(toolCalls)+1)
		if recovered != nil {
			argsJSON, _ := json.Marshal(recovered.Arguments)
			calls = append(calls, pendingCall{
				id:          "recovered-" + uuid.NewString()[:8],
				name:        recovered.ToolName,
				args:        recovered.Arguments,
				argsJSON:    string(argsJSON),
				isRecovered: true,
			})
			turnRecoveries++
			if p.Logger != nil {
				p.Logger.LogToolCallRecovered(recovered.ToolName, recovered.Arguments)
			}
			if p.Config.Recovery.FeedbackEnabled {
				p.pendingInjections = append(p.pendingInjections, fmt.Sprintf(
					"Reminder: emit tool calls through the structured tool-call mechanism, not as JSON inside your reasoning. (Recovered a call to %q last round.)",
					recovered.ToolName,
				))
			}
			p.Callbacks.OnInfo(fmt.Sprintf("Recovered tool call to %q from thinking text", recovered.ToolName))
		} else {
			for _, tc := range toolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				calls = append(calls, pendingCall{id: tc.CallID, name: tc.Name, args: args, argsJSON: tc.Arguments})
			}
		}

		for _, call := range calls {
			if p.Callbacks.IsCancelled() {
				result.Cancelled = true
				result.StopReason = "cancelled"
				return result, nil
			}

			display := ToolCallDisplay{ID: call.id, Name: call.name, Arguments: call.argsJSON, IsRecovered: call.isRecovered}
			p.Callbacks.OnToolCall(display)
			if p.Logger != nil {
				p.Logger.LogToolCall(call.name, call.args, call.id)
			}

			start := time.Now()
			toolResult := p.runOneTool(ctx, call)
			duration := time.Since(start)

			p.Callbacks.OnToolResult(ToolResultDisplay{
				ID: call.id, Name: call.name, Success: toolResult.Success,
				Output: toolResult.Output, Error: toolResult.Error, DurationMs: duration.Milliseconds(),
			})
			if p.Logger != nil {
				p.Logger.LogToolResult(call.name, toolResult.Success, toolResult.Output, toolResult.Error, call.id, duration.Milliseconds())
			}

			content := truncate(toolResult.Output, p.Config.ToolResultMaxChars)
			if !toolResult.Success {
				content = toolResult.Error
			}
			result.Messages = append(result.Messages,
				harness.Message{Role: "assistant", Content: call.argsJSON, Name: call.name, ToolID: call.id},
				harness.Message{Role: "tool", Content: content, ToolID: call.id},
			)
		}

		if round+1 >= maxRounds {
			result.StopReason = "max_rounds"
			return result, nil
		}
	}
}

// runOneTool mediates one tool execution through PRE_TOOL_USE, permission,
// dry-run, execution, and POST_TOOL_USE. It never returns an error: all
// failure modes become a failed
// ToolResult that is re-fed to the model.
func (p *Processor) runOneTool(ctx context.Context, call pendingCall) ToolResult {
	tool, ok := p.Tools.Get(call.name)
	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", call.name)}
	}

	input := call.args
	if p.Hooks != nil {
		hres, err := p.Hooks.Dispatch(ctx, hooks.PreToolUse, hooks.Context{
			Event: hooks.PreToolUse, SessionID: p.SessionID, Cwd: p.Cwd,
			ToolName: call.name, ToolInput: input,
		})
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}
		}
		switch hres.Action {
		case hooks.ActionBlock:
			return ToolResult{Success: false, Error: hres.Message}
		case hooks.ActionSkip:
			return ToolResult{Success: true, Output: "[skipped]"}
		}
		if hres.ModifiedInput != nil {
			input = hres.ModifiedInput
		}
	}

	if schema := tool.InputSchema(); schema != nil && input != nil {
		if !validatesAgainst(input, schema) {
			return ToolResult{Success: false, Error: fmt.Sprintf("input for tool %q does not match its schema", call.name)}
		}
	}

	if tool.RequiresPermission() && !p.Config.AutoApproveTools {
		display := ToolCallDisplay{ID: call.id, Name: call.name, Arguments: call.argsJSON, IsRecovered: call.isRecovered}
		if !p.Callbacks.RequestPermission(display) {
			return ToolResult{Success: false, Error: "permission denied"}
		}
	}

	if p.Config.DryRun {
		return ToolResult{Success: true, Output: "[dry run]"}
	}

	start := time.Now()
	res, err := tool.Execute(ctx, input)
	if err != nil {
		res = ToolResult{Success: false, Error: err.Error()}
	}
	duration := time.Since(start)

	if p.Hooks != nil {
		hres, herr := p.Hooks.Dispatch(ctx, hooks.PostToolUse, hooks.Context{
			Event: hooks.PostToolUse, SessionID: p.SessionID, Cwd: p.Cwd,
			ToolName: call.name, ToolInput: input,
			ToolResult:  map[string]any{"success": res.Success, "output": res.Output, "error": res.Error},
			ToolMetrics: &hooks.ToolMetrics{DurationMs: duration.Milliseconds(), OutputSize: len(res.Output)},
		})
		if herr == nil {
			if hres.ModifiedOutput != "" {
				res.Output = hres.ModifiedOutput
			}
			if hres.InjectSystemMessage != "" {
				p.pendingInjections = append(p.pendingInjections, hres.InjectSystemMessage)
			}
		}
	}

	return res
}

// truncate caps s at max characters, appending a notice when it does.
// max <= 0 means unlimited.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("\n[TRUNCATED at %d characters]", max)
}
