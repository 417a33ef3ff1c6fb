package harness

import (
	"context"
	"time"
)

// RunToolLoop is the generic agentic tool loop shared by the harnesses: it
// streams a turn, executes any tool calls through handler, folds the
// results back into the message history, and streams again until the model
// stops calling tools or MaxTurns is reached.
func RunToolLoop(
	ctx context.Context,
	streamTurn func(ctx context.Context, turn *Turn, onEvent func(Event) error) error,
	turn *Turn,
	handler ToolHandler,
	opts LoopOptions,
) (*TurnResult, error) {
	start := time.Now()
	combined := &TurnResult{}
	finish := func(err error) (*TurnResult, error) {
		combined.Duration = time.Since(start)
		return combined, err
	}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	current := turn
	for i := 0; i < maxTurns; i++ {
		var pending []ToolCallEvent
		err := streamTurn(ctx, current, func(ev Event) error {
			accumulate(combined, ev)
			if ev.Kind == EventToolCall && ev.ToolCall != nil {
				pending = append(pending, *ev.ToolCall)
			}
			if opts.OnEvent != nil {
				return opts.OnEvent(ev)
			}
			return nil
		})
		if err != nil {
			return finish(err)
		}
		if len(pending) == 0 {
			break
		}

		followups, err := executeCalls(ctx, handler, pending, combined)
		if err != nil {
			return finish(err)
		}
		next := *current
		next.Messages = append(next.Messages, followups...)
		current = &next
	}

	return finish(nil)
}

// executeCalls runs each pending tool call through handler and returns the
// call/result message pairs to feed back into the next turn.
func executeCalls(ctx context.Context, handler ToolHandler, calls []ToolCallEvent, combined *TurnResult) ([]Message, error) {
	followups := make([]Message, 0, len(calls)*2)
	for _, call := range calls {
		result, err := handler.Handle(ctx, call)
		if err != nil {
			return nil, err
		}
		output := ""
		if result != nil {
			output = result.Output
			combined.Events = append(combined.Events, NewToolResultEvent(result.CallID, result.Output, result.IsError))
		}
		followups = append(followups,
			Message{Role: "assistant", Content: call.Arguments, Name: call.Name, ToolID: call.CallID},
			Message{Role: "tool", Content: output, ToolID: call.CallID},
		)
	}
	return followups, nil
}
