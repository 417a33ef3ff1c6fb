package harness

import (
	"context"
	"time"
)

// accumulate folds one stream event into a TurnResult: text deltas build
// the final text (a complete snapshot replaces it), usage and tool calls
// are recorded as they arrive.
func accumulate(result *TurnResult, ev Event) {
	result.Events = append(result.Events, ev)
	switch ev.Kind {
	case EventText:
		if ev.Text != nil {
			result.FinalText += ev.Text.Delta
			if ev.Text.Complete != "" {
				result.FinalText = ev.Text.Complete
			}
		}
	case EventUsage:
		result.Usage = ev.Usage
	case EventToolCall:
		if ev.ToolCall != nil {
			result.ToolCalls = append(result.ToolCalls, *ev.ToolCall)
		}
	}
}

// CollectTurn runs one streamed turn and gathers its events into a
// TurnResult. Harnesses implement StreamAndCollect with it.
func CollectTurn(ctx context.Context, streamTurn func(context.Context, *Turn, func(Event) error) error, turn *Turn) (*TurnResult, error) {
	start := time.Now()
	result := &TurnResult{}
	err := streamTurn(ctx, turn, func(ev Event) error {
		accumulate(result, ev)
		return nil
	})
	result.Duration = time.Since(start)
	return result, err
}
