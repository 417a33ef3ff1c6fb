package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"godex/pkg/protocol"
	"godex/pkg/sse"
)

// translateRequest converts an internal ResponsesRequest into Anthropic
// MessageNewParams: instructions and system items become system blocks,
// function calls/outputs become tool_use/tool_result content blocks.
func translateRequest(req protocol.ResponsesRequest, defaultMaxTokens int) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(defaultMaxTokens),
	}

	var systemParts []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, item := range req.Input {
		switch item.Type {
		case "message":
			content := textOf(item)
			switch item.Role {
			case "system":
				systemParts = append(systemParts, anthropic.TextBlockParam{Text: content})
			case "user":
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
			case "assistant":
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)))
			}

		case "function_call":
			var input map[string]any
			if item.Arguments != "" {
				json.Unmarshal([]byte(item.Arguments), &input)
			}
			messages = append(messages, anthropic.NewAssistantMessage(
				anthropic.NewToolUseBlock(item.CallID, input, item.Name),
			))

		case "function_call_output":
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(item.CallID, item.Output, false),
			))
		}
	}

	if req.Instructions != "" {
		systemParts = append([]anthropic.TextBlockParam{{Text: req.Instructions}}, systemParts...)
	}
	if len(systemParts) > 0 {
		params.System = systemParts
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools, err := translateTools(req.Tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools
	}
	if req.ToolChoice != "" {
		params.ToolChoice = translateToolChoice(req.ToolChoice)
	}

	return params, nil
}

// textOf pulls the first text part out of a message item.
func textOf(item protocol.ResponseInputItem) string {
	for _, part := range item.Content {
		if part.Type == "input_text" || part.Type == "text" {
			return part.Text
		}
	}
	return ""
}

// translateTools converts wire tool specs into SDK tool params, decoding
// each JSON schema into the properties/required shape the SDK expects.
func translateTools(tools []protocol.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, t := range tools {
		if t.Type != "function" {
			continue
		}

		var schema anthropic.ToolInputSchemaParam
		if len(t.Parameters) > 0 {
			var raw map[string]any
			if err := json.Unmarshal(t.Parameters, &raw); err != nil {
				return nil, fmt.Errorf("parse tool schema for %s: %w", t.Name, err)
			}
			if props, ok := raw["properties"].(map[string]any); ok {
				schema.Properties = props
			}
			if required, ok := raw["required"].([]any); ok {
				for _, r := range required {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}

		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out, nil
}

// translateToolChoice maps the wire tool_choice string onto the SDK union.
func translateToolChoice(choice string) anthropic.ToolChoiceUnionParam {
	switch choice {
	case "none":
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	case "auto":
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	case "required":
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	default:
		// A specific tool name forces that tool.
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: choice}}
	}
}

// streamEvent wraps a protocol event in the sse envelope.
func streamEvent(value protocol.StreamEvent) sse.Event {
	return sse.Event{Value: value}
}

// translateStreamEvent converts one Anthropic stream event into zero or
// more internal SSE events. currentItemID/currentToolID carry tool-call
// identity across the content-block events of one block.
func translateStreamEvent(event anthropic.MessageStreamEventUnion, currentItemID, currentToolID *string) []sse.Event {
	var events []sse.Event

	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		switch block := e.ContentBlock; block.Type {
		case "text":
			*currentItemID = fmt.Sprintf("item_%d", e.Index)
		case "tool_use":
			toolBlock := block.AsToolUse()
			*currentItemID = fmt.Sprintf("item_%d", e.Index)
			*currentToolID = toolBlock.ID
			events = append(events, streamEvent(protocol.StreamEvent{
				Type: "response.output_item.added",
				Item: &protocol.OutputItem{
					ID:     *currentItemID,
					Type:   "function_call",
					Name:   toolBlock.Name,
					CallID: toolBlock.ID,
				},
			}))
		}

	case anthropic.ContentBlockDeltaEvent:
		switch delta := e.Delta; delta.Type {
		case "text_delta":
			events = append(events, streamEvent(protocol.StreamEvent{
				Type:  "response.output_text.delta",
				Delta: delta.AsTextDelta().Text,
			}))
		case "input_json_delta":
			events = append(events, streamEvent(protocol.StreamEvent{
				Type:   "response.function_call_arguments.delta",
				ItemID: *currentItemID,
				Delta:  delta.AsInputJSONDelta().PartialJSON,
				Item:   &protocol.OutputItem{CallID: *currentToolID},
			}))
		}

	case anthropic.MessageStopEvent:
		events = append(events, streamEvent(protocol.StreamEvent{Type: "response.done"}))

	case anthropic.MessageDeltaEvent:
		if e.Usage.OutputTokens > 0 {
			events = append(events, streamEvent(protocol.StreamEvent{
				Type: "response.done",
				Response: &protocol.ResponseRef{
					Usage: &protocol.Usage{OutputTokens: int(e.Usage.OutputTokens)},
				},
			}))
		}
	}

	return events
}
