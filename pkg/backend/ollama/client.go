// Package ollama implements a Backend for a local Ollama server. Ollama
// streams line-delimited JSON from /api/chat rather than SSE, so this client
// reads NDJSON chunks and translates them into the internal stream events.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"godex/pkg/backend"
	"godex/pkg/protocol"
	"godex/pkg/sse"
)

const defaultTimeout = 300 * time.Second

// Config holds configuration for the Ollama backend.
type Config struct {
	Name    string
	BaseURL string // defaults to GODEX_OLLAMA_HOST, then OLLAMA_HOST, then http://localhost:11434
	Timeout time.Duration
}

// Client implements the Backend interface against Ollama's /api/chat.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

var _ backend.Backend = (*Client)(nil)

// New creates a new Ollama client.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "ollama"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = hostFromEnv()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}, nil
}

func hostFromEnv() string {
	for _, key := range []string{"GODEX_OLLAMA_HOST", "OLLAMA_HOST"} {
		if v := os.Getenv(key); v != "" {
			if !strings.Contains(v, "://") {
				v = "http://" + v
			}
			return v
		}
	}
	return "http://localhost:11434"
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return c.cfg.Name
}

// chatMessage is one message in Ollama's chat request/response format.
type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Thinking  string         `json:"thinking,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// chatChunk is one NDJSON line from /api/chat.
type chatChunk struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// StreamResponses sends a chat request and streams translated events back.
func (c *Client) StreamResponses(ctx context.Context, req protocol.ResponsesRequest, onEvent func(sse.Event) error) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback is required")
	}

	payload, err := json.Marshal(c.toChatRequest(req))
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return c.parseNDJSONStream(resp.Body, onEvent)
}

// StreamAndCollect streams a request and returns collected output.
func (c *Client) StreamAndCollect(ctx context.Context, req protocol.ResponsesRequest) (backend.StreamResult, error) {
	var result backend.StreamResult
	var text strings.Builder

	err := c.StreamResponses(ctx, req, func(ev sse.Event) error {
		switch ev.Value.Type {
		case "response.output_text.delta":
			text.WriteString(ev.Value.Delta)
		case "response.output_item.done":
			if ev.Value.Item != nil && ev.Value.Item.Type == "function_call" {
				result.ToolCalls = append(result.ToolCalls, backend.ToolCall{
					CallID:    ev.Value.Item.CallID,
					Name:      ev.Value.Item.Name,
					Arguments: ev.Value.Item.Arguments,
				})
			}
		case "response.done":
			if ev.Value.Response != nil {
				result.Usage = ev.Value.Response.Usage
			}
		}
		return nil
	})

	result.Text = text.String()
	return result, err
}

// ListModels queries /api/tags for locally available models.
func (c *Client) ListModels(ctx context.Context) ([]backend.ModelInfo, error) {
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/api/tags"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tags request failed with status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	models := make([]backend.ModelInfo, len(tags.Models))
	for i, m := range tags.Models {
		models[i] = backend.ModelInfo{ID: m.Name}
	}
	return models, nil
}

// toChatRequest converts a ResponsesRequest to Ollama's chat format.
func (c *Client) toChatRequest(req protocol.ResponsesRequest) map[string]any {
	var messages []map[string]any
	if req.Instructions != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.Instructions})
	}

	for _, item := range req.Input {
		switch item.Type {
		case "message":
			var content string
			for _, part := range item.Content {
				if part.Type == "input_text" || part.Type == "text" {
					content += part.Text
				}
			}
			messages = append(messages, map[string]any{"role": item.Role, "content": content})

		case "function_call":
			var args map[string]any
			if item.Arguments != "" {
				json.Unmarshal([]byte(item.Arguments), &args)
			}
			messages = append(messages, map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{
					{"function": map[string]any{"name": item.Name, "arguments": args}},
				},
			})

		case "function_call_output":
			messages = append(messages, map[string]any{"role": "tool", "content": item.Output})
		}
	}

	out := map[string]any{
		"model":    req.Model,
		"messages": messages,
		"stream":   true,
	}

	if len(req.Tools) > 0 {
		var tools []map[string]any
		for _, t := range req.Tools {
			if t.Type != "function" {
				continue
			}
			var params map[string]any
			if len(t.Parameters) > 0 {
				json.Unmarshal(t.Parameters, &params)
			}
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  params,
				},
			})
		}
		out["tools"] = tools
	}

	// GPT-OSS models take a string think level; other reasoning models take a
	// boolean. The effort string was already translated upstream.
	if req.Reasoning != nil && req.Reasoning.Effort != "" && req.Reasoning.Effort != "none" {
		if strings.Contains(req.Model, "gpt-oss") {
			out["think"] = req.Reasoning.Effort
		} else {
			out["think"] = true
		}
	}

	return out
}

// parseNDJSONStream reads line-delimited JSON chunks from body and emits
// translated stream events.
func (c *Client) parseNDJSONStream(body io.Reader, onEvent func(sse.Event) error) error {
	s := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)

	var usage protocol.Usage
	callSeq := 0

	for s.Scan() {
		line := bytes.TrimSpace(s.Bytes())
		if len(line) == 0 {
			continue
		}
		raw := json.RawMessage(append([]byte(nil), line...))

		var chunk chatChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama: %s", chunk.Error)
		}

		if chunk.Message.Thinking != "" {
			if err := onEvent(sse.Event{Raw: raw, Value: protocol.StreamEvent{
				Type:  "response.reasoning_text.delta",
				Delta: chunk.Message.Thinking,
			}}); err != nil {
				return err
			}
		}
		if chunk.Message.Content != "" {
			if err := onEvent(sse.Event{Raw: raw, Value: protocol.StreamEvent{
				Type:  "response.output_text.delta",
				Delta: chunk.Message.Content,
			}}); err != nil {
				return err
			}
		}

		for _, tc := range chunk.Message.ToolCalls {
			callID := fmt.Sprintf("call_%d", callSeq)
			callSeq++
			args, _ := json.Marshal(tc.Function.Arguments)
			item := &protocol.OutputItem{
				ID:        fmt.Sprintf("item_%d", callSeq),
				Type:      "function_call",
				Name:      tc.Function.Name,
				CallID:    callID,
				Arguments: string(args),
			}
			if err := onEvent(sse.Event{Raw: raw, Value: protocol.StreamEvent{
				Type: "response.output_item.added",
				Item: item,
			}}); err != nil {
				return err
			}
			if err := onEvent(sse.Event{Raw: raw, Value: protocol.StreamEvent{
				Type: "response.output_item.done",
				Item: item,
			}}); err != nil {
				return err
			}
		}

		if chunk.Done {
			usage.InputTokens = chunk.PromptEvalCount
			usage.OutputTokens = chunk.EvalCount
			return onEvent(sse.Event{Raw: raw, Value: protocol.StreamEvent{
				Type:     "response.done",
				Response: &protocol.ResponseRef{Usage: &usage},
			}})
		}
	}
	return s.Err()
}
