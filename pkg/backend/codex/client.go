// Package codex implements the Codex/ChatGPT backend: an authenticated
// Responses API endpoint reached with the OAuth tokens pkg/auth manages.
package codex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"godex/pkg/auth"
	"godex/pkg/backend"
	"godex/pkg/harness"
	"godex/pkg/protocol"
	"godex/pkg/sse"
)

const defaultBaseURL = "https://chatgpt.com/backend-api/codex"

// errorBodyLimit caps how much of a failed response body ends up in the
// returned error.
const errorBodyLimit = 256 * 1024

// Config holds configuration for the Codex client.
type Config struct {
	BaseURL      string
	Originator   string
	UserAgent    string
	SessionID    string
	AllowRefresh bool
	RetryMax     int
	RetryDelay   time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Originator == "" {
		cfg.Originator = "codex_cli_rs"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "codex_cli_rs/0.0"
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 1
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 300 * time.Millisecond
	}
	return cfg
}

// Client implements the Backend interface for Codex.
type Client struct {
	httpClient *http.Client
	auth       *auth.Store
	cfg        Config
}

var _ backend.Backend = (*Client)(nil)

// New creates a new Codex client over the given token store.
func New(httpClient *http.Client, authStore *auth.Store, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, auth: authStore, cfg: cfg.withDefaults()}
}

// WithBaseURL returns a copy of the client pointed at a different base URL.
func (c *Client) WithBaseURL(baseURL string) *Client {
	cfg := c.cfg
	cfg.BaseURL = baseURL
	return &Client{httpClient: c.httpClient, auth: c.auth, cfg: cfg}
}

// Name returns the backend identifier.
func (c *Client) Name() string { return "codex" }

// StreamResponses sends a request and streams raw SSE events back via
// onEvent. A 401 triggers one token refresh (when AllowRefresh is set);
// 429 and 5xx responses are retried up to RetryMax times with a linear
// backoff. Once the stream is open there are no retries: partial token
// delivery cannot be resumed without duplicate risk.
func (c *Client) StreamResponses(ctx context.Context, req protocol.ResponsesRequest, onEvent func(sse.Event) error) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	refreshed := false
	attempts := 0
	for {
		resp, err := c.post(ctx, payload)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			drain(resp)
			if c.auth != nil && c.cfg.AllowRefresh {
				if err := c.auth.Refresh(ctx, auth.RefreshOptions{AllowNetwork: true, HTTPClient: c.httpClient}); err == nil {
					refreshed = true
					continue
				}
			}
			return fmt.Errorf("request failed with status 401")

		case isRetryable(resp.StatusCode) && attempts < c.cfg.RetryMax:
			drain(resp)
			attempts++
			if err := c.sleep(ctx, c.retryDelay(attempts)); err != nil {
				return err
			}
			continue

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		defer resp.Body.Close()
		return sse.ParseStream(resp.Body, onEvent)
	}
}

// StreamAndCollect streams a request and returns the assembled text, tool
// calls, and usage.
func (c *Client) StreamAndCollect(ctx context.Context, req protocol.ResponsesRequest) (backend.StreamResult, error) {
	collector := sse.NewCollector()
	calls := map[string]backend.ToolCall{}
	var usage *protocol.Usage

	err := c.StreamResponses(ctx, req, func(ev sse.Event) error {
		collector.Observe(ev.Value)
		if ev.Value.Response != nil && ev.Value.Response.Usage != nil {
			usage = ev.Value.Response.Usage
		}
		if ev.Value.Type == "response.output_item.added" && ev.Value.Item != nil {
			if item := ev.Value.Item; item.Type == "function_call" && item.CallID != "" {
				calls[item.CallID] = backend.ToolCall{CallID: item.CallID, Name: item.Name}
			}
		}
		return nil
	})
	if err != nil {
		return backend.StreamResult{}, err
	}

	result := backend.StreamResult{Text: collector.OutputText(), Usage: usage}
	for callID, call := range calls {
		call.Arguments = collector.FunctionArgs(callID)
		result.ToolCalls = append(result.ToolCalls, call)
	}
	return result, nil
}

// post issues the Responses API request with the auth, originator, and
// session headers Codex expects. A per-request key on the context overrides
// the token store.
func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/responses"
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if key, ok := harness.ProviderKey(ctx); ok {
		hreq.Header.Set("Authorization", "Bearer "+key)
	} else {
		if c.auth == nil {
			return nil, fmt.Errorf("auth store is required")
		}
		token, err := c.auth.AuthorizationToken()
		if err != nil {
			return nil, err
		}
		hreq.Header.Set("Authorization", "Bearer "+token)
		if c.auth.IsChatGPT() {
			if accountID := c.auth.AccountID(); accountID != "" {
				hreq.Header.Set("chatgpt-account-id", accountID)
			}
		}
	}

	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("originator", c.cfg.Originator)
	hreq.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.SessionID != "" {
		hreq.Header.Set("session_id", c.cfg.SessionID)
	}

	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(attempt) * c.cfg.RetryDelay
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// knownCodexModels lists the models served by the Codex backend. There is
// no discovery endpoint, so the list is static.
var knownCodexModels = []backend.ModelInfo{
	{ID: "gpt-5.3-codex", DisplayName: "GPT-5.3 Codex"},
	{ID: "gpt-5.2-codex", DisplayName: "GPT-5.2 Codex"},
	{ID: "o3", DisplayName: "o3"},
	{ID: "o3-mini", DisplayName: "o3 Mini"},
	{ID: "o1-pro", DisplayName: "o1 Pro"},
	{ID: "o1", DisplayName: "o1"},
	{ID: "o1-mini", DisplayName: "o1 Mini"},
}

// ListModels returns the known models for the Codex backend.
func (c *Client) ListModels(ctx context.Context) ([]backend.ModelInfo, error) {
	return knownCodexModels, nil
}
