// Package convlog writes the conversation transcript as an append-only JSONL
// stream: one JSON object per line, flushed per write, with a monotonic event
// number. The markdown exporter in this package renders a finished log for
// presentation. This is deliberately plain encoding/json rather than the
// operational logger: the line format is a public contract consumed by
// external renderers and session tooling.
package convlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"godex/pkg/contextbuilder"
)

// Event types emitted to the log.
const (
	EventSessionStart      = "session_start"
	EventContextInit       = "context_init"
	EventContextInjection  = "context_injection"
	EventContextReady      = "context_ready"
	EventUserMessage       = "user_message"
	EventAssistantMessage  = "assistant_message"
	EventThinking          = "thinking"
	EventToolCall          = "tool_call"
	EventToolResult        = "tool_result"
	EventUsage             = "usage"
	EventToolCallRecovered = "tool_call_recovered"
	EventError             = "error"
	EventSessionEnd        = "session_end"
)

// Config controls transcript logging.
type Config struct {
	// Dir is the output directory; one <session_id>.jsonl file per session.
	Dir string

	// Private omits message and prompt content, keeping only hashes and
	// structural fields.
	Private bool
}

// Logger writes conversation events. Writes are serialized with a lock and
// flushed per event.
type Logger struct {
	mu         sync.Mutex
	w          io.Writer
	closer     io.Closer
	cfg        Config
	sessionID  string
	eventNum   int
	contextVer int
	path       string
}

// NewWriter builds a Logger over an arbitrary writer, for callers that manage
// the destination themselves (and for tests).
func NewWriter(w io.Writer, sessionID string, cfg Config) *Logger {
	return &Logger{w: w, sessionID: sessionID, cfg: cfg}
}

// Open creates <cfg.Dir>/<sessionID>.jsonl and returns a Logger appending to
// it. The directory is created if needed.
func Open(sessionID string, cfg Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(cfg.Dir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{w: f, closer: f, cfg: cfg, sessionID: sessionID, path: path}, nil
}

// Path returns the log file path, or "" for writer-backed loggers.
func (l *Logger) Path() string { return l.path }

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// write appends one event line. fields must not contain the reserved keys
// timestamp, event_number, or event_type.
func (l *Logger) write(eventType string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.eventNum++
	record := map[string]any{
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"event_number": l.eventNum,
		"event_type":   eventType,
	}
	for k, v := range fields {
		record[k] = v
	}

	line, err := json.Marshal(record)
	if err != nil {
		return
	}
	l.w.Write(append(line, '\n'))
	if f, ok := l.w.(*os.File); ok {
		f.Sync()
	}
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// redact replaces content with "" when private logging is on.
func (l *Logger) redact(s string) string {
	if l.cfg.Private {
		return ""
	}
	return s
}

// LogSessionStart records the start of a session.
func (l *Logger) LogSessionStart(provider, model string) {
	l.write(EventSessionStart, map[string]any{
		"session_id": l.sessionID,
		"provider":   provider,
		"model":      model,
	})
}

// LogContextInit records the base system prompt before any injection.
func (l *Logger) LogContextInit(baseSystemPrompt string) {
	l.mu.Lock()
	l.contextVer = 1
	l.mu.Unlock()
	l.write(EventContextInit, map[string]any{
		"base_system_prompt": l.redact(baseSystemPrompt),
		"context_version":    1,
	})
}

// LogContextInjection records one modification to the system prompt.
func (l *Logger) LogContextInjection(inj contextbuilder.Injection) {
	l.mu.Lock()
	l.contextVer++
	ver := l.contextVer
	l.mu.Unlock()

	fields := map[string]any{
		"context_version": ver,
		"source":          inj.Source,
		"location":        inj.Location,
		"content":         l.redact(inj.Content),
		"content_hash":    contentHash(inj.Content),
		"origin":          inj.Origin,
	}
	if inj.TriggerType != "" {
		fields["trigger_type"] = inj.TriggerType
	}
	l.write(EventContextInjection, fields)
}

// LogContextReady records the final prompt hash once building is done.
func (l *Logger) LogContextReady(systemPromptHash string) {
	l.mu.Lock()
	ver := l.contextVer
	l.mu.Unlock()
	l.write(EventContextReady, map[string]any{
		"context_version":    ver,
		"system_prompt_hash": systemPromptHash,
	})
}

// LogSkillTrigger records a skill body injected in place of a /skill
// slash command.
func (l *Logger) LogSkillTrigger(name string, bodyHash string) {
	l.mu.Lock()
	l.contextVer++
	ver := l.contextVer
	l.mu.Unlock()
	l.write(EventContextInjection, map[string]any{
		"context_version": ver,
		"source":          "skill_trigger",
		"location":        "message_inject",
		"content_hash":    bodyHash,
		"origin":          name,
		"trigger_type":    "slash_command",
	})
}

// LogUserMessage records a user prompt.
func (l *Logger) LogUserMessage(content string) {
	l.write(EventUserMessage, map[string]any{"content": l.redact(content)})
}

// LogAssistantMessage records a final assistant response, with any thinking
// that accompanied it.
func (l *Logger) LogAssistantMessage(content, thinking string) {
	fields := map[string]any{"content": l.redact(content)}
	if thinking != "" {
		fields["thinking"] = l.redact(thinking)
	}
	l.write(EventAssistantMessage, fields)
}

// LogThinking records a standalone thinking block.
func (l *Logger) LogThinking(content string) {
	l.write(EventThinking, map[string]any{"content": l.redact(content)})
}

// LogToolCall records a tool invocation request.
func (l *Logger) LogToolCall(toolName string, input map[string]any, toolID string) {
	fields := map[string]any{
		"tool_name":  toolName,
		"tool_input": input,
	}
	if l.cfg.Private {
		fields["tool_input"] = map[string]any{}
	}
	if toolID != "" {
		fields["tool_id"] = toolID
	}
	l.write(EventToolCall, fields)
}

// LogToolResult records the outcome of a tool execution.
func (l *Logger) LogToolResult(toolName string, success bool, output, errMsg, toolID string, durationMs int64) {
	fields := map[string]any{
		"tool_name": toolName,
		"success":   success,
	}
	if output != "" {
		fields["output"] = l.redact(output)
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	if toolID != "" {
		fields["tool_id"] = toolID
	}
	if durationMs > 0 {
		fields["duration_ms"] = durationMs
	}
	l.write(EventToolResult, fields)
}

// LogToolCallRecovered records a tool call promoted from thinking text.
func (l *Logger) LogToolCallRecovered(toolName string, input map[string]any) {
	fields := map[string]any{
		"tool_name":  toolName,
		"tool_input": input,
	}
	if l.cfg.Private {
		fields["tool_input"] = map[string]any{}
	}
	l.write(EventToolCallRecovered, fields)
}

// LogUsage records token usage for one model response.
func (l *Logger) LogUsage(inputTokens, outputTokens int, costUSD float64) {
	fields := map[string]any{
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"total_tokens":  inputTokens + outputTokens,
	}
	if costUSD > 0 {
		fields["cost_usd"] = costUSD
	}
	l.write(EventUsage, fields)
}

// LogError records a contained error.
func (l *Logger) LogError(errMsg, context string) {
	fields := map[string]any{"error": errMsg}
	if context != "" {
		fields["context"] = context
	}
	l.write(EventError, fields)
}

// LogSessionEnd records the end of a session with the total event count
// (including this event).
func (l *Logger) LogSessionEnd() {
	l.mu.Lock()
	total := l.eventNum + 1
	l.mu.Unlock()
	l.write(EventSessionEnd, map[string]any{"total_events": total})
}
