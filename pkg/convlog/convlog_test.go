package convlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"godex/pkg/contextbuilder"
)

func parseLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line: %s", line)
		out = append(out, m)
	}
	return out
}

func TestLogger_EventNumbersMonotonic(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "s1", Config{})

	l.LogSessionStart("anthropic", "claude-sonnet-4-20250514")
	l.LogUserMessage("hi")
	l.LogAssistantMessage("hello", "")
	l.LogSessionEnd()

	lines := parseLines(t, &buf)
	require.Len(t, lines, 4)
	for i, m := range lines {
		assert.Equal(t, float64(i+1), m["event_number"])
		assert.NotEmpty(t, m["timestamp"])
		assert.NotEmpty(t, m["event_type"])
	}
	assert.Equal(t, "session_start", lines[0]["event_type"])
	assert.Equal(t, "session_end", lines[3]["event_type"])
	assert.Equal(t, float64(4), lines[3]["total_events"])
}

func TestLogger_ContextVersionIncrements(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "s1", Config{})

	l.LogContextInit("base prompt")
	l.LogContextInjection(contextbuilder.Injection{
		Source: "rules", Location: "system_prompt_prepend",
		Content: "rule text", Origin: "AGENTS.md", TriggerType: "startup",
	})
	l.LogContextInjection(contextbuilder.Injection{
		Source: "profile", Location: "system_prompt_append",
		Content: "suffix", Origin: "default",
	})
	l.LogContextReady("abcd1234")

	lines := parseLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, float64(1), lines[0]["context_version"])
	assert.Equal(t, float64(2), lines[1]["context_version"])
	assert.Equal(t, float64(3), lines[2]["context_version"])
	assert.Equal(t, float64(3), lines[3]["context_version"])
	assert.Equal(t, "abcd1234", lines[3]["system_prompt_hash"])
	assert.NotEmpty(t, lines[1]["content_hash"])
	assert.Equal(t, "startup", lines[1]["trigger_type"])
	_, hasTrigger := lines[2]["trigger_type"]
	assert.False(t, hasTrigger)
}

func TestLogger_SkillTrigger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "s1", Config{})

	l.LogContextInit("base")
	l.LogSkillTrigger("review", "abc123")

	lines := parseLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "context_injection", lines[1]["event_type"])
	assert.Equal(t, "skill_trigger", lines[1]["source"])
	assert.Equal(t, "message_inject", lines[1]["location"])
	assert.Equal(t, "review", lines[1]["origin"])
	assert.Equal(t, "slash_command", lines[1]["trigger_type"])
	assert.Equal(t, float64(2), lines[1]["context_version"])
}

func TestLogger_ToolEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "s1", Config{})

	l.LogToolCall("bash", map[string]any{"command": "ls"}, "call_1")
	l.LogToolResult("bash", true, "a.txt", "", "call_1", 42)
	l.LogToolResult("bash", false, "", "exit 1", "call_2", 0)
	l.LogToolCallRecovered("search", map[string]any{"query": "x"})

	lines := parseLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "tool_call", lines[0]["event_type"])
	assert.Equal(t, "bash", lines[0]["tool_name"])
	assert.Equal(t, "call_1", lines[0]["tool_id"])

	assert.Equal(t, true, lines[1]["success"])
	assert.Equal(t, "a.txt", lines[1]["output"])
	assert.Equal(t, float64(42), lines[1]["duration_ms"])

	assert.Equal(t, false, lines[2]["success"])
	assert.Equal(t, "exit 1", lines[2]["error"])
	_, hasOutput := lines[2]["output"]
	assert.False(t, hasOutput)

	assert.Equal(t, "tool_call_recovered", lines[3]["event_type"])
}

func TestLogger_Private(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "s1", Config{Private: true})

	l.LogUserMessage("secret prompt")
	l.LogToolCall("bash", map[string]any{"command": "cat /etc/passwd"}, "")

	lines := parseLines(t, &buf)
	assert.Equal(t, "", lines[0]["content"])
	assert.Equal(t, map[string]any{}, lines[1]["tool_input"])
}

func TestLogger_Usage(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "s1", Config{})

	l.LogUsage(100, 50, 0)
	lines := parseLines(t, &buf)
	assert.Equal(t, float64(100), lines[0]["input_tokens"])
	assert.Equal(t, float64(50), lines[0]["output_tokens"])
	assert.Equal(t, float64(150), lines[0]["total_tokens"])
	_, hasCost := lines[0]["cost_usd"]
	assert.False(t, hasCost)
}

func TestExportMarkdown(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "s1", Config{})

	l.LogSessionStart("anthropic", "claude-sonnet-4-20250514")
	l.LogUserMessage("list files")
	l.LogToolCall("bash", map[string]any{"command": "ls"}, "call_1")
	l.LogToolResult("bash", true, "a.txt\nb.txt", "", "call_1", 10)
	l.LogAssistantMessage("Two files: a.txt and b.txt", "the user wants a listing")
	l.LogUsage(10, 20, 0)
	l.LogSessionEnd()

	md, err := ExportMarkdown(strings.NewReader(buf.String()))
	require.NoError(t, err)

	assert.Contains(t, md, "# Session s1")
	assert.Contains(t, md, "## User\n\nlist files")
	assert.Equal(t, 1, strings.Count(md, "Tool call: `bash`"))
	assert.Equal(t, 1, strings.Count(md, "Tool result: `bash`"))
	assert.Equal(t, 1, strings.Count(md, "## Assistant"))
	assert.Contains(t, md, "Two files: a.txt and b.txt")
	assert.Contains(t, md, "the user wants a listing")
	assert.Contains(t, md, "Tokens: 10 in, 20 out")

	// Deterministic: a second export of the same log is identical.
	md2, err := ExportMarkdown(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, md, md2)
}
