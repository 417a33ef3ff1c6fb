package convlog

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ExportMarkdown renders a JSONL transcript as a markdown document. Every
// assistant and tool event appears exactly once, in log order; unknown event
// types are skipped. The output is a deterministic function of the input.
func ExportMarkdown(r io.Reader) (string, error) {
	var b strings.Builder
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 4*1024*1024)

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		ev := gjson.Parse(line)
		switch ev.Get("event_type").String() {
		case EventSessionStart:
			fmt.Fprintf(&b, "# Session %s\n\n", ev.Get("session_id").String())
			fmt.Fprintf(&b, "Provider: %s · Model: %s\n\n",
				ev.Get("provider").String(), ev.Get("model").String())

		case EventContextInjection:
			fmt.Fprintf(&b, "> Context injection from %s (%s): %s\n\n",
				ev.Get("source").String(), ev.Get("origin").String(),
				ev.Get("location").String())

		case EventUserMessage:
			fmt.Fprintf(&b, "## User\n\n%s\n\n", ev.Get("content").String())

		case EventThinking:
			writeThinking(&b, ev.Get("content").String())

		case EventAssistantMessage:
			if thinking := ev.Get("thinking").String(); thinking != "" {
				writeThinking(&b, thinking)
			}
			fmt.Fprintf(&b, "## Assistant\n\n%s\n\n", ev.Get("content").String())

		case EventToolCall:
			fmt.Fprintf(&b, "### Tool call: `%s`\n\n```json\n%s\n```\n\n",
				ev.Get("tool_name").String(), ev.Get("tool_input").Raw)

		case EventToolCallRecovered:
			fmt.Fprintf(&b, "### Tool call (recovered): `%s`\n\n```json\n%s\n```\n\n",
				ev.Get("tool_name").String(), ev.Get("tool_input").Raw)

		case EventToolResult:
			status := "ok"
			if !ev.Get("success").Bool() {
				status = "failed"
			}
			fmt.Fprintf(&b, "### Tool result: `%s` (%s)\n\n",
				ev.Get("tool_name").String(), status)
			if out := ev.Get("output").String(); out != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n\n", out)
			}
			if errMsg := ev.Get("error").String(); errMsg != "" {
				fmt.Fprintf(&b, "Error: %s\n\n", errMsg)
			}

		case EventUsage:
			fmt.Fprintf(&b, "_Tokens: %d in, %d out_\n\n",
				ev.Get("input_tokens").Int(), ev.Get("output_tokens").Int())

		case EventError:
			fmt.Fprintf(&b, "**Error:** %s\n\n", ev.Get("error").String())

		case EventSessionEnd:
			fmt.Fprintf(&b, "---\n\n_%d events_\n", ev.Get("total_events").Int())
		}
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeThinking(b *strings.Builder, thinking string) {
	b.WriteString("<details><summary>Thinking</summary>\n\n")
	b.WriteString(thinking)
	b.WriteString("\n\n</details>\n\n")
}
