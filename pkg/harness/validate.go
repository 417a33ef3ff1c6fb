package harness

import (
	"errors"
	"fmt"
)

// Message-sequence violations, one sentinel per rule so callers can
// distinguish failure classes.
var (
	ErrSystemNotFirst       = errors.New("system message only allowed at index 0")
	ErrConsecutiveUser      = errors.New("two consecutive user messages")
	ErrConsecutiveAssistant = errors.New("two consecutive assistant messages")
	ErrOrphanToolResult     = errors.New("tool result references no prior tool call")
	ErrToolResultOutOfPlace = errors.New("tool result not preceded by a matching tool call")
	ErrMissingToolResult    = errors.New("tool call not followed by its result")
	ErrUnknownRole          = errors.New("unknown message role")
)

// ValidateMessages checks a conversation history against the sequencing
// rules: at most one system message and only at index 0; no two consecutive
// plain user or plain assistant messages; every tool result pairs with a
// prior assistant tool call by id; a tool call is answered before the next
// assistant text. An assistant message carrying ToolID is a tool-call echo
// and exempt from the consecutive-assistant rule. A leading tool message is
// tolerated when the history is a tool-loop continuation (the caller sliced
// mid-loop); full histories never start with one.
func ValidateMessages(messages []Message) error {
	calls := map[string]bool{}    // tool call ids seen
	answered := map[string]bool{} // tool call ids answered

	var prevRole string
	var prevToolID string

	for i, msg := range messages {
		switch msg.Role {
		case "system":
			if i != 0 {
				return fmt.Errorf("message %d: %w", i, ErrSystemNotFirst)
			}
		case "user":
			if prevRole == "user" {
				return fmt.Errorf("message %d: %w", i, ErrConsecutiveUser)
			}
		case "assistant":
			if msg.ToolID != "" {
				calls[msg.ToolID] = true
			} else {
				if prevRole == "assistant" && prevToolID == "" {
					return fmt.Errorf("message %d: %w", i, ErrConsecutiveAssistant)
				}
				for id := range calls {
					if !answered[id] {
						return fmt.Errorf("message %d: call %q: %w", i, id, ErrMissingToolResult)
					}
				}
			}
		case "tool":
			if msg.ToolID == "" {
				return fmt.Errorf("message %d: %w", i, ErrOrphanToolResult)
			}
			if i == 0 {
				// Tool-loop continuation: the caller resumed mid-loop.
				calls[msg.ToolID] = true
			}
			if !calls[msg.ToolID] {
				return fmt.Errorf("message %d: call %q: %w", i, msg.ToolID, ErrToolResultOutOfPlace)
			}
			answered[msg.ToolID] = true
		default:
			return fmt.Errorf("message %d: role %q: %w", i, msg.Role, ErrUnknownRole)
		}

		prevRole = msg.Role
		prevToolID = msg.ToolID
	}

	for id := range calls {
		if !answered[id] {
			return fmt.Errorf("call %q: %w", id, ErrMissingToolResult)
		}
	}
	return nil
}
