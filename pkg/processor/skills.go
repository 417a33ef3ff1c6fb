package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"godex/pkg/harness"
)

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// SkillResolver resolves a skill body by name, for /skill slash commands.
// Skill discovery lives outside the processor; this is the lookup surface
// it needs.
type SkillResolver interface {
	Resolve(name string) (body string, ok bool)
}

// SkillTriggerLogger is the optional logging surface for skill triggers.
// Conversation loggers can implement it to get one record per trigger.
type SkillTriggerLogger interface {
	LogSkillTrigger(name string, contentHash string)
}

// applySkillTriggers rewrites a trailing "/skill <name> [prompt...]" user
// message into a single user message carrying the skill body framed as
// guidance, followed by the rest of the prompt. The frame and remainder stay
// in one message so the history keeps alternating roles. Unresolvable names
// pass through untouched so the model sees what the user typed.
func (p *Processor) applySkillTriggers(messages []harness.Message) []harness.Message {
	if p.SkillSource == nil || len(messages) == 0 {
		return messages
	}
	last := messages[len(messages)-1]
	if last.Role != "user" || !strings.HasPrefix(last.Content, "/skill ") {
		return messages
	}

	rest := strings.TrimSpace(strings.TrimPrefix(last.Content, "/skill "))
	name, remainder, _ := strings.Cut(rest, " ")
	if name == "" {
		return messages
	}
	body, ok := p.SkillSource.Resolve(name)
	if !ok {
		return messages
	}

	content := fmt.Sprintf("[System guidance: applying skill %q]\n\n%s", name, body)
	if remainder = strings.TrimSpace(remainder); remainder != "" {
		content += "\n\n" + remainder
	}

	if sl, ok := p.Logger.(SkillTriggerLogger); ok {
		sl.LogSkillTrigger(name, contentHash(body))
	}
	p.Callbacks.OnInfo(fmt.Sprintf("Applied skill %q", name))

	out := append([]harness.Message(nil), messages[:len(messages)-1]...)
	return append(out, harness.Message{Role: "user", Content: content})
}
