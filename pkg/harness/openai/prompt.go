package openai

import (
	"fmt"
	"strings"

	"godex/pkg/harness"
	"godex/pkg/harness/prompt"
)

// BuildSystemPrompt assembles instructions for generic OpenAI-compatible
// models. It stays deliberately plainer than the Codex or Claude prompts:
// it has to read well on whatever model a Chat Completions endpoint serves.
func BuildSystemPrompt(turn *harness.Turn) (string, error) {
	parts := []string{baseInstructions}

	if len(turn.Tools) > 0 {
		parts = append(parts, toolUseInstructions)
	}
	if block := permissionBlock(turn.Permissions); block != "" {
		parts = append(parts, block)
	}

	env := prompt.Builder{Environment: prompt.FromEnvironmentCtx(turn.Environment)}
	if xml := env.BuildEnvironmentContext(); xml != "" {
		parts = append(parts, xml)
	}

	if turn.UserContext != nil && turn.UserContext.AgentsMD != "" {
		dir := "."
		if turn.Environment != nil && turn.Environment.WorkingDir != "" {
			dir = turn.Environment.WorkingDir
		}
		parts = append(parts, agentsBlock(dir, turn.UserContext.AgentsMD))
	}

	// Caller instructions land last so they win over the defaults above.
	if turn.Instructions != "" {
		parts = append(parts, turn.Instructions)
	}

	return strings.Join(parts, "\n\n"), nil
}

const baseInstructions = `You are a helpful AI coding assistant. You are an expert software engineer.

## Guidelines

- Be direct and concise. Avoid unnecessary filler.
- When editing code, make minimal, targeted changes.
- Read files before editing to understand context.
- Validate changes by running tests or build commands when available.
- If unsure about something, say so rather than guessing.
- Use available tools to accomplish tasks directly.`

const toolUseInstructions = `## Tool Use

You have access to tools for interacting with the system. When using tools:
- Execute tools as needed to accomplish the task.
- Chain tool calls efficiently for multi-step work.
- If a tool call fails, read the error and adjust.
- For file edits, read the file first.`

// permissionBlock renders the approval-policy section of the prompt.
func permissionBlock(perms *harness.PermissionsCtx) string {
	if perms == nil {
		return ""
	}

	policy := "Execute tools as needed. Destructive operations require user approval."
	switch perms.Mode {
	case "full-auto", "never":
		policy = "You have full autonomous execution permissions."
	case "ask-every-time":
		policy = "Describe your plan and wait for approval before executing tools."
	}

	lines := []string{"## Permissions", policy}
	if len(perms.AllowedTools) > 0 {
		lines = append(lines, "Auto-approved tools: "+strings.Join(perms.AllowedTools, ", "))
	}
	return strings.Join(lines, "\n")
}

// agentsBlock wraps AGENTS.md content for injection.
func agentsBlock(dir, content string) string {
	return fmt.Sprintf("# Project Instructions (AGENTS.md) for %s\n\n<INSTRUCTIONS>\n%s\n</INSTRUCTIONS>", dir, content)
}
