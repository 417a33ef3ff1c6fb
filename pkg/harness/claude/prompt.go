package claude

import (
	"fmt"
	"strings"

	"godex/pkg/harness"
	"godex/pkg/harness/prompt"
)

// BuildSystemPrompt assembles the Claude system block for a turn. Claude
// takes system text as a native parameter rather than a leading message, so
// the result is a single string.
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
		parts = append(parts, agentsBlock(workingDir(turn), turn.UserContext.AgentsMD))
	}

	// Caller instructions land last so they win over the defaults above.
	if turn.Instructions != "" {
		parts = append(parts, turn.Instructions)
	}

	return strings.Join(parts, "\n\n"), nil
}

const baseInstructions = `You are Claude, an AI assistant made by Anthropic. You are an expert software engineer helping with coding tasks.

## Guidelines

- Be direct and concise. Avoid unnecessary preamble.
- When editing code, make minimal, targeted changes. Don't rewrite entire files unnecessarily.
- Always read files before editing them to understand the current state.
- Validate your changes by running tests or build commands when available.
- If you're unsure about something, say so rather than guessing.
- Use the available tools to accomplish tasks. Prefer tool use over generating code blocks for the user to copy-paste.
- When running shell commands, prefer non-interactive flags and handle errors gracefully.
- Write clear commit messages that describe what changed and why.`

const toolUseInstructions = `## Tool Use

You have access to tools that let you interact with the user's system. Use them to:
- Read and write files
- Execute shell commands
- Search codebases

When using tools:
- Verify your changes work by running relevant tests or builds after editing.
- Chain tool calls efficiently — don't ask permission for each step of a multi-step task.
- If a tool call fails, read the error carefully and adjust your approach.
- For file edits, always read the file first to understand context.`

// permissionBlock renders the approval-policy section of the prompt.
func permissionBlock(perms *harness.PermissionsCtx) string {
	if perms == nil {
		return ""
	}

	policy := "Execute tools as needed. The user will be prompted for approval on potentially destructive operations."
	switch perms.Mode {
	case "full-auto", "never":
		policy = "You have full autonomous execution permissions. Execute tools without asking for approval."
	case "ask-every-time":
		policy = "Always describe what you plan to do and wait for user approval before executing any tool."
	}

	lines := []string{"## Permissions", policy}
	if len(perms.AllowedTools) > 0 {
		lines = append(lines, "Auto-approved tools: "+strings.Join(perms.AllowedTools, ", "))
	}
	if perms.SandboxPolicy != "" {
		lines = append(lines, "Sandbox policy: "+perms.SandboxPolicy)
	}
	return strings.Join(lines, "\n")
}

func workingDir(turn *harness.Turn) string {
	if turn.Environment != nil && turn.Environment.WorkingDir != "" {
		return turn.Environment.WorkingDir
	}
	return "."
}

// agentsBlock wraps AGENTS.md content for injection.
func agentsBlock(dir, content string) string {
	return fmt.Sprintf("# Project Instructions (AGENTS.md) for %s\n\n<INSTRUCTIONS>\n%s\n</INSTRUCTIONS>", dir, content)
}
