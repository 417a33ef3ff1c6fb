// Package codex implements the Codex harness for the Responses API.
package codex

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"godex/pkg/harness"
	"godex/pkg/harness/prompt"
)

//go:embed templates/*.md
var templateFS embed.FS

// Template selection by policy value; unknown values fall back to the ""
// entry of each table.
var (
	sandboxTemplates = map[string]string{
		"full-access":        "sandbox_full_access.md",
		"danger-full-access": "sandbox_full_access.md",
		"read-only":          "sandbox_read_only.md",
		"workspace-write":    "sandbox_workspace_write.md",
		"":                   "sandbox_workspace_write.md",
	}
	approvalTemplates = map[string]string{
		"never":      "approval_never.md",
		"full-auto":  "approval_never.md",
		"on-failure": "approval_on_failure.md",
		"on-request": "approval_on_request.md",
		"suggest":    "approval_on_request.md",
		"":           "approval_on_request.md",
	}
	collaborationTemplates = map[string]string{
		"plan":    "collaboration_plan.md",
		"default": "collaboration_default.md",
		"":        "collaboration_default.md",
	}
)

// loadTemplate reads an embedded template by name.
func loadTemplate(name string) (string, error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// renderTemplate executes a Go text/template string with the given data.
func renderTemplate(name, tplStr string, data any) (string, error) {
	tpl, err := template.New(name).Parse(tplStr)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// pick resolves a policy value against a template table, honoring the
// fallback entry.
func pick(table map[string]string, key string) (string, error) {
	name, ok := table[key]
	if !ok {
		name = table[""]
	}
	return loadTemplate(name)
}

// BuildSystemPrompt constructs the full Codex system prompt for a turn,
// layering: base instructions, sandbox policy, approval policy,
// collaboration mode, environment context, AGENTS.md, and the caller's
// instructions last.
func BuildSystemPrompt(turn *harness.Turn) (string, error) {
	base, err := loadTemplate("base_instructions.md")
	if err != nil {
		return "", fmt.Errorf("codex prompt: load base instructions: %w", err)
	}
	parts := []string{base}

	if turn.Permissions != nil {
		if tpl, err := pick(sandboxTemplates, turn.Permissions.SandboxPolicy); err == nil && tpl != "" {
			networkAccess := "enabled"
			if turn.Environment != nil && turn.Environment.Sandbox == "network-off" {
				networkAccess = "disabled"
			}
			rendered, err := renderTemplate("sandbox", tpl, map[string]string{"NetworkAccess": networkAccess})
			if err != nil {
				return "", fmt.Errorf("codex prompt: render sandbox: %w", err)
			}
			parts = append(parts, rendered)
		}
		if tpl, err := pick(approvalTemplates, turn.Permissions.Mode); err == nil && tpl != "" {
			parts = append(parts, tpl)
		}
	}

	if turn.UserContext != nil && turn.UserContext.Collaboration != "" {
		if tpl, err := pick(collaborationTemplates, turn.UserContext.Collaboration); err == nil && tpl != "" {
			parts = append(parts, tpl)
		}
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
		parts = append(parts, formatAgentsMD(dir, turn.UserContext.AgentsMD))
	}

	if turn.Instructions != "" {
		parts = append(parts, turn.Instructions)
	}

	return strings.Join(parts, "\n\n"), nil
}

// BuildProxySystemPrompt builds the proxy-mode prompt: the Codex base
// prompt with its tool-specific sections stripped (the caller brings its
// own tools), followed by the caller's instructions.
func BuildProxySystemPrompt(turn *harness.Turn) (string, error) {
	base, err := loadTemplate("base_instructions.md")
	if err != nil {
		return "", fmt.Errorf("codex prompt: load base instructions: %w", err)
	}

	parts := []string{stripToolSections(base)}
	if turn.Instructions != "" {
		parts = append(parts, turn.Instructions)
	}
	return strings.Join(parts, "\n\n"), nil
}

// stripToolSections removes the Codex-native tool references from the base
// prompt: the trailing "# Tool Guidelines" section, and any line that
// mentions apply_patch. Personality, planning, and formatting guidance
// stay intact.
func stripToolSections(text string) string {
	if idx := strings.Index(text, "\n# Tool Guidelines"); idx >= 0 {
		text = strings.TrimRight(text[:idx], "\n ")
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "apply_patch") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// formatAgentsMD wraps AGENTS.md content in the Codex-standard format.
func formatAgentsMD(dir, content string) string {
	return fmt.Sprintf("# AGENTS.md instructions for %s\n\n<INSTRUCTIONS>\n%s\n</INSTRUCTIONS>", dir, content)
}
