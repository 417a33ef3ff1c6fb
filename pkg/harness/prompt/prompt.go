// Package prompt composes the system instructions shared by the provider
// harnesses: base identity, permission and sandbox policy text,
// collaboration mode, environment context, AGENTS.md, and caller sections.
// The policy fragments live as embedded templates keyed on a mode string.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"godex/pkg/harness"
)

//go:embed templates/*.md
var templateFS embed.FS

// Builder assembles a system prompt from its configured sections.
type Builder struct {
	// BaseInstructions replaces the default identity prompt when set.
	BaseInstructions string

	// PermissionMode is the tool approval policy:
	// "full-auto", "suggest", or "ask-every-time".
	PermissionMode string

	// SandboxMode is the execution sandbox policy:
	// "full", "network-off", or "none".
	SandboxMode string

	// CollaborationMode is the interaction style: "default" or "plan".
	CollaborationMode string

	// Environment, when set, is rendered as an XML context block.
	Environment *EnvironmentInfo

	// AgentsMD is the content of the user's AGENTS.md file.
	AgentsMD string

	// CustomSections are extra named blocks appended to the prompt.
	CustomSections map[string]string
}

// EnvironmentInfo holds execution-environment facts for prompt injection.
type EnvironmentInfo struct {
	WorkingDir string
	Shell      string
	Platform   string
	OSName     string
	Sandbox    string
	Custom     map[string]string
}

// NewBuilder returns a Builder with the conservative defaults: suggest
// permissions, full sandbox, default collaboration.
func NewBuilder() *Builder {
	return &Builder{
		PermissionMode:    "suggest",
		SandboxMode:       "full",
		CollaborationMode: "default",
		CustomSections:    make(map[string]string),
	}
}

// modeSection pairs a policy template with the mode string it renders for.
type modeSection struct {
	template string
	mode     string
}

// Build renders every configured section and joins them with blank lines.
func (b *Builder) Build() (string, error) {
	base := b.BaseInstructions
	if base == "" {
		loaded, err := loadTemplate("base_instructions.md")
		if err != nil {
			return "", fmt.Errorf("prompt: load base instructions: %w", err)
		}
		base = loaded
	}
	parts := []string{base}

	for _, section := range []modeSection{
		{"permissions.md", b.PermissionMode},
		{"sandbox.md", b.SandboxMode},
		{"collaboration.md", b.CollaborationMode},
	} {
		text, err := renderModeTemplate(section.template, section.mode)
		if err != nil {
			return "", fmt.Errorf("prompt: render %s: %w", section.template, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	if b.Environment != nil {
		parts = append(parts, b.Environment.xml())
	}
	if b.AgentsMD != "" {
		parts = append(parts, fmt.Sprintf("<agents_md>\n%s\n</agents_md>", b.AgentsMD))
	}
	for name, content := range b.CustomSections {
		parts = append(parts, fmt.Sprintf("<%s>\n%s\n</%s>", name, content, name))
	}

	return strings.Join(parts, "\n\n"), nil
}

// xml renders the environment as the <environment_context> block.
func (e *EnvironmentInfo) xml() string {
	var sb strings.Builder
	sb.WriteString("<environment_context>")
	field := func(tag, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "\n  <%s>%s</%s>", tag, value, tag)
		}
	}
	field("working_directory", e.WorkingDir)
	field("shell", e.Shell)
	field("platform", e.Platform)
	field("os", e.OSName)
	field("sandbox", e.Sandbox)
	for k, v := range e.Custom {
		field(k, v)
	}
	sb.WriteString("\n</environment_context>")
	return sb.String()
}

func loadTemplate(name string) (string, error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// renderModeTemplate loads a policy template and executes it with the given
// mode. A missing template contributes nothing rather than failing.
func renderModeTemplate(name, mode string) (string, error) {
	raw, err := loadTemplate(name)
	if err != nil || raw == "" {
		return "", nil
	}
	tpl, err := template.New(name).Parse(raw)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := tpl.Execute(&buf, map[string]string{"Mode": mode}); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// LoadTemplate exposes the embedded templates to provider harnesses that
// compose prompts from the shared fragments directly.
func LoadTemplate(name string) (string, error) {
	return loadTemplate(name)
}

// BuildEnvironmentContext renders only the environment block, for harnesses
// that assemble their own prompt shell around it.
func (b *Builder) BuildEnvironmentContext() string {
	if b.Environment == nil {
		return ""
	}
	return b.Environment.xml()
}

// FromEnvironmentCtx converts the harness-level environment description
// into the builder's form.
func FromEnvironmentCtx(env *harness.EnvironmentCtx) *EnvironmentInfo {
	if env == nil {
		return nil
	}
	return &EnvironmentInfo{
		WorkingDir: env.WorkingDir,
		Shell:      env.Shell,
		Platform:   env.Platform,
		Sandbox:    env.Sandbox,
		Custom:     env.CustomAttrs,
	}
}
