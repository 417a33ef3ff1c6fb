// Package contextbuilder assembles the final system prompt for a turn from
// rules, a resolved profile, skill metadata, and hook injections, logging
// every modification as it is applied. Rule discovery, skill discovery, and
// profile resolution are plugin concerns owned by the caller, so the builder
// takes them as interfaces and is usable standalone with the no-op defaults
// below.
package contextbuilder

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Injection records one modification applied to the base system prompt.
type Injection struct {
	Source      string // rules | profile | skill_metadata | hook | skill_trigger | stuck_detection
	Location    string // system_prompt_prepend | system_prompt_append | message_inject
	Content     string
	Origin      string
	TriggerType string
}

// ConversationContext is the complete, built context for a conversation.
type ConversationContext struct {
	SystemPrompt string
	BasePrompt   string
	Injections   []Injection
	Profile      *Profile
}

// Logger receives context-build lifecycle events for the conversation log.
// pkg/convlog implements this.
type Logger interface {
	LogContextInit(baseSystemPrompt string)
	LogContextInjection(inj Injection)
	LogContextReady(systemPromptHash string)
}

type nopLogger struct{}

func (nopLogger) LogContextInit(string)         {}
func (nopLogger) LogContextInjection(Injection) {}
func (nopLogger) LogContextReady(string)        {}

// RuleFile is one rule document discovered on disk (AGENTS.md, .cursorrules,
// a plugin-contributed rule file, etc).
type RuleFile struct {
	Path    string
	Content string
}

// RulesSource supplies rule files in priority order (project, user, plugin).
type RulesSource interface {
	RuleFiles() []RuleFile
}

// NoRules is a RulesSource that contributes nothing.
type NoRules struct{}

func (NoRules) RuleFiles() []RuleFile { return nil }

// SkillsSource supplies one-line metadata for every registered skill,
// already formatted for prompt injection, plus a count for logging.
type SkillsSource interface {
	Metadata() (text string, count int)
}

// NoSkills is a SkillsSource that contributes nothing.
type NoSkills struct{}

func (NoSkills) Metadata() (string, int) { return "", 0 }

// Profile is a resolved model/behavior profile's prompt contribution.
type Profile struct {
	Name               string
	SystemPromptPrefix string
	SystemPromptSuffix string
	EnabledPatterns    []string
	PatternsText       string // rendered block for EnabledPatterns, empty if none
}

// ProfileResolver resolves the active profile for a turn: by explicit name
// first, else by model/provider mapping. Returns nil if none applies.
type ProfileResolver interface {
	Resolve(profileName, model, provider string) *Profile
}

// NoProfiles is a ProfileResolver that never resolves a profile.
type NoProfiles struct{}

func (NoProfiles) Resolve(string, string, string) *Profile { return nil }

// HookInjection is one (content, location) pair returned by the CONTEXT_BUILD
// hook event, already collected by the caller's hook dispatch.
type HookInjection struct {
	Content  string
	Location string // "prepend" | "append"
}

// Builder assembles a ConversationContext for one turn.
type Builder struct {
	IncludeRules  bool
	IncludeSkills bool
	ProfileName   string
	Model         string
	Provider      string

	Rules    RulesSource
	Skills   SkillsSource
	Profiles ProfileResolver
	Logger   Logger
}

// New builds a Builder with the given sources, defaulting any nil source to
// its no-op implementation and the logger to a discard logger.
func New(b Builder) *Builder {
	if b.Rules == nil {
		b.Rules = NoRules{}
	}
	if b.Skills == nil {
		b.Skills = NoSkills{}
	}
	if b.Profiles == nil {
		b.Profiles = NoProfiles{}
	}
	if b.Logger == nil {
		b.Logger = nopLogger{}
	}
	return &b
}

// Build assembles the prompt: rules prepend, profile
// prefix/suffix/patterns, skill metadata append, then hook injections
// folded into the prepend/append buckets, concatenated with blank lines.
func (b *Builder) Build(baseSystemPrompt string, hookInjections []HookInjection) ConversationContext {
	var injections []Injection
	// Prepend order is rules, hook injections, profile prefix/patterns;
	// append order is profile suffix, skills, hook injections.
	var rulesBlock, hookPrepend, profilePrepend, profileAppend, skillsBlock, hookAppend []string

	b.Logger.LogContextInit(baseSystemPrompt)

	// 1. Rules (prepended), one injection record logged per file but a
	// single combined block contributed to the prompt.
	if b.IncludeRules {
		files := b.Rules.RuleFiles()
		if len(files) > 0 {
			var combined strings.Builder
			for i, f := range files {
				if i > 0 {
					combined.WriteString("\n\n")
				}
				combined.WriteString(f.Content)
			}
			content := combined.String()
			rulesBlock = append(rulesBlock, content)
			for _, f := range files {
				inj := Injection{
					Source:      "rules",
					Location:    "system_prompt_prepend",
					Content:     content,
					Origin:      f.Path,
					TriggerType: "startup",
				}
				injections = append(injections, inj)
				b.Logger.LogContextInjection(inj)
			}
		}
	}

	// 2. Profile prefix / patterns / suffix.
	profile := b.Profiles.Resolve(b.ProfileName, b.Model, b.Provider)
	if profile != nil {
		if profile.SystemPromptPrefix != "" {
			inj := Injection{
				Source: "profile", Location: "system_prompt_prepend",
				Content: profile.SystemPromptPrefix, Origin: profile.Name, TriggerType: "startup",
			}
			profilePrepend = append(profilePrepend, profile.SystemPromptPrefix)
			injections = append(injections, inj)
			b.Logger.LogContextInjection(inj)
		}
		if profile.PatternsText != "" {
			inj := Injection{
				Source: "profile", Location: "system_prompt_prepend",
				Content: profile.PatternsText, Origin: profile.Name, TriggerType: "startup",
			}
			profilePrepend = append(profilePrepend, profile.PatternsText)
			injections = append(injections, inj)
			b.Logger.LogContextInjection(inj)
		}
		if profile.SystemPromptSuffix != "" {
			inj := Injection{
				Source: "profile", Location: "system_prompt_append",
				Content: profile.SystemPromptSuffix, Origin: profile.Name, TriggerType: "startup",
			}
			profileAppend = append(profileAppend, profile.SystemPromptSuffix)
			injections = append(injections, inj)
			b.Logger.LogContextInjection(inj)
		}
	}

	// 3. Skill metadata (appended).
	if b.IncludeSkills {
		if text, count := b.Skills.Metadata(); text != "" {
			_ = count
			inj := Injection{
				Source: "skill_metadata", Location: "system_prompt_append",
				Content: text, Origin: "all_skills", TriggerType: "startup",
			}
			skillsBlock = append(skillsBlock, text)
			injections = append(injections, inj)
			b.Logger.LogContextInjection(inj)
		}
	}

	// 4. Hook injections from CONTEXT_BUILD.
	for _, h := range hookInjections {
		loc := "system_prompt_" + h.Location
		inj := Injection{Source: "hook", Location: loc, Content: h.Content, Origin: "context_build"}
		injections = append(injections, inj)
		b.Logger.LogContextInjection(inj)
		if h.Location == "prepend" {
			hookPrepend = append(hookPrepend, h.Content)
		} else {
			hookAppend = append(hookAppend, h.Content)
		}
	}

	// 5. Concatenate: rules, hook prepends, profile prefix/patterns, base,
	// profile suffix, skills, hook appends, joined by blank lines.
	var parts []string
	parts = append(parts, rulesBlock...)
	parts = append(parts, hookPrepend...)
	parts = append(parts, profilePrepend...)
	parts = append(parts, baseSystemPrompt)
	parts = append(parts, profileAppend...)
	parts = append(parts, skillsBlock...)
	parts = append(parts, hookAppend...)
	finalPrompt := strings.Join(parts, "\n\n")

	sum := sha256.Sum256([]byte(finalPrompt))
	hash := hex.EncodeToString(sum[:])[:16]
	b.Logger.LogContextReady(hash)

	return ConversationContext{
		SystemPrompt: finalPrompt,
		BasePrompt:   baseSystemPrompt,
		Injections:   injections,
		Profile:      profile,
	}
}
