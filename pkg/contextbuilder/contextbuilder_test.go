package contextbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRules struct{ files []RuleFile }

func (f fakeRules) RuleFiles() []RuleFile { return f.files }

type fakeSkills struct {
	text  string
	count int
}

func (f fakeSkills) Metadata() (string, int) { return f.text, f.count }

type fakeProfiles struct{ p *Profile }

func (f fakeProfiles) Resolve(name, model, provider string) *Profile { return f.p }

func TestBuild_BaseOnlyNoSources(t *testing.T) {
	b := New(Builder{IncludeRules: true, IncludeSkills: true})
	ctx := b.Build("you are an assistant", nil)
	require.Equal(t, "you are an assistant", ctx.SystemPrompt)
	require.Empty(t, ctx.Injections)
}

func TestBuild_RulesPrepended(t *testing.T) {
	b := New(Builder{
		IncludeRules: true,
		Rules:        fakeRules{files: []RuleFile{{Path: "AGENTS.md", Content: "be careful"}}},
	})
	ctx := b.Build("base", nil)
	require.Equal(t, "be careful\n\nbase", ctx.SystemPrompt)
	require.Len(t, ctx.Injections, 1)
	require.Equal(t, "rules", ctx.Injections[0].Source)
	require.Equal(t, "system_prompt_prepend", ctx.Injections[0].Location)
}

func TestBuild_SkillsAppended(t *testing.T) {
	b := New(Builder{
		IncludeSkills: true,
		Skills:        fakeSkills{text: "- review: reviews code", count: 1},
	})
	ctx := b.Build("base", nil)
	require.Equal(t, "base\n\n- review: reviews code", ctx.SystemPrompt)
	require.Equal(t, "skill_metadata", ctx.Injections[0].Source)
}

func TestBuild_ProfilePrefixSuffixAndPatterns(t *testing.T) {
	b := New(Builder{
		Profiles: fakeProfiles{p: &Profile{
			Name:               "concise",
			SystemPromptPrefix: "be terse.",
			SystemPromptSuffix: "end tersely.",
			PatternsText:       "pattern: no filler.",
		}},
	})
	ctx := b.Build("base", nil)
	require.Equal(t, "be terse.\n\npattern: no filler.\n\nbase\n\nend tersely.", ctx.SystemPrompt)
	require.Len(t, ctx.Injections, 3)
	require.NotNil(t, ctx.Profile)
	require.Equal(t, "concise", ctx.Profile.Name)
}

func TestBuild_HookInjectionsPrependAndAppend(t *testing.T) {
	b := New(Builder{})
	ctx := b.Build("base", []HookInjection{
		{Content: "prepended by plugin", Location: "prepend"},
		{Content: "appended by plugin", Location: "append"},
	})
	require.Equal(t, "prepended by plugin\n\nbase\n\nappended by plugin", ctx.SystemPrompt)
	require.Len(t, ctx.Injections, 2)
	require.Equal(t, "system_prompt_prepend", ctx.Injections[0].Location)
	require.Equal(t, "system_prompt_append", ctx.Injections[1].Location)
}

func TestBuild_FullOrderingAllSources(t *testing.T) {
	b := New(Builder{
		IncludeRules:  true,
		IncludeSkills: true,
		Rules:         fakeRules{files: []RuleFile{{Path: "AGENTS.md", Content: "R"}}},
		Skills:        fakeSkills{text: "S", count: 1},
		Profiles: fakeProfiles{p: &Profile{
			Name: "p", SystemPromptPrefix: "PP", SystemPromptSuffix: "PS", PatternsText: "PAT",
		}},
	})
	ctx := b.Build("BASE", []HookInjection{
		{Content: "HP", Location: "prepend"},
		{Content: "HA", Location: "append"},
	})
	require.Equal(t, "R\n\nHP\n\nPP\n\nPAT\n\nBASE\n\nPS\n\nS\n\nHA", ctx.SystemPrompt)
}

func TestLogger_ReceivesInitInjectionAndReady(t *testing.T) {
	var initCalls, injectionCalls, readyCalls int
	b := New(Builder{
		IncludeRules: true,
		Rules:        fakeRules{files: []RuleFile{{Path: "AGENTS.md", Content: "R"}}},
		Logger:       &countingLogger{init: &initCalls, injection: &injectionCalls, ready: &readyCalls},
	})
	b.Build("base", nil)
	require.Equal(t, 1, initCalls)
	require.Equal(t, 1, injectionCalls)
	require.Equal(t, 1, readyCalls)
}

type countingLogger struct {
	init, injection, ready *int
}

func (c *countingLogger) LogContextInit(string)         { *c.init++ }
func (c *countingLogger) LogContextInjection(Injection) { *c.injection++ }
func (c *countingLogger) LogContextReady(string)        { *c.ready++ }
