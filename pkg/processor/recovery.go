package processor

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RecoveryConfig controls the tool-call recovery subsystem: scavenging JSON
// tool-call payloads that a weak model emitted inside its thinking text
// instead of as a structured tool_use.
type RecoveryConfig struct {
	Enabled                 bool
	FeedbackEnabled         bool
	MaxRecoveriesPerTurn    int
	MaxRecoveriesPerSession int
	// LoopWindowRounds is how many preceding rounds are checked for a repeat
	// (tool, canonical-args) pair before recovery is refused as a loop.
	LoopWindowRounds int
}

// DefaultRecoveryConfig matches the Open Question decisions recorded for
// this module.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Enabled:                 true,
		FeedbackEnabled:         true,
		MaxRecoveriesPerTurn:    3,
		MaxRecoveriesPerSession: 20,
		LoopWindowRounds:        1,
	}
}

// RecoveredCall is a tool call synthesized from thinking-text JSON.
type RecoveredCall struct {
	ToolName      string
	Arguments     map[string]any
	CanonicalArgs string
	MatchKind     string // "schema" | "context"
}

var antiPatternSuffixes = []string{
	"example:", "for instance", "such as", "e.g.", "```json", "```",
}

type recoveryRecord struct {
	round         int
	tool          string
	canonicalArgs string
}

// Recoverer holds the session-scoped state (budget counter, loop-detection
// history) for the recovery subsystem across the life of one conversation.
type Recoverer struct {
	cfg          RecoveryConfig
	sessionCount int
	history      []recoveryRecord
}

// NewRecoverer builds a Recoverer for one session.
func NewRecoverer(cfg RecoveryConfig) *Recoverer {
	return &Recoverer{cfg: cfg}
}

// Attempt scans thinking for a recoverable tool call. turnRecoveries is the
// number already recovered this turn; round is the current tool-loop round,
// used for loop detection.
func (r *Recoverer) Attempt(thinking string, registry *Registry, turnRecoveries, round int) (*RecoveredCall, bool) {
	if !r.cfg.Enabled {
		return nil, false
	}
	if r.cfg.MaxRecoveriesPerSession > 0 && r.sessionCount >= r.cfg.MaxRecoveriesPerSession {
		return nil, false
	}
	if r.cfg.MaxRecoveriesPerTurn > 0 && turnRecoveries >= r.cfg.MaxRecoveriesPerTurn {
		return nil, false
	}

	for _, c := range scanBalancedObjects(thinking) {
		if hasAntiPatternBefore(thinking, c.start) {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(c.text), &parsed); err != nil || len(parsed) == 0 {
			continue
		}
		tool, kind := matchTool(parsed, registry, thinking, c.start)
		if tool == nil {
			continue
		}
		if tool.RecoveryPolicy() == "deny" {
			continue
		}
		canonical := canonicalize(parsed)
		if r.isLoop(tool.Name(), canonical, round) {
			continue
		}

		r.sessionCount++
		r.history = append(r.history, recoveryRecord{round: round, tool: tool.Name(), canonicalArgs: canonical})
		return &RecoveredCall{ToolName: tool.Name(), Arguments: parsed, CanonicalArgs: canonical, MatchKind: kind}, true
	}
	return nil, false
}

func (r *Recoverer) isLoop(tool, canonical string, round int) bool {
	window := r.cfg.LoopWindowRounds
	if window <= 0 {
		window = 1
	}
	for _, rec := range r.history {
		if rec.tool == tool && rec.canonicalArgs == canonical && round-rec.round <= window {
			return true
		}
	}
	return false
}

type jsonCandidate struct {
	start, end int
	text       string
}

// scanBalancedObjects finds every top-level balanced {...} substring and
// returns them in end-to-start order, so the most recently written (and
// thus most likely final) JSON blob is tried first.
func scanBalancedObjects(s string) []jsonCandidate {
	var out []jsonCandidate
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, ch := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, jsonCandidate{start: start, end: i + 1, text: s[start : i+1]})
					start = -1
				}
			}
		}
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func hasAntiPatternBefore(s string, start int) bool {
	before := strings.TrimRight(s[:start], " \t\n\r:")
	lower := strings.ToLower(before)
	for _, p := range antiPatternSuffixes {
		// Trailing colons were trimmed from before, so match without them.
		if strings.HasSuffix(lower, strings.TrimSuffix(p, ":")) {
			return true
		}
	}
	return false
}

// matchTool prefers a schema match (every required field of some tool is
// present in the parsed keys) and falls back to a context match (the tool's
// name appears in the text just before the candidate, and at least one
// parsed key is a known property of that tool's schema).
func matchTool(parsed map[string]any, registry *Registry, fullText string, candidateStart int) (Tool, string) {
	tools := registry.List()

	for _, t := range tools {
		required := requiredFields(t.InputSchema())
		if len(required) == 0 {
			continue
		}
		allPresent := true
		for _, f := range required {
			if _, ok := parsed[f]; !ok {
				allPresent = false
				break
			}
		}
		if allPresent && validatesAgainst(parsed, t.InputSchema()) {
			return t, "schema"
		}
	}

	windowStart := candidateStart - 300
	if windowStart < 0 {
		windowStart = 0
	}
	window := fullText[windowStart:candidateStart]
	for _, t := range tools {
		if !strings.Contains(window, t.Name()) {
			continue
		}
		props := propertyNames(t.InputSchema())
		for k := range parsed {
			if props[k] {
				return t, "context"
			}
		}
	}

	return nil, ""
}

// validatesAgainst reports whether doc satisfies the tool's JSON schema. An
// unloadable schema counts as non-matching rather than aborting recovery.
func validatesAgainst(doc map[string]any, schema map[string]any) bool {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return false
	}
	return result.Valid()
}

func requiredFields(schema map[string]any) []string {
	raw, ok := schema["required"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func propertyNames(schema map[string]any) map[string]bool {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(props))
	for k := range props {
		out[k] = true
	}
	return out
}

// canonicalize renders a parsed JSON object with sorted keys, so structurally
// identical recoveries compare equal regardless of key order.
func canonicalize(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}
