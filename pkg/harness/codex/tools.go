package codex

import (
	"godex/pkg/harness"
	"godex/pkg/protocol"
)

// ApplyPatchLarkGrammar is the Lark grammar defining the apply_patch
// envelope the model must emit.
const ApplyPatchLarkGrammar = `start: begin_patch hunk+ end_patch
begin_patch: "*** Begin Patch" LF
end_patch: "*** End Patch" LF?

hunk: add_hunk | delete_hunk | update_hunk
add_hunk: "*** Add File: " filename LF add_line+
delete_hunk: "*** Delete File: " filename LF
update_hunk: "*** Update File: " filename LF change_move? change?

filename: /(.+)/
add_line: "+" /(.*)/ LF -> line

change_move: "*** Move to: " filename LF
change: (change_context | change_line)+ eof_line?
change_context: ("@@" | "@@ " /(.+)/) LF
change_line: ("+" | "-" | " ") /(.*)/ LF
eof_line: "*** End of File" LF

%import common.LF`

// functionSpec builds a plain function tool with a JSON-schema parameter
// document.
func functionSpec(name, description, schema string) protocol.ToolSpec {
	return protocol.ToolSpec{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters:  []byte(schema),
	}
}

// ApplyPatchToolSpec returns the apply_patch tool: a freeform tool whose
// input format is the Lark grammar above rather than JSON.
func ApplyPatchToolSpec() protocol.ToolSpec {
	return protocol.ToolSpec{
		Type:        "function",
		Name:        "apply_patch",
		Description: "Apply a patch to files. Use the Codex patch format.",
		Format: &protocol.CustomFormat{
			Type:       "freeform",
			Syntax:     "lark",
			Definition: ApplyPatchLarkGrammar,
		},
	}
}

// UpdatePlanToolSpec returns the update_plan tool.
func UpdatePlanToolSpec() protocol.ToolSpec {
	return functionSpec("update_plan",
		"Update the plan with step-by-step progress. Use to track task progress.", `{
		"type": "object",
		"properties": {
			"steps": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"title": {"type": "string"},
						"status": {"type": "string", "enum": ["pending", "in_progress", "completed"]}
					},
					"required": ["title", "status"]
				}
			},
			"explanation": {"type": "string"}
		},
		"required": ["steps"]
	}`)
}

// ShellToolSpec returns the shell/container.exec tool.
func ShellToolSpec() protocol.ToolSpec {
	return functionSpec("shell",
		"Execute a shell command in the sandbox environment.", `{
		"type": "object",
		"properties": {
			"command": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Command and arguments to execute"
			},
			"sandbox_permissions": {
				"type": "string",
				"enum": ["sandbox", "require_escalated"]
			},
			"justification": {
				"type": "string",
				"description": "Reason for requiring escalated permissions"
			}
		},
		"required": ["command"]
	}`)
}

// DefaultTools is the native Codex tool set, in wire format.
func DefaultTools() []protocol.ToolSpec {
	return []protocol.ToolSpec{
		ApplyPatchToolSpec(),
		UpdatePlanToolSpec(),
		ShellToolSpec(),
	}
}

// DefaultHarnessTools mirrors DefaultTools as harness.ToolSpec, for callers
// that advertise the native tool names without the wire schemas.
func DefaultHarnessTools() []harness.ToolSpec {
	return []harness.ToolSpec{
		{Name: "apply_patch", Description: "Apply a patch to files using the Codex patch format."},
		{Name: "update_plan", Description: "Update the plan with step-by-step progress."},
		{Name: "shell", Description: "Execute a shell command in the sandbox environment."},
	}
}
