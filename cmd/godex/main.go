// Command godex is the terminal front end for the orchestrator core: it
// builds Settings, assembles the system prompt, dispatches a chat turn to
// the selected provider, and renders the streamed result. The heavy lifting
// lives in pkg/; this binary is argument parsing and presentation.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

const usage = `godex - local LLM chat orchestrator

Usage:
  godex chat [flags] [prompt...]   run one chat turn (stdin is read when no prompt is given)
  godex config show [--provenance] print the merged configuration
  godex api providers              list configured provider instances
  godex api test [--live]          instantiate every enabled backend (--live lists models)
  godex session list               list logged sessions
  godex session show <id>          render a session transcript as markdown
  godex session delete <id>        delete a session log
`

// Exit codes: 0 success, 1 user error or runtime failure, 2 missing input.
const (
	exitOK           = 0
	exitFailure      = 1
	exitMissingInput = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return exitMissingInput
	}

	switch args[0] {
	case "chat":
		return cmdChat(args[1:])
	case "config":
		return cmdConfig(args[1:])
	case "api":
		return cmdAPI(args[1:])
	case "session":
		return cmdSession(args[1:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "godex: unknown command %q\n\n%s", args[0], usage)
		return exitFailure
	}
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "godex: %v\n", err)
	return exitFailure
}

// newLogger builds the process-level operational logger. The conversation
// transcript has its own JSONL logger in pkg/convlog; this one is for
// warnings and diagnostics only.
func newLogger(verbose bool) *zap.Logger {
	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
