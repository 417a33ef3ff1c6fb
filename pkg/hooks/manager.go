package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// Definition is one hook registration: which event(s) it fires on, an
// optional match predicate, and the command to invoke.
type Definition struct {
	Name    string
	Events  []Event
	Match   string // optional regex tested against ToolName; empty matches all
	Command []string

	matchRe *regexp.Regexp
}

func (d *Definition) compile() error {
	if d.Match == "" {
		return nil
	}
	re, err := regexp.Compile(d.Match)
	if err != nil {
		return fmt.Errorf("hooks: invalid match pattern for %q: %w", d.Name, err)
	}
	d.matchRe = re
	return nil
}

func (d *Definition) matches(toolName string) bool {
	if d.matchRe == nil {
		return true
	}
	return d.matchRe.MatchString(toolName)
}

func (d *Definition) firesOn(ev Event) bool {
	for _, e := range d.Events {
		if e == ev {
			return true
		}
	}
	return false
}

// Manager dispatches lifecycle events to the hooks registered for them, in
// declaration order, stopping at the first "block" verdict.
type Manager struct {
	defs   []*Definition
	logger *zap.Logger
}

// NewManager compiles and validates hook definitions. Definitions are
// dispatched in the order given and never reordered.
func NewManager(defs []Definition, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiled := make([]*Definition, 0, len(defs))
	for i := range defs {
		d := defs[i]
		if err := d.compile(); err != nil {
			return nil, err
		}
		compiled = append(compiled, &d)
	}
	return &Manager{defs: compiled, logger: logger}, nil
}

// Dispatch runs every hook registered for ev whose Match predicate accepts
// hctx.ToolName, in declaration order. The first hook to return "block"
// stops the chain; its Result is returned. If no hook blocks, the last
// non-block Result is returned (or a default "continue" if none ran).
func (m *Manager) Dispatch(ctx context.Context, ev Event, hctx Context) (Result, error) {
	result := Result{Action: ActionContinue}
	for _, d := range m.defs {
		if !d.firesOn(ev) || !d.matches(hctx.ToolName) {
			continue
		}
		r, err := m.run(ctx, d, hctx)
		if err != nil {
			// Hook subprocess crash: degrade open (continue with a warning),
			// except PRE_TOOL_USE which treats it as block.
			m.logger.Warn("hook failed", zap.String("hook", d.Name), zap.Error(err))
			if ev == PreToolUse {
				return Result{Action: ActionBlock, Message: fmt.Sprintf("hook %q failed: %v", d.Name, err)}, nil
			}
			continue
		}
		result = r
		if r.Action == ActionBlock {
			return result, nil
		}
	}
	return result, nil
}

func (m *Manager) run(ctx context.Context, d *Definition, hctx Context) (Result, error) {
	if len(d.Command) == 0 {
		return Result{}, fmt.Errorf("hook %q has no command", d.Name)
	}

	payload, err := json.Marshal(hctx)
	if err != nil {
		return Result{}, fmt.Errorf("encode hook context: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.Command[0], d.Command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	setProcGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start hook %q: %w", d.Name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-runCtx.Done():
		signalGroup(cmd, terminateSignal())
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			signalGroup(cmd, killSignal())
			<-done
		}
		return Result{}, fmt.Errorf("hook %q timed out after %s", d.Name, Timeout)
	case err := <-done:
		if err != nil {
			if _, ok := err.(*exec.ExitError); ok {
				msg := stderr.String()
				if msg == "" {
					msg = stdout.String()
				}
				return Result{Action: ActionBlock, Message: msg}, nil
			}
			return Result{}, err
		}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return Result{Action: ActionContinue}, nil
	}
	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		return Result{}, fmt.Errorf("hook %q returned malformed JSON: %w", d.Name, err)
	}
	if result.Action == "" {
		result.Action = ActionContinue
	}
	return result, nil
}
