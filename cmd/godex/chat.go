package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"godex/pkg/auth"
	backendAnth "godex/pkg/backend/anthropic"
	backendCodex "godex/pkg/backend/codex"
	backendOAI "godex/pkg/backend/openapi"
	"godex/pkg/config"
	"godex/pkg/contextbuilder"
	"godex/pkg/convlog"
	"godex/pkg/harness"
	"godex/pkg/harness/claude"
	"godex/pkg/harness/codex"
	harnessOAI "godex/pkg/harness/openai"
	"godex/pkg/hooks"
	"godex/pkg/metrics"
	"godex/pkg/processor"
	"godex/pkg/router"
	"godex/pkg/settings"
)

const basePrompt = "You are godex, a concise coding assistant running in a terminal."

type chatFlags struct {
	printMode       bool
	jsonOut         bool
	noStream        bool
	noColor         bool
	yes             bool
	dryRun          bool
	tools           bool
	noLog           bool
	logFile         string
	provider        string
	model           string
	profile         string
	skipPermissions bool
	skipSandbox     bool
	resume          string
}

func cmdChat(args []string) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var cf chatFlags
	fs.BoolVar(&cf.printMode, "p", false, "non-interactive: print the response and exit")
	fs.BoolVar(&cf.printMode, "print", false, "non-interactive: print the response and exit")
	fs.BoolVar(&cf.jsonOut, "json", false, "emit the result as JSON")
	fs.BoolVar(&cf.noStream, "no-stream", false, "buffer output instead of streaming")
	fs.BoolVar(&cf.noColor, "no-color", false, "disable color output")
	fs.BoolVar(&cf.yes, "y", false, "auto-approve tool permission prompts")
	fs.BoolVar(&cf.yes, "yes", false, "auto-approve tool permission prompts")
	fs.BoolVar(&cf.dryRun, "dry-run", false, "do not execute tools, synthesize results")
	fs.BoolVar(&cf.tools, "tools", true, "offer tools to the model")
	noTools := fs.Bool("no-tools", false, "do not offer tools to the model")
	fs.BoolVar(&cf.noLog, "no-log", false, "disable conversation logging")
	fs.StringVar(&cf.logFile, "log-file", "", "write the conversation log to this file")
	fs.StringVar(&cf.provider, "provider", "", "provider instance name (default from config)")
	fs.StringVar(&cf.model, "model", "", "model id or alias (default from config)")
	fs.StringVar(&cf.profile, "profile", "", "profile name")
	fs.BoolVar(&cf.skipPermissions, "dangerously-skip-permissions", false, "skip all permission prompts")
	fs.BoolVar(&cf.skipSandbox, "dangerously-skip-sandbox", false, "disable the OS sandbox")
	fs.StringVar(&cf.resume, "resume", "", "resume a logged session by id")

	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if *noTools {
		cf.tools = false
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		prompt = readStdinPrompt()
	}
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "godex: no prompt given (pass arguments or pipe stdin)")
		return exitMissingInput
	}

	s, err := settings.Load(settings.LoadOptions{ProjectRoot: projectRoot()})
	if err != nil {
		return fail(err)
	}
	logger := newLogger(s.Verbose())
	defer logger.Sync()

	return runTurn(s, logger, cf, prompt)
}

func projectRoot() string {
	if root := os.Getenv(settings.EnvPrefix + "_PROJECT_ROOT"); root != "" {
		return root
	}
	cwd, _ := os.Getwd()
	return cwd
}

func readStdinPrompt() string {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func runTurn(s *settings.Settings, logger *zap.Logger, cf chatFlags, prompt string) int {
	model := cf.model
	if model == "" {
		model = s.DefaultModel()
	}
	model = s.ResolveModelAlias(model)

	providerName := cf.provider
	if providerName == "" {
		providerName = s.DefaultProvider()
	}

	r, err := buildRouter(s, logger)
	if err != nil {
		return fail(err)
	}

	var h harness.Harness
	if cf.provider != "" {
		if h = r.Get(providerName); h == nil {
			return fail(fmt.Errorf("provider instance %q is not configured or not enabled", providerName))
		}
	} else {
		h = r.HarnessFor(model)
		if h == nil {
			if h = r.Get(providerName); h == nil {
				return fail(fmt.Errorf("no provider can serve model %q", model))
			}
		}
	}

	if native := s.GetNativeModelID(model, providerName); native != "" {
		model = native
	}

	sessionID := cf.resume
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	clog, closeLog, err := openConvLog(s, cf, sessionID)
	if err != nil {
		return fail(err)
	}
	defer closeLog()

	hookDefs, err := hooks.LoadDefinitions(s.DCM())
	if err != nil {
		return fail(err)
	}
	hookMgr, err := hooks.NewManager(hookDefs, logger)
	if err != nil {
		return fail(err)
	}

	cwd, _ := os.Getwd()
	ctx := context.Background()

	cc := buildContext(ctx, hookMgr, clog, cf, s, sessionID, cwd)

	var cancelled atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancelled.Store(true)
	}()

	proc := processor.New(h, processor.NewRegistry(), processor.Config{
		MaxToolRounds:      s.Behavior.MaxToolRounds,
		ToolResultMaxChars: s.Behavior.ToolResultMaxChars,
		AutoApproveTools:   cf.yes || cf.skipPermissions,
		DryRun:             cf.dryRun,
		Recovery: processor.RecoveryConfig{
			Enabled:                 true,
			FeedbackEnabled:         true,
			MaxRecoveriesPerTurn:    s.Behavior.MaxRecoveriesPerTurn,
			MaxRecoveriesPerSession: s.Behavior.MaxRecoveriesPerSession,
			LoopWindowRounds:        1,
		},
	})
	proc.Hooks = hookMgr
	proc.SessionID = sessionID
	proc.Cwd = cwd
	proc.Model = model
	if s.Behavior.ReasoningLevel != "" {
		proc.Reasoning = &harness.ReasoningConfig{Level: s.Behavior.ReasoningLevel}
	}
	if clog != nil {
		proc.Logger = clog
	}
	proc.Callbacks = &terminalCallbacks{
		stream:    !cf.noStream && !cf.jsonOut,
		yes:       cf.yes || cf.skipPermissions,
		cancelled: &cancelled,
	}

	if clog != nil {
		clog.LogSessionStart(providerName, model)
		clog.LogUserMessage(prompt)
	}

	messages := []harness.Message{{Role: "user", Content: prompt}}

	collector, _ := metrics.NewCollector(metrics.Config{Enabled: s.Logging.Enabled})
	start := time.Now()

	result, err := proc.ProcessTurn(ctx, messages, cc.SystemPrompt)
	if err != nil {
		if clog != nil {
			clog.LogError(err.Error(), "process_turn")
		}
		return fail(err)
	}

	recordTurnMetrics(collector, providerName, model, start, result)
	logTurnResult(clog, result)

	return renderResult(cf, result)
}

// buildRouter registers a harness per enabled provider instance and applies
// the static aliases from settings as user-level overrides.
func buildRouter(s *settings.Settings, logger *zap.Logger) (*router.Router, error) {
	r := router.NewFromSettings(s.Models)

	for name, inst := range s.Providers.Instances {
		if !inst.Enabled {
			continue
		}
		h, err := buildHarness(name, inst)
		if err != nil {
			logger.Warn("provider instance unavailable", zap.String("instance", name), zap.Error(err))
			continue
		}
		r.Register(name, h)
	}
	if len(r.List()) == 0 {
		return nil, fmt.Errorf("no provider instances available; check providers.instances in config")
	}
	return r, nil
}

// buildHarness instantiates the harness for one provider instance by its
// type tag.
func buildHarness(name string, inst settings.ProviderInstance) (harness.Harness, error) {
	switch inst.Type {
	case "anthropic":
		tokens := backendAnth.NewTokenStore(inst.CredentialsPath)
		if err := tokens.Load(); err != nil {
			return nil, fmt.Errorf("load anthropic credentials: %w", err)
		}
		return claude.New(claude.Config{
			Client: claude.NewClientWrapper(tokens, claude.ClientConfig{}),
		}), nil

	case "codex":
		path := inst.CredentialsPath
		if path == "" {
			var err error
			path, err = auth.DefaultPath()
			if err != nil {
				return nil, err
			}
		}
		store, err := auth.Load(path)
		if err != nil {
			return nil, err
		}
		client := backendCodex.New(http.DefaultClient, store, backendCodex.Config{BaseURL: inst.BaseURL, AllowRefresh: true})
		return codex.New(codex.Config{Client: codex.NewClientWrapper(client)}), nil

	case "openai", "openrouter", "vllm", "lmstudio", "ollama":
		baseURL := inst.BaseURL
		if baseURL == "" && inst.Type == "openai" {
			baseURL = "https://api.openai.com/v1"
		}
		authCfg := config.BackendAuthConfig{Type: "none"}
		if inst.APIKeyEnv != "" {
			authCfg = config.BackendAuthConfig{Type: "api_key", KeyEnv: inst.APIKeyEnv}
		}
		client, err := backendOAI.New(backendOAI.Config{Name: name, BaseURL: baseURL, Auth: authCfg})
		if err != nil {
			return nil, err
		}
		return harnessOAI.New(harnessOAI.Config{Client: harnessOAI.NewClientWrapper(client)}), nil

	default:
		return nil, fmt.Errorf("unknown provider type %q for instance %q", inst.Type, name)
	}
}

// buildContext fires the CONTEXT_BUILD hook and assembles the system prompt.
func buildContext(ctx context.Context, hookMgr *hooks.Manager, clog *convlog.Logger, cf chatFlags, s *settings.Settings, sessionID, cwd string) contextbuilder.ConversationContext {
	var hookInjections []contextbuilder.HookInjection
	res, err := hookMgr.Dispatch(ctx, hooks.ContextBuild, hooks.Context{
		Event: hooks.ContextBuild, SessionID: sessionID, Cwd: cwd,
		BaseSystemPrompt: basePrompt,
	})
	if err == nil && res.ContextInjection != "" {
		loc := res.ContextLocation
		if loc == "" {
			loc = "append"
		}
		hookInjections = append(hookInjections, contextbuilder.HookInjection{
			Content:  res.ContextInjection,
			Location: loc,
		})
	}

	b := contextbuilder.New(contextbuilder.Builder{
		ProfileName: cf.profile,
		Model:       cf.model,
		Provider:    cf.provider,
		Logger:      contextLogger(clog),
	})
	return b.Build(basePrompt, hookInjections)
}

func contextLogger(clog *convlog.Logger) contextbuilder.Logger {
	if clog == nil {
		return nil
	}
	return clog
}

func openConvLog(s *settings.Settings, cf chatFlags, sessionID string) (*convlog.Logger, func(), error) {
	if cf.noLog || !s.Logging.Enabled {
		return nil, func() {}, nil
	}
	if cf.logFile != "" {
		f, err := os.OpenFile(cf.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		l := convlog.NewWriter(f, sessionID, convlog.Config{Private: s.Logging.Private})
		return l, func() { l.LogSessionEnd(); f.Close() }, nil
	}
	l, err := convlog.Open(sessionID, convlog.Config{Dir: expandHome(s.Logging.Dir), Private: s.Logging.Private})
	if err != nil {
		return nil, nil, err
	}
	return l, func() { l.LogSessionEnd(); l.Close() }, nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return home + strings.TrimPrefix(p, "~")
		}
	}
	return p
}

func recordTurnMetrics(c *metrics.Collector, backendName, model string, start time.Time, result *processor.Result) {
	if c == nil {
		return
	}
	m := metrics.RequestMetric{
		Timestamp: start,
		Backend:   backendName,
		Model:     model,
		Latency:   time.Since(start),
		Status:    "ok",
	}
	if result.Usage != nil {
		m.TokensIn = result.Usage.InputTokens
		m.TokensOut = result.Usage.OutputTokens
	}
	c.Record(m)
}

func logTurnResult(clog *convlog.Logger, result *processor.Result) {
	if clog == nil {
		return
	}
	if result.ResponseText != "" || result.Thinking != "" {
		clog.LogAssistantMessage(result.ResponseText, result.Thinking)
	}
	if result.Usage != nil {
		clog.LogUsage(result.Usage.InputTokens, result.Usage.OutputTokens, 0)
	}
}

func renderResult(cf chatFlags, result *processor.Result) int {
	if cf.jsonOut {
		out := map[string]any{
			"response":    result.ResponseText,
			"stop_reason": result.StopReason,
			"cancelled":   result.Cancelled,
		}
		if result.Thinking != "" {
			out["thinking"] = result.Thinking
		}
		if result.Usage != nil {
			out["usage"] = map[string]int{
				"input_tokens":  result.Usage.InputTokens,
				"output_tokens": result.Usage.OutputTokens,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
	} else if cf.noStream {
		fmt.Println(result.ResponseText)
	} else {
		// Streaming already printed the deltas; finish the line.
		fmt.Println()
	}

	if result.Cancelled {
		return exitFailure
	}
	return exitOK
}

// terminalCallbacks renders stream events to the terminal and answers
// permission prompts on stderr.
type terminalCallbacks struct {
	processor.NoopCallbacks
	stream    bool
	yes       bool
	cancelled *atomic.Bool
}

func (t *terminalCallbacks) OnTextDelta(text string) {
	if t.stream {
		fmt.Print(text)
	}
}

func (t *terminalCallbacks) OnToolCall(call processor.ToolCallDisplay) {
	recovered := ""
	if call.IsRecovered {
		recovered = " (recovered)"
	}
	fmt.Fprintf(os.Stderr, "\n[tool%s] %s %s\n", recovered, call.Name, call.Arguments)
}

func (t *terminalCallbacks) OnToolResult(result processor.ToolResultDisplay) {
	status := "ok"
	if !result.Success {
		status = "failed: " + result.Error
	}
	fmt.Fprintf(os.Stderr, "[tool] %s -> %s\n", result.Name, status)
}

func (t *terminalCallbacks) OnInfo(message string) {
	fmt.Fprintf(os.Stderr, "[info] %s\n", message)
}

func (t *terminalCallbacks) RequestPermission(call processor.ToolCallDisplay) bool {
	if t.yes {
		return true
	}
	fmt.Fprintf(os.Stderr, "Allow tool %s? [y/N] ", call.Name)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (t *terminalCallbacks) IsCancelled() bool {
	return t.cancelled.Load()
}
