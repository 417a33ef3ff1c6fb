package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"godex/pkg/aliases"
	"godex/pkg/backend"
	_ "godex/pkg/backend/anthropic"
	_ "godex/pkg/backend/codex"
	_ "godex/pkg/backend/ollama"
	_ "godex/pkg/backend/openapi"
	"godex/pkg/convlog"
	"godex/pkg/settings"
)

func cmdConfig(args []string) int {
	if len(args) == 0 || args[0] != "show" {
		fmt.Fprintln(os.Stderr, "usage: godex config show [--provenance]")
		return exitFailure
	}
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	provenance := fs.Bool("provenance", false, "annotate each top-level key with its source layer")
	if err := fs.Parse(args[1:]); err != nil {
		return exitFailure
	}

	s, err := settings.Load(settings.LoadOptions{ProjectRoot: projectRoot(), Track: *provenance})
	if err != nil {
		return fail(err)
	}

	merged := s.DCM().ToMap()
	out, err := yaml.Marshal(merged)
	if err != nil {
		return fail(err)
	}
	fmt.Print(string(out))

	if *provenance {
		fmt.Println("# provenance (layer index per key, -1 = override)")
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, prov, ok := s.DCM().GetWithProvenance(k); ok && prov != nil {
				fmt.Printf("# %s: %v\n", k, prov)
			}
		}
	}

	if extras := s.CollectAllExtraFields(); len(extras) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unrecognized config keys: %s\n", strings.Join(extras, ", "))
	}
	return exitOK
}

func cmdAPI(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: godex api providers | godex api test [--live]")
		return exitFailure
	}
	switch args[0] {
	case "providers":
		return apiProviders()
	case "test":
		fs := flag.NewFlagSet("api test", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		live := fs.Bool("live", false, "also query each backend for its model list")
		if err := fs.Parse(args[1:]); err != nil {
			return exitFailure
		}
		return apiTest(*live)
	default:
		fmt.Fprintf(os.Stderr, "godex api: unknown subcommand %q\n", args[0])
		return exitFailure
	}
}

func apiProviders() int {
	s, err := settings.Load(settings.LoadOptions{ProjectRoot: projectRoot()})
	if err != nil {
		return fail(err)
	}

	names := make([]string, 0, len(s.Providers.Instances))
	for name := range s.Providers.Instances {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		inst := s.Providers.Instances[name]
		state := "enabled"
		if !inst.Enabled {
			state = "disabled"
		}
		marker := " "
		if name == s.DefaultProvider() {
			marker = "*"
		}
		fmt.Printf("%s %-12s type=%-10s %s", marker, name, inst.Type, state)
		if inst.BaseURL != "" {
			fmt.Printf("  %s", inst.BaseURL)
		}
		fmt.Println()
	}
	return exitOK
}

func apiTest(live bool) int {
	s, err := settings.Load(settings.LoadOptions{ProjectRoot: projectRoot()})
	if err != nil {
		return fail(err)
	}

	registry, err := backend.NewRegistryFromSettings(s.Providers)
	if err != nil {
		return fail(err)
	}

	names := registry.List()
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: ok\n", name)
	}

	if !live {
		return exitOK
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, name := range names {
		b, _ := registry.Get(name)
		models, err := b.ListModels(ctx)
		if err != nil {
			fmt.Printf("%s: list models failed: %v\n", name, err)
			continue
		}
		for _, m := range models {
			fmt.Printf("%s: %s\n", name, m.ID)
		}
	}

	// Resolve the built-in alias rules against whatever answered.
	for _, res := range aliases.Resolve(ctx, registry.All(), s.Models.Aliases, nil) {
		if res.Error != "" || !res.Changed {
			continue
		}
		fmt.Printf("alias %s -> %s\n", res.Alias, res.Resolved)
	}
	return exitOK
}

func cmdSession(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: godex session list|show <id>|delete <id>")
		return exitFailure
	}

	s, err := settings.Load(settings.LoadOptions{ProjectRoot: projectRoot()})
	if err != nil {
		return fail(err)
	}
	dir := expandHome(s.Logging.Dir)

	switch args[0] {
	case "list":
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return exitOK
			}
			return fail(err)
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".jsonl") {
				fmt.Println(strings.TrimSuffix(e.Name(), ".jsonl"))
			}
		}
		return exitOK

	case "show":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: godex session show <id>")
			return exitMissingInput
		}
		f, err := os.Open(filepath.Join(dir, args[1]+".jsonl"))
		if err != nil {
			return fail(err)
		}
		defer f.Close()
		md, err := convlog.ExportMarkdown(f)
		if err != nil {
			return fail(err)
		}
		fmt.Print(md)
		return exitOK

	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: godex session delete <id>")
			return exitMissingInput
		}
		if err := os.Remove(filepath.Join(dir, args[1]+".jsonl")); err != nil {
			return fail(err)
		}
		return exitOK

	default:
		fmt.Fprintf(os.Stderr, "godex session: unknown subcommand %q\n", args[0])
		return exitFailure
	}
}
