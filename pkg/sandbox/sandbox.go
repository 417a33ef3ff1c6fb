// Package sandbox validates filesystem paths and wraps tool-execution
// commands in a platform-specific OS sandbox (Seatbelt on macOS, bubblewrap
// on Linux).
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Operation is the kind of filesystem access being validated.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// PathValidationError reports that a path failed sandbox validation. It
// never aborts the process — callers surface it as a tool failure.
type PathValidationError struct {
	Path      string
	Operation Operation
	Reason    string
}

func (e *PathValidationError) Error() string {
	return fmt.Sprintf("%s access denied: %s (%s)", e.Operation, e.Path, e.Reason)
}

// Config controls sandbox behavior for one session: which directories tools
// may write to, which protected clusters are off-limits for reads, and
// whether network access and the OS-level wrapper itself are enabled.
type Config struct {
	ProjectRoot  string
	AllowedPaths []string
	BlockedPaths []string
	AllowNetwork bool
	DryRun       bool
	SkipSandbox  bool

	allowedWrite []string
	blockedRead  []string
	blockedWrite []string
	resolved     bool
}

// NewConfig builds a Config and resolves its allow/block lists against the
// current platform and filesystem.
func NewConfig(cfg Config) *Config {
	c := cfg
	c.resolve()
	return &c
}

func (c *Config) resolve() {
	if c.resolved {
		return
	}
	root := c.ProjectRoot
	if root == "" {
		root, _ = os.Getwd()
	}
	rootAbs := resolveQuiet(root)

	c.allowedWrite = append([]string{rootAbs}, tmpPaths()...)
	for _, p := range c.AllowedPaths {
		c.allowedWrite = append(c.allowedWrite, resolveQuiet(expand(p)))
	}

	readBlock, writeBlock := sensitivePaths()
	c.blockedRead = expandAll(append(readBlock, c.BlockedPaths...))
	c.blockedWrite = expandAll(append(writeBlock, c.BlockedPaths...))
	c.resolved = true
}

func expand(p string) string {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func expandAll(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, resolveQuiet(expand(p)))
	}
	return out
}

// resolveQuiet resolves symlinks when the path exists; otherwise it returns
// the cleaned, absolute form so attempts to create a blocked path are still
// matched.
func resolveQuiet(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return filepath.Clean(abs)
}

func tmpPaths() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, err := os.Stat(p); err != nil {
			return
		}
		r := resolveQuiet(p)
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	add("/tmp")
	add("/private/tmp")
	add(os.TempDir())
	return out
}

func sensitivePaths() (readBlock, writeBlock []string) {
	switch runtime.GOOS {
	case "darwin":
		readBlock = []string{"/Users", "/Volumes"}
		writeBlock = []string{
			"/Users", "/Volumes", "/System", "/Library", "/Applications",
			"/private", "/cores", "/etc", "/usr", "/bin", "/sbin", "/var", "/opt",
		}
	case "linux":
		readBlock = []string{"/home", "/root", "/mnt", "/media", "/run/media"}
		writeBlock = []string{
			"/home", "/root", "/mnt", "/media", "/run/media",
			"/etc", "/usr", "/bin", "/sbin", "/var", "/opt", "/boot",
			"/lib", "/lib64", "/lib32", "/srv",
		}
	default:
		readBlock = nil
		writeBlock = nil
	}
	return
}

func isUnder(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidatePath resolves path (following symlinks) and checks it against the
// allow/block lists for the given operation. Writes are allowed only inside
// the project root, the system temp dirs, or an explicitly allowed path —
// no exceptions. Reads follow allow-first, then fall back to the protected
// read-cluster check; paths that are neither allowed nor protected are
// permitted (needed for /usr, /bin, etc).
func (c *Config) ValidatePath(path string, op Operation) (string, error) {
	c.resolve()
	resolved := resolveQuiet(path)

	for _, allowed := range c.allowedWrite {
		if isUnder(resolved, allowed) {
			return resolved, nil
		}
	}

	if op == OpWrite {
		return "", &PathValidationError{
			Path: path, Operation: op,
			Reason: fmt.Sprintf("writes are only allowed inside %s", strings.Join(c.allowedWrite, ", ")),
		}
	}

	for _, blocked := range c.blockedRead {
		if isUnder(resolved, blocked) {
			return "", &PathValidationError{
				Path: path, Operation: op,
				Reason: "inside a protected location",
			}
		}
	}

	// Not allowed, not blocked: permitted, e.g. /usr, /bin, /System.
	return resolved, nil
}

// IsPathSafe is the non-throwing form of ValidatePath.
func (c *Config) IsPathSafe(path string, op Operation) bool {
	_, err := c.ValidatePath(path, op)
	return err == nil
}

// ResolveAndValidate resolves a possibly-relative path against baseDir, then
// validates it.
func (c *Config) ResolveAndValidate(path, baseDir string, op Operation) (string, error) {
	expanded := expand(path)
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(baseDir, expanded)
	}
	return c.ValidatePath(expanded, op)
}

// AllowedWritePaths returns the resolved list of directories writes may
// target: project root, temp dirs, and any explicitly configured paths.
func (c *Config) AllowedWritePaths() []string {
	c.resolve()
	return append([]string(nil), c.allowedWrite...)
}
