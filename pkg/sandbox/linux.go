package sandbox

import (
	"fmt"
	"os/exec"
	"strings"
)

// ErrBubblewrapNotFound is returned when Linux sandboxing is required but
// bubblewrap isn't installed and SkipSandbox is false.
type ErrBubblewrapNotFound struct{}

func (e *ErrBubblewrapNotFound) Error() string {
	return "sandbox: bubblewrap (bwrap) not found; install it or set skip_sandbox to bypass (not recommended)"
}

// RequireBwrap checks that the bwrap binary is on PATH.
func RequireBwrap() error {
	if _, err := exec.LookPath("bwrap"); err != nil {
		return &ErrBubblewrapNotFound{}
	}
	return nil
}

// BwrapCommand composes a bubblewrap invocation that read-only binds the
// root filesystem, read-write binds the project root and every other
// allowed path, optionally shares the network namespace, and finally runs
// command under /bin/sh.
func (c *Config) BwrapCommand(command string) (string, error) {
	c.resolve()
	if err := RequireBwrap(); err != nil {
		return "", err
	}

	args := []string{
		"bwrap",
		"--ro-bind", "/", "/",
		"--dev", "/dev",
		"--proc", "/proc",
		"--die-with-parent",
		"--unshare-all",
	}
	if c.AllowNetwork {
		args = append(args, "--share-net")
	}
	for _, p := range c.allowedWrite {
		args = append(args, "--bind", p, p)
	}

	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	quoted = append(quoted, "--", "/bin/sh", "-c", shellQuote(command))
	return strings.Join(quoted, " "), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// GetSandboxCommand wraps command for execution: Seatbelt on
// macOS, bubblewrap on Linux, and an error on any other platform. DryRun
// and SkipSandbox are honoured first on every platform. The warning result
// is always empty.
func (c *Config) GetSandboxCommand(command string, goos string, writeProfile func(string) (string, error)) (wrapped string, profilePath string, warning string, err error) {
	if c.DryRun {
		return fmt.Sprintf("echo '[DRY RUN] Would execute: %s'", command), "", "", nil
	}
	if c.SkipSandbox {
		return command, "", "", nil
	}

	switch goos {
	case "darwin":
		wrapped, profilePath, err = c.SeatbeltCommand(command, writeProfile)
		return wrapped, profilePath, "", err
	case "linux":
		wrapped, err = c.BwrapCommand(command)
		return wrapped, "", "", err
	default:
		// skip_sandbox is already handled above; reaching here means the
		// caller wants sandboxing but this platform has none available.
		return "", "", "", fmt.Errorf("sandbox: no sandbox available for %s and skip_sandbox is not set", goos)
	}
}
