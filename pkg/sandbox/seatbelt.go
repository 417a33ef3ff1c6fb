package sandbox

import (
	"fmt"
	"strings"
)

func escapeSBPL(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

// GenerateSeatbeltProfile builds a macOS Seatbelt (sandbox-exec) profile:
// deny-by-default, allow reads everywhere except protected clusters, punch
// the allowed-write directories back open for both read and write, and
// gate network access on AllowNetwork.
func (c *Config) GenerateSeatbeltProfile() string {
	c.resolve()

	var b strings.Builder
	b.WriteString(";; sandbox profile\n")
	fmt.Fprintf(&b, ";; project root: %s\n\n", c.ProjectRoot)
	b.WriteString("(version 1)\n\n")
	b.WriteString("(deny default)\n\n")
	b.WriteString("(allow process-fork)\n(allow process-exec)\n(allow signal)\n\n")
	b.WriteString("(allow file-read*)\n\n")

	for _, blocked := range c.blockedRead {
		fmt.Fprintf(&b, "(deny file-read* (subpath \"%s\"))\n", escapeSBPL(blocked))
	}

	// Writes are deny-by-default already; the explicit clauses keep the
	// sensitive clusters denied even if a broad allow is added above them
	// in a hand-edited profile.
	b.WriteString("\n;; sensitive write clusters stay denied\n")
	for _, blocked := range c.blockedWrite {
		fmt.Fprintf(&b, "(deny file-write* (subpath \"%s\"))\n", escapeSBPL(blocked))
	}

	b.WriteString("\n;; re-allow project/allowed directories\n")
	for _, allowed := range c.allowedWrite {
		fmt.Fprintf(&b, "(allow file-read* (subpath \"%s\"))\n", escapeSBPL(allowed))
	}

	b.WriteString("\n;; writes restricted to allowed directories\n")
	for _, allowed := range c.allowedWrite {
		fmt.Fprintf(&b, "(allow file-write* (subpath \"%s\"))\n", escapeSBPL(allowed))
	}

	if c.AllowNetwork {
		b.WriteString("\n(allow network*)\n")
	} else {
		b.WriteString("\n(deny network*)\n")
	}

	b.WriteString(`
(allow sysctl-read)
(allow mach-lookup)
(allow ipc-posix-shm-read*)
(allow ipc-posix-shm-write-create)
(allow ipc-posix-shm-write-data)
`)

	return b.String()
}

// SeatbeltCommand writes the generated profile to a temp file and wraps
// command with `sandbox-exec -f <profile>`. Returns the wrapped command and
// the profile path (caller should remove it when done).
func (c *Config) SeatbeltCommand(command string, writeProfile func(contents string) (path string, err error)) (string, string, error) {
	profile := c.GenerateSeatbeltProfile()
	path, err := writeProfile(profile)
	if err != nil {
		return "", "", fmt.Errorf("sandbox: write seatbelt profile: %w", err)
	}
	escaped := strings.ReplaceAll(command, "'", `'"'"'`)
	wrapped := fmt.Sprintf("sandbox-exec -f '%s' /bin/bash -c '%s'", path, escaped)
	return wrapped, path, nil
}
