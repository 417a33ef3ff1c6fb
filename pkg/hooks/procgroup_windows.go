//go:build windows

package hooks

import (
	"os/exec"
	"syscall"
)

// setProcGroup is a no-op on Windows; there is no POSIX process-group
// concept here. The fallback termination path uses (*os.Process).Kill.
func setProcGroup(cmd *exec.Cmd) {}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
}

func terminateSignal() syscall.Signal { return syscall.SIGTERM }
func killSignal() syscall.Signal      { return syscall.SIGKILL }
