//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr puts the daemon in its own process group so signals aimed at
// the controller's group (Ctrl-C in the terminal) do not reach it.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// signalTerm sends SIGTERM to the process.
func signalTerm(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

// signalKill sends SIGKILL to the process.
func signalKill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// isProcessAlive checks if a process is still running. EPERM means the
// process exists but belongs to someone else.
func isProcessAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || !isNoSuchProcess(err)
}

// isNoSuchProcess returns true if the error indicates the process doesn't exist.
func isNoSuchProcess(err error) bool {
	return errors.Is(err, unix.ESRCH)
}
