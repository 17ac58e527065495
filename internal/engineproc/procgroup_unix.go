//go:build !windows

package engineproc

import (
	"os/exec"
	"syscall"
)

// setProcessGroup configures the child to start its own process group so
// the watchdog can kill it (and any helper processes it forks) as a
// unit, per spec.md §9 design notes.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the whole process group rooted at pid.
func killProcessGroup(pid int, sig syscall.Signal) {
	_ = syscall.Kill(-pid, sig)
}
