//go:build windows

package engineproc

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	// Windows has no process-group signal model analogous to POSIX;
	// best effort is to rely on Process.Kill for the direct child.
}

func killProcessGroup(pid int, _ syscall.Signal) {
	// no group kill on Windows: kill the direct child only.
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}
