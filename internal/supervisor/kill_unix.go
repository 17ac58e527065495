//go:build !windows

package supervisor

import (
	"syscall"
	"time"
)

// killWorkerPID force-terminates the process group the watchdog found
// overdue: SIGTERM first, then SIGKILL if the group is still alive
// after a 350ms grace, mirroring engineproc.Adapter.Terminate's own
// escalation. If the group survives even SIGKILL, the watchdog's
// 3000ms overdue check still declares it permanently unresponsive.
func killWorkerPID(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(350 * time.Millisecond)
	if processGroupAlive(pid) {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
}

// processGroupAlive reports whether the group leader still exists,
// using signal 0 which performs error checking without delivering a
// signal.
func processGroupAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
