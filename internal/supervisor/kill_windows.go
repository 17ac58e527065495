//go:build windows

package supervisor

func killWorkerPID(pid int) {}
