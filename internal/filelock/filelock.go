//go:build !windows

// Package filelock provides an advisory exclusive lock scoped to one
// open file, used by the sample-file writer to serialize its
// end-of-stream flush against a concurrent signal-driven shutdown
// (spec.md §5/§9: "the sample file's final flush and the signal
// handler's forced close race without some lock").
package filelock

import (
	"os"

	"golang.org/x/sys/unix"
)

// Lock holds an advisory flock(2) lock on the given file until Unlock.
type Lock struct {
	f *os.File
}

// Acquire blocks until it holds an exclusive advisory lock on f.
func Acquire(f *os.File) (*Lock, error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return nil, err
	}
	return &Lock{f: f}, nil
}

// TryAcquire attempts the lock without blocking, returning ok=false if
// another holder currently owns it (e.g. a concurrent shutdown flush).
func TryAcquire(f *os.File) (lock *Lock, ok bool, err error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &Lock{f: f}, true, nil
}

// Unlock releases the advisory lock. Safe to call once.
func (l *Lock) Unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
