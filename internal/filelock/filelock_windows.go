//go:build windows

package filelock

import "os"

// Lock is a no-op stand-in on Windows, where os.File already denies
// concurrent writers by default; see filelock.go for the Unix advisory
// implementation this mirrors.
type Lock struct{}

func Acquire(f *os.File) (*Lock, error) { return &Lock{}, nil }

func TryAcquire(f *os.File) (*Lock, bool, error) { return &Lock{}, true, nil }

func (l *Lock) Unlock() error { return nil }
