// Package filelock provides an exclusive, process-and-goroutine-safe lock on
// a single file path, for serializing appends to the session log files the
// same way internal/sessions guards its in-memory maps with sync.Mutex —
// extended here to guard a file handle shared across OS processes.
package filelock

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// FileLock holds an OS-level exclusive lock (flock) on path, plus an
// in-process mutex so concurrent goroutines in this binary also serialize
// before ever reaching the syscall.
type FileLock struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// New returns a FileLock bound to path. The lock file is created if it does
// not exist; it is never removed.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires the exclusive lock, blocking until it is available. Callers
// must call Unlock when done, typically via defer.
func (l *FileLock) Lock() error {
	l.mu.Lock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("filelock: open %s: %w", l.path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		l.mu.Unlock()
		return fmt.Errorf("filelock: flock %s: %w", l.path, err)
	}

	l.f = f
	return nil
}

// Unlock releases the lock acquired by Lock.
func (l *FileLock) Unlock() error {
	if l.f == nil {
		l.mu.Unlock()
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("filelock: unlock %s: %w", l.path, err)
	}
	return closeErr
}
