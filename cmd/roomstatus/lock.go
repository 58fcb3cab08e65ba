package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

const lockFileName = "roomstatus.lock"

// acquireInstanceLock makes sure only one "run" drives the same preview file
// and GPIO pin. The returned function releases the lock.
func acquireInstanceLock(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	path := filepath.Join(dir, lockFileName)
	lock := flock.New(path)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		if pid := readLockPID(path); pid > 0 {
			return nil, fmt.Errorf("another roomstatus process (PID %d) is running", pid)
		}
		return nil, errors.New("another roomstatus process is running")
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write PID to lock file: %w", err)
	}

	return func() { _ = lock.Unlock() }, nil
}

func readLockPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
