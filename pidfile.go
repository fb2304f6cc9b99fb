package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tonimelisma/ttsu-sync/internal/config"
)

const (
	pidFilePermissions = 0o600
	pidDirPermissions  = 0o700
	pidFileName        = "watch.pid"
)

// watchPIDPath places the PID file next to the state database, so two
// watchers on different databases do not collide.
func watchPIDPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.StateDBPath()), pidFileName)
}

// writePIDFile writes the current process ID to path and takes an exclusive
// flock on it. The returned cleanup removes the file and releases the lock.
// If the lock is held, another watcher owns this state database.
func writePIDFile(path string) (cleanup func(), err error) {
	if path == "" {
		return nil, errors.New("PID file path is empty")
	}

	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, pidDirPermissions); mkdirErr != nil {
		return nil, fmt.Errorf("creating PID file directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, pidFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening PID file: %w", err)
	}

	// Non-blocking: fail at once if another process holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("another sync --watch is already running (could not lock %s)", path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating PID file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing PID file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("syncing PID file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readPIDFile reads the PID stored at path.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}

// liveProcess returns the process for the PID at path if it is alive.
func liveProcess(path string) (*os.Process, int, error) {
	pid, err := readPIDFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("no watch process found (no PID file at %s)", path)
		}

		return nil, 0, err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, pid, fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil, pid, fmt.Errorf("watch process (PID %d) is not running", pid)
	}

	return proc, pid, nil
}

// watcherPID reports the PID of a live watch process, if any.
func watcherPID(path string) (int, bool) {
	_, pid, err := liveProcess(path)
	if err != nil {
		return 0, false
	}

	return pid, true
}

// sendSIGHUP asks the watch process to reload. A stale PID file is removed.
func sendSIGHUP(path string) error {
	proc, pid, err := liveProcess(path)
	if err != nil {
		if pid != 0 {
			os.Remove(path)
		}

		return err
	}

	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("sending SIGHUP to watch process (PID %d): %w", pid, err)
	}

	return nil
}
