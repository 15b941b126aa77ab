// Package lock keeps a session to a single live follower process.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// HeldError is returned when another process holds the lock.
type HeldError struct {
	Holder Holder
	Path   string
}

func (e *HeldError) Error() string {
	if e.Holder.Command != "" {
		return fmt.Sprintf("%s already running as PID %d (%s)", e.Holder.Command, e.Holder.PID, e.Path)
	}
	return fmt.Sprintf("lock held by PID %d (%s)", e.Holder.PID, e.Path)
}

// Holder describes the process written into a lock file.
type Holder struct {
	PID     int
	Command string
	Since   time.Time
}

// Lock represents an acquired lock file.
type Lock struct {
	file *os.File
	path string
}

// Path returns the lock file for name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".lock")
}

// Acquire takes an exclusive lock named name inside dir. command is recorded
// for diagnostics. Returns *HeldError if another process already holds it.
func Acquire(dir, name, command string) (*Lock, error) {
	path := Path(dir, name)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		h, _ := ReadHolder(path)
		return nil, &HeldError{Holder: h, Path: path}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\ncommand=%s\nsince=%s\n",
		os.Getpid(), command, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteAt([]byte(content), 0); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: path}, nil
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before close so a waiting process never reads our stale holder.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadHolder parses the holder recorded in a lock file.
func ReadHolder(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	var h Holder
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "command":
			h.Command = value
		case "since":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h, nil
}
