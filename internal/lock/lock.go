// Package lock guards a profile directory against concurrent use. The
// local database tolerates writers, but two live sessions would race on
// the in-memory collections, so only one process may open a profile.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// HeldError is returned when another process already owns the profile.
type HeldError struct {
	PID  int
	Path string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("profile in use by PID %d (%s)", e.PID, e.Path)
}

// ProfileLock is an acquired exclusive lock on a profile directory.
type ProfileLock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive flock on the profile directory. It fails
// with HeldError when another parley process holds the profile.
func Acquire(profileDir string) (*ProfileLock, error) {
	path := filepath.Join(profileDir, fileName)

	if err := os.MkdirAll(profileDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		// Surface the owner's PID for the error message.
		data, _ := os.ReadFile(path)
		pid := ownerPID(string(data))
		_ = f.Close()
		return nil, &HeldError{PID: pid, Path: path}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	body := fmt.Sprintf("pid=%d\nsince=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &ProfileLock{file: f, path: path}, nil
}

// Release drops the lock and removes the file. Safe on a nil receiver.
func (l *ProfileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func ownerPID(content string) int {
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			pid, _ := strconv.Atoi(after)
			return pid
		}
	}
	return 0
}
