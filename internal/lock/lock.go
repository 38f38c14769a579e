// Package lock keeps a single ramwatch instance per user, so two monitors
// never email or restart for the same breach.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/ramwatch/internal/errors"
)

// FileName is the lock file inside the cache directory.
const FileName = "ramwatch.lock"

// Lock is a held instance lock.
type Lock struct {
	Path string
	Info *LockInfo
}

// DefaultPath is the per-user lock location, e.g.
// ~/.cache/ramwatch/ramwatch.lock, falling back to the temp dir.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ramwatch", FileName)
}

// Acquire creates the lock file at path. A lock left behind by a process
// that is no longer running is replaced; a live holder yields ErrLocked.
func Acquire(path, command string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't create the lock directory",
			"Check permissions on "+filepath.Dir(path))
	}

	info := NewLockInfo(command)
	data, err := info.Marshal()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Failed to serialize lock info",
			"")
	}

	// Two attempts: the second follows removal of a stale lock.
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, errors.New(errors.ErrLock,
					"Failed to write lock file "+path,
					"Check disk space and permissions")
			}
			return &Lock{Path: path, Info: info}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrLock,
				"Couldn't create lock file "+path,
				"Check permissions on the lock directory")
		}

		holder, readErr := read(path)
		if readErr == nil && holder.Alive() {
			return nil, errors.WrapWithCode(ErrLocked, errors.ErrLock,
				fmt.Sprintf("ramwatch is already running: %s", holder),
				fmt.Sprintf("Stop it first, or remove %s if you're sure it's gone.", path))
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrLock,
				"Couldn't remove stale lock file "+path,
				"Remove it by hand and try again")
		}
	}

	return nil, errors.WrapWithCode(ErrLocked, errors.ErrLock,
		"Another ramwatch grabbed the lock while we were starting",
		"Try again in a moment")
}

// Release removes the lock if this process still owns it.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	holder, err := read(l.Path)
	if err != nil {
		// Gone, or unparseable and left for the next Acquire to clear.
		return nil
	}
	if holder.PID != l.Info.PID || !holder.Started.Equal(l.Info.Started) {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to remove lock file "+l.Path,
			"Remove it by hand")
	}
	return nil
}

// Holder describes who holds the lock at path, or "" if nobody does.
func Holder(path string) string {
	info, err := read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		data, _ := os.ReadFile(path)
		return strings.TrimSpace(string(data))
	}
	return info.String()
}

func read(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLockInfo(data)
}
