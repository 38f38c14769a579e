package lock

import (
	"encoding/json"
	"os"
	"strconv"
	"syscall"
	"time"
)

// LockInfo records which process holds the instance lock.
type LockInfo struct {
	User     string    `json:"user"`
	Hostname string    `json:"hostname"`
	Started  time.Time `json:"started"`
	PID      int       `json:"pid"`
	Command  string    `json:"command,omitempty"`
}

// NewLockInfo describes the current process.
func NewLockInfo(command string) *LockInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}

	return &LockInfo{
		User:     user,
		Hostname: hostname,
		Started:  time.Now(),
		PID:      os.Getpid(),
		Command:  command,
	}
}

// Age returns how long ago the lock was acquired.
func (i *LockInfo) Age() time.Duration {
	return time.Since(i.Started)
}

// Alive reports whether the holder is still running on this host.
func (i *LockInfo) Alive() bool {
	if i.PID <= 0 {
		return false
	}
	if host, err := os.Hostname(); err == nil && i.Hostname != host {
		// Shared filesystem; we can't probe the holder, so trust the lock.
		return true
	}
	proc, err := os.FindProcess(i.PID)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Marshal serializes the LockInfo to JSON.
func (i *LockInfo) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

// ParseLockInfo deserializes JSON data into a LockInfo.
func ParseLockInfo(data []byte) (*LockInfo, error) {
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// String returns a human-readable description of who holds the lock.
func (i *LockInfo) String() string {
	s := i.User + "@" + i.Hostname + " (pid " + strconv.Itoa(i.PID)
	if i.Command != "" {
		s += ", " + i.Command
	}
	return s + ")"
}
