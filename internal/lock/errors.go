package lock

import "errors"

// ErrLocked is returned by Acquire when another live ramwatch holds the lock.
// Check it with errors.Is.
var ErrLocked = errors.New("another ramwatch is already running")
