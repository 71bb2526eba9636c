package errors

import (
	"sync"
	"time"
)

// Flag is the outcome recorded in an Info.
type Flag int

const (
	// FlagOk means the last recorded operation succeeded
	FlagOk Flag = iota
	// FlagFailed means the last recorded operation failed
	FlagFailed
)

func (f Flag) String() string {
	if f == FlagFailed {
		return "Failed"
	}
	return "Ok"
}

// Info is the shared error-state object a data source hands to its executors.
// Operations that fail soft record their failure here; callers inspect it after
// a call to tell "no rows" from "query failed".
type Info struct {
	mu       sync.RWMutex
	flag     Flag
	message  string
	err      error
	failedAt time.Time
}

// NewInfo returns an Info in the Ok state.
func NewInfo() *Info {
	return &Info{}
}

// Fail records err and switches the flag to FlagFailed. A nil err is ignored.
func (i *Info) Fail(err error) {
	if i == nil || err == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.flag = FlagFailed
	i.message = err.Error()
	i.err = err
	i.failedAt = time.Now()
}

// Reset puts the Info back into the Ok state.
func (i *Info) Reset() {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.flag = FlagOk
	i.message = ""
	i.err = nil
	i.failedAt = time.Time{}
}

// Flag returns the current flag.
func (i *Info) Flag() Flag {
	if i == nil {
		return FlagOk
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.flag
}

// Failed reports whether the flag is FlagFailed.
func (i *Info) Failed() bool {
	return i.Flag() == FlagFailed
}

// Message returns the message of the last failure.
func (i *Info) Message() string {
	if i == nil {
		return ""
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.message
}

// Err returns the last recorded error, or nil.
func (i *Info) Err() error {
	if i == nil {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.err
}

// FailedAt returns when the last failure was recorded.
func (i *Info) FailedAt() time.Time {
	if i == nil {
		return time.Time{}
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.failedAt
}
