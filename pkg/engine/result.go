package engine

import (
	"sync"
	"sync/atomic"
)

// Result is the three-valued outcome of a check.
type Result int

const (
	Unknown Result = 0
	Sat     Result = 1
	Unsat   Result = -1
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	}
	return "unknown"
}

// Failure explains an Unknown result.
type Failure int

const (
	None Failure = iota
	Canceled
	Timeout
	ResourceExhausted
	Incomplete
	Internal
)

var failureNames = [...]string{
	None:              "none",
	Canceled:          "canceled",
	Timeout:           "timeout",
	ResourceExhausted: "resource-exhausted",
	Incomplete:        "incomplete",
	Internal:          "internal",
}

func (f Failure) String() string {
	if f < 0 || int(f) >= len(failureNames) {
		return "invalid"
	}
	return failureNames[f]
}

// CancelFlag is a cooperative stop signal shared between a caller and
// a running check. The zero value is a cleared flag ready for use.
type CancelFlag struct {
	set  atomic.Bool
	mu   sync.Mutex
	done chan struct{}
}

// Set sets or clears the flag. Setting the flag releases every
// receiver on the channel returned by Done.
func (c *CancelFlag) Set(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set.Load() == flag {
		return
	}
	c.set.Store(flag)
	if flag {
		if c.done == nil {
			c.done = make(chan struct{})
		}
		close(c.done)
		return
	}
	c.done = nil
}

// IsSet reports the current value of the flag.
func (c *CancelFlag) IsSet() bool {
	return c.set.Load()
}

// Done returns a channel that is closed once the flag is set. The
// channel is replaced when the flag is cleared.
func (c *CancelFlag) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		c.done = make(chan struct{})
		if c.set.Load() {
			close(c.done)
		}
	}
	return c.done
}
