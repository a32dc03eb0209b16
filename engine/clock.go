package engine

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. Returns false if it already ran or was stopped.
	Stop() bool
}

// Clock arms one-shot callbacks. The engine re-arms after every tick, so a single
// armed timer at a time gives a repeating cadence.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules callbacks on the runtime timer wheel.
type RealClock struct{}

// AfterFunc wraps time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualClock is a controllable clock for tests and headless runs.
// Callbacks run synchronously on the goroutine that advances the clock.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*manualTimer
	fired  int
}

type manualTimer struct {
	clock *ManualClock
	at    time.Duration
	seq   uint64
	f     func()
	done  bool
}

// NewManualClock creates a manual clock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc registers f to run once the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at != c.timers[j].at {
			return c.timers[i].at < c.timers[j].at
		}
		return c.timers[i].seq < c.timers[j].seq
	})
	return t
}

// Stop cancels the timer if it has not fired.
func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	return true
}

// Now returns the elapsed manual time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Fired returns how many callbacks have run.
func (c *ManualClock) Fired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Next jumps to the earliest armed timer and runs it.
// Returns false if nothing was armed.
func (c *ManualClock) Next() bool {
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		return false
	}
	t := c.timers[0]
	c.timers = c.timers[1:]
	t.done = true
	if t.at > c.now {
		c.now = t.at
	}
	c.fired++
	c.mu.Unlock()

	t.f()
	return true
}

// Advance moves the clock forward by d, running every timer that comes due in order,
// including timers armed by those callbacks. Returns the number of callbacks run.
func (c *ManualClock) Advance(d time.Duration) int {
	c.mu.Lock()
	deadline := c.now + d
	c.mu.Unlock()

	n := 0
	for {
		c.mu.Lock()
		if len(c.timers) == 0 || c.timers[0].at > deadline {
			c.now = deadline
			c.mu.Unlock()
			return n
		}
		c.mu.Unlock()

		c.Next()
		n++
	}
}

// RunUntilIdle runs timers until none are armed or limit callbacks have run.
// Returns the number of callbacks run.
func (c *ManualClock) RunUntilIdle(limit int) int {
	n := 0
	for n < limit && c.Next() {
		n++
	}
	return n
}
