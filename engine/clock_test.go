package engine

import (
	"testing"
	"time"
)

func TestManualClockOrdering(t *testing.T) {
	c := NewManualClock()
	var order []int
	c.AfterFunc(30*time.Millisecond, func() { order = append(order, 3) })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, 1) })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, 2) })

	if c.Pending() != 3 {
		t.Fatalf("pending = %d, want 3", c.Pending())
	}
	if n := c.RunUntilIdle(10); n != 3 {
		t.Fatalf("ran %d callbacks, want 3", n)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
	if c.Now() != 30*time.Millisecond {
		t.Errorf("now = %v, want 30ms", c.Now())
	}
}

func TestManualClockStop(t *testing.T) {
	c := NewManualClock()
	ran := false
	timer := c.AfterFunc(time.Second, func() { ran = true })

	if !timer.Stop() {
		t.Error("first Stop should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
	if c.Next() || ran {
		t.Error("stopped timer fired")
	}
}

func TestManualClockAdvanceChains(t *testing.T) {
	c := NewManualClock()
	count := 0
	var rearm func()
	rearm = func() {
		count++
		c.AfterFunc(100*time.Millisecond, rearm)
	}
	c.AfterFunc(100*time.Millisecond, rearm)

	if n := c.Advance(350 * time.Millisecond); n != 3 {
		t.Errorf("Advance ran %d callbacks, want 3", n)
	}
	if count != 3 || c.Pending() != 1 {
		t.Errorf("count = %d, pending = %d", count, c.Pending())
	}
	if c.Now() != 350*time.Millisecond {
		t.Errorf("now = %v, want 350ms", c.Now())
	}
	if c.RunUntilIdle(5) != 5 {
		t.Error("RunUntilIdle should stop at its limit")
	}
}
