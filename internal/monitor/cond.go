package monitor

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// WakeReason tells a waiter why Wait returned.
type WakeReason int

const (
	// Signalled means Signal or Broadcast picked this waiter.
	Signalled WakeReason = iota
	// TimedOut means the deadline passed before a signal arrived.
	TimedOut
	// Cancelled means the context was done before a signal arrived.
	Cancelled
)

func (r WakeReason) String() string {
	switch r {
	case Signalled:
		return "signalled"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type waiter struct {
	ch       chan struct{}
	elem     *list.Element
	notified bool
}

// Cond is a condition variable bound to an external lock. Unlike sync.Cond a
// wait can be bounded by a deadline or a context, and signals are handed out
// in arrival order.
//
// L must be held when calling Wait, Signal, Broadcast and Waiters.
type Cond struct {
	L       sync.Locker
	waiters list.List
}

// NewCond returns a Cond bound to l.
func NewCond(l sync.Locker) *Cond {
	c := &Cond{L: l}
	c.waiters.Init()
	return c
}

// Signal wakes the longest-parked waiter, if any.
func (c *Cond) Signal() {
	front := c.waiters.Front()
	if front == nil {
		return
	}
	w := c.waiters.Remove(front).(*waiter)
	w.notified = true
	close(w.ch)
}

// Broadcast wakes every parked waiter.
func (c *Cond) Broadcast() {
	for c.waiters.Len() > 0 {
		c.Signal()
	}
}

// Waiters returns how many goroutines are parked.
func (c *Cond) Waiters() int {
	return c.waiters.Len()
}

// Wait atomically unlocks L and parks the caller until it is signalled, the
// deadline passes or ctx is done. L is locked again before Wait returns. A
// zero deadline means no time bound.
//
// A waiter that was signalled while it was also timing out reports
// Signalled, so a signal is never silently dropped. Callers must re-check
// their condition after every return.
func (c *Cond) Wait(ctx context.Context, deadline time.Time) WakeReason {
	w := &waiter{ch: make(chan struct{})}
	w.elem = c.waiters.PushBack(w)
	c.L.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	reason := Signalled
	select {
	case <-w.ch:
	case <-timeout:
		reason = TimedOut
	case <-ctx.Done():
		reason = Cancelled
	}

	c.L.Lock()
	if reason != Signalled {
		if w.notified {
			reason = Signalled
		} else {
			c.waiters.Remove(w.elem)
		}
	}
	return reason
}
