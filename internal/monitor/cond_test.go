package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForWaiters(t *testing.T, c *Cond, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.L.Lock()
		defer c.L.Unlock()
		return c.Waiters() == n
	}, time.Second, time.Millisecond)
}

func TestCondSignalWakesInArrivalOrder(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	woke := make(chan string, 3)
	park := func(name string) {
		mu.Lock()
		reason := c.Wait(context.Background(), time.Time{})
		mu.Unlock()
		assert.Equal(t, Signalled, reason)
		woke <- name
	}

	go park("first")
	waitForWaiters(t, c, 1)
	go park("second")
	waitForWaiters(t, c, 2)
	go park("third")
	waitForWaiters(t, c, 3)

	for _, want := range []string{"first", "second", "third"} {
		mu.Lock()
		c.Signal()
		mu.Unlock()
		select {
		case got := <-woke:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("waiter %s was not woken", want)
		}
	}
}

func TestCondBroadcastWakesAll(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, Signalled, c.Wait(context.Background(), time.Time{}))
		}()
	}
	waitForWaiters(t, c, n)

	mu.Lock()
	c.Broadcast()
	assert.Equal(t, 0, c.Waiters())
	mu.Unlock()

	wg.Wait()
}

func TestCondSignalWithoutWaitersIsNoop(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	mu.Lock()
	c.Signal()
	c.Broadcast()
	assert.Equal(t, 0, c.Waiters())
	mu.Unlock()
}

func TestCondWaitTimesOut(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	timeout := 20 * time.Millisecond
	start := time.Now()

	mu.Lock()
	reason := c.Wait(context.Background(), start.Add(timeout))
	assert.Equal(t, 0, c.Waiters(), "timed out waiter must leave the list")
	mu.Unlock()

	assert.Equal(t, TimedOut, reason)
	assert.GreaterOrEqual(t, time.Since(start), timeout)
}

func TestCondWaitPastDeadlineReturnsPromptly(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	mu.Lock()
	reason := c.Wait(context.Background(), time.Now().Add(-time.Second))
	mu.Unlock()

	assert.Equal(t, TimedOut, reason)
}

func TestCondWaitCancelled(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan WakeReason, 1)
	go func() {
		mu.Lock()
		defer mu.Unlock()
		done <- c.Wait(ctx, time.Time{})
	}()
	waitForWaiters(t, c, 1)

	cancel()
	select {
	case reason := <-done:
		assert.Equal(t, Cancelled, reason)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter did not return")
	}

	mu.Lock()
	assert.Equal(t, 0, c.Waiters())
	mu.Unlock()
}

func TestCondWaitReleasesLock(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	done := make(chan struct{})
	go func() {
		defer close(done)
		mu.Lock()
		c.Wait(context.Background(), time.Now().Add(time.Second))
		mu.Unlock()
	}()
	waitForWaiters(t, c, 1)

	// Lock must be obtainable while the waiter is parked.
	mu.Lock()
	c.Signal()
	mu.Unlock()
	<-done
}

func TestWakeReasonString(t *testing.T) {
	assert.Equal(t, "signalled", Signalled.String())
	assert.Equal(t, "timed out", TimedOut.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unknown", WakeReason(42).String())
}
