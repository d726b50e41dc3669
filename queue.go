package delayqueue

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/timzifer/delay_queue/internal/monitor"
	"github.com/timzifer/delay_queue/internal/queue"
	"github.com/timzifer/delay_queue/internal/telemetry"
)

// maxPrealloc caps how much of a bounded capacity is allocated up front.
const maxPrealloc = 1024

// Queue is a blocking priority queue of Delayed values. Values leave the
// queue in ready time order, and never before their ready time. Values with
// equal ready times leave in insertion order.
//
// A bounded queue blocks producers while it is full. All methods are safe for
// concurrent use.
type Queue[T Delayed] struct {
	mu       sync.Mutex
	heap     *queue.DeadlineHeap[T]
	ready    *monitor.Cond // consumers wait here for a ready head
	notFull  *monitor.Cond // producers wait here for a free slot
	capacity Capacity

	poisoned atomic.Bool
	metrics  *telemetry.QueueMetrics
	logger   log.FieldLogger

	beforePush func() // test hook, runs with mu held
}

// New creates an empty queue with the given capacity policy.
func New[T Delayed](capacity Capacity, opts ...Option) *Queue[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var heapOpts []queue.Option
	if limit, ok := capacity.Limit(); ok {
		heapOpts = append(heapOpts, queue.WithInitialCapacity(min(limit, maxPrealloc)))
	}

	q := &Queue[T]{
		heap:     queue.NewDeadlineHeap[T](heapOpts...),
		capacity: capacity,
		metrics:  telemetry.NewQueueMetrics(o.scope),
		logger:   o.logger.WithField("capacity", capacity.String()),
	}
	q.ready = monitor.NewCond(&q.mu)
	q.notFull = monitor.NewCond(&q.mu)
	return q
}

// NewUnbounded creates an empty queue without a capacity limit.
func NewUnbounded[T Delayed](opts ...Option) *Queue[T] {
	return New[T](Unbounded(), opts...)
}

// NewWithCapacity creates an empty queue holding at most n values. A
// capacity of zero or less means unbounded.
func NewWithCapacity[T Delayed](n int, opts ...Option) *Queue[T] {
	if n <= 0 {
		return NewUnbounded[T](opts...)
	}
	return New[T](Bounded(n), opts...)
}

type waitLimit struct {
	deadline time.Time
	bounded  bool
}

func waitForever() waitLimit {
	return waitLimit{}
}

// waitFor fixes the deadline at call entry. Negative timeouts count as zero,
// which means a single check without blocking.
func waitFor(timeout time.Duration) waitLimit {
	if timeout < 0 {
		timeout = 0
	}
	return waitLimit{deadline: time.Now().Add(timeout), bounded: true}
}

func (l waitLimit) expired(now time.Time) bool {
	return l.bounded && !now.Before(l.deadline)
}

// Add inserts e, blocking while the queue is full.
func (q *Queue[T]) Add(e T) error {
	_, err := q.insert(context.Background(), e, waitForever())
	return err
}

// AddContext is like Add but gives up when ctx is done. The context is only
// consulted while waiting for a free slot; e is not inserted when the
// returned error wraps ctx.Err().
func (q *Queue[T]) AddContext(ctx context.Context, e T) error {
	_, err := q.insert(ctx, e, waitForever())
	return err
}

// Offer inserts e, waiting up to timeout for a free slot. It reports false
// without modifying the queue if no slot became free in time. A timeout of
// zero or less checks once and never blocks.
func (q *Queue[T]) Offer(e T, timeout time.Duration) (bool, error) {
	return q.insert(context.Background(), e, waitFor(timeout))
}

// Take removes and returns the head once its ready time has passed, waiting
// as long as needed for a value to arrive and become ready.
func (q *Queue[T]) Take() (T, error) {
	e, _, err := q.remove(context.Background(), waitForever())
	return e, err
}

// TakeContext is like Take but gives up when ctx is done.
func (q *Queue[T]) TakeContext(ctx context.Context) (T, error) {
	e, _, err := q.remove(ctx, waitForever())
	return e, err
}

// Poll is like Take but waits at most timeout. It reports false if no value
// became ready in time. A timeout of zero or less checks once and never
// blocks.
func (q *Queue[T]) Poll(timeout time.Duration) (T, bool, error) {
	return q.remove(context.Background(), waitFor(timeout))
}

// Peek returns the head without removing it, whether or not it is ready.
func (q *Queue[T]) Peek() (e T, ok bool, err error) {
	if err = q.lock(); err != nil {
		return e, false, err
	}
	defer q.unlock()

	e, _, ok = q.heap.Peek()
	return e, ok, nil
}

// DrainReady removes every value whose ready time has passed, up to n
// values, without blocking. An n of zero or less removes all ready values.
func (q *Queue[T]) DrainReady(n int) ([]T, error) {
	if err := q.lock(); err != nil {
		return nil, err
	}
	defer q.unlock()

	var out []T
	now := time.Now()
	for n <= 0 || len(out) < n {
		e, readyAt, ok := q.heap.PopReady(now)
		if !ok {
			break
		}
		q.metrics.Removed(q.heap.Len(), now.Sub(readyAt))
		q.notFull.Signal()
		out = append(out, e)
	}
	return out, nil
}

// Size returns the number of values currently stored, ready or not. It keeps
// working on a poisoned queue.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Clear discards every value and wakes all producers waiting for a slot.
func (q *Queue[T]) Clear() error {
	if err := q.lock(); err != nil {
		return err
	}
	defer q.unlock()

	n := q.heap.Clear()
	q.metrics.Cleared(n)
	q.notFull.Broadcast()
	return nil
}

// Capacity returns the capacity policy the queue was created with.
func (q *Queue[T]) Capacity() Capacity {
	return q.capacity
}

// RemainingCapacity returns the number of free slots and true, or 0 and
// false for an unbounded queue.
func (q *Queue[T]) RemainingCapacity() (int, bool) {
	limit, bounded := q.capacity.Limit()
	if !bounded {
		return 0, false
	}
	return limit - q.Size(), true
}

// Err returns ErrPoisoned once the queue is poisoned, nil before.
func (q *Queue[T]) Err() error {
	if q.poisoned.Load() {
		return ErrPoisoned
	}
	return nil
}

func (q *Queue[T]) insert(ctx context.Context, e T, limit waitLimit) (bool, error) {
	readyAt := e.ReadyTime()

	if err := q.lock(); err != nil {
		return false, err
	}
	defer q.unlock()

	if q.full() {
		defer q.metrics.TraceProducerWait()()
	}
	for q.full() {
		if limit.expired(time.Now()) {
			q.metrics.OfferTimedOut()
			q.logger.WithField("size", q.heap.Len()).Debug("offer timed out on a full queue")
			return false, nil
		}

		reason := q.notFull.Wait(ctx, limit.deadline)
		if q.poisoned.Load() {
			return false, ErrPoisoned
		}
		if reason == monitor.Cancelled {
			q.metrics.Cancelled()
			q.logger.WithError(ctx.Err()).Debug("add cancelled while waiting for a free slot")
			return false, errors.Wrap(ctx.Err(), "delayqueue: add cancelled")
		}
	}

	if q.beforePush != nil {
		q.beforePush()
	}
	q.heap.Push(e, readyAt)
	q.metrics.Added(q.heap.Len())
	q.ready.Signal()
	return true, nil
}

func (q *Queue[T]) remove(ctx context.Context, limit waitLimit) (e T, ok bool, err error) {
	if err = q.lock(); err != nil {
		return e, false, err
	}
	defer q.unlock()

	var stopWait func()
	defer func() {
		if stopWait != nil {
			stopWait()
		}
	}()

	for {
		now := time.Now()
		if v, readyAt, popped := q.heap.PopReady(now); popped {
			q.metrics.Removed(q.heap.Len(), now.Sub(readyAt))
			q.notFull.Signal()
			if q.heap.Len() > 0 {
				q.ready.Signal()
			}
			return v, true, nil
		}

		// Zero while empty: park until an insertion signals.
		_, wakeAt, nonEmpty := q.heap.Peek()
		if limit.bounded {
			if limit.expired(now) {
				q.metrics.PollTimedOut()
				q.handOff(nonEmpty)
				return e, false, nil
			}
			if !nonEmpty || limit.deadline.Before(wakeAt) {
				wakeAt = limit.deadline
			}
		}

		if stopWait == nil {
			stopWait = q.metrics.TraceConsumerWait()
		}
		reason := q.ready.Wait(ctx, wakeAt)
		if q.poisoned.Load() {
			return e, false, ErrPoisoned
		}
		if reason == monitor.Cancelled {
			q.metrics.Cancelled()
			q.handOff(q.heap.Len() > 0)
			q.logger.WithError(ctx.Err()).Debug("take cancelled while waiting for a ready value")
			return e, false, errors.Wrap(ctx.Err(), "delayqueue: take cancelled")
		}
	}
}

// handOff passes a wake-up on to the next consumer when one leaves without
// taking a value, since the signal it may have absorbed was meant for
// whoever would take the current head.
func (q *Queue[T]) handOff(nonEmpty bool) {
	if nonEmpty {
		q.ready.Signal()
	}
}

func (q *Queue[T]) full() bool {
	limit, bounded := q.capacity.Limit()
	return bounded && q.heap.Len() >= limit
}

func (q *Queue[T]) lock() error {
	q.mu.Lock()
	if q.poisoned.Load() {
		q.mu.Unlock()
		return ErrPoisoned
	}
	return nil
}

// unlock must be deferred directly so that it can observe a panic raised
// while mu is held. The panic poisons the queue and is re-raised.
func (q *Queue[T]) unlock() {
	if r := recover(); r != nil {
		q.poison(r)
		q.mu.Unlock()
		panic(r)
	}
	q.mu.Unlock()
}

func (q *Queue[T]) poison(cause any) {
	if !q.poisoned.Swap(true) {
		q.metrics.Poisoned()
		q.logger.WithFields(log.Fields{
			"panic": cause,
			"size":  q.heap.Len(),
		}).Error("panic inside a queue critical section, queue is poisoned")
	}
	q.ready.Broadcast()
	q.notFull.Broadcast()
}
